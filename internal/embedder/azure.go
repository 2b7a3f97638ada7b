package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/54b3r/pdfqa-go/internal/rag"
)

// AzureEmbedder implements rag.Embedder against an Azure OpenAI embeddings
// deployment over plain HTTP. It is safe for concurrent use.
type AzureEmbedder struct {
	// endpoint is the resource URL (e.g. "https://<resource>.openai.azure.com").
	endpoint string
	// apiKey is sent in the api-key header.
	apiKey string
	// deployment is the deployment name, usually equal to the model name.
	deployment string
	// dimensions is the desired embedding vector length (0 = model default).
	dimensions int
	// apiVersion is the api-version query parameter.
	apiVersion string
	// client is the shared HTTP client.
	client *http.Client
}

// AzureConfig holds the settings for constructing an AzureEmbedder.
type AzureConfig struct {
	// Endpoint is the Azure OpenAI resource URL.
	Endpoint string
	// APIKey is the authentication key.
	APIKey string
	// Deployment is the embeddings deployment name (e.g. "text-embedding-3-small").
	Deployment string
	// Dimensions is the desired vector length (0 = model default).
	Dimensions int
	// APIVersion is the Azure OpenAI API version (e.g. "2025-04-01-preview").
	APIVersion string
	// Timeout bounds a single HTTP round trip. Defaults to 30s.
	Timeout time.Duration
}

// NewAzureEmbedder constructs an AzureEmbedder from the given config.
func NewAzureEmbedder(cfg *AzureConfig) *AzureEmbedder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAzureAPIVersion
	}
	return &AzureEmbedder{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		deployment: cfg.Deployment,
		dimensions: cfg.Dimensions,
		apiVersion: cfg.APIVersion,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

// azureEmbedRequest is the JSON body sent to the embeddings endpoint.
type azureEmbedRequest struct {
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// azureEmbedResponse is the JSON body returned from the embeddings endpoint.
type azureEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice.
func (e *AzureEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	payload, err := json.Marshal(azureEmbedRequest{Input: texts, Dimensions: e.dimensions})
	if err != nil {
		return nil, fmt.Errorf("azure embedder: marshal request: %w", err)
	}

	u := e.endpoint + "/openai/deployments/" + url.PathEscape(e.deployment) +
		"/embeddings?api-version=" + url.QueryEscape(e.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("azure embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, rag.Wrap(rag.ErrEmbeddingUnavailable, "azure embedder: request failed", err)
	}
	defer resp.Body.Close()

	var result azureEmbedResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != nil && result.Error.Message != "" {
			msg = result.Error.Message
		}
		return nil, rag.Errorf(rag.ErrEmbeddingUnavailable, "azure embedder: %s", msg)
	}
	if decodeErr != nil {
		return nil, rag.Wrap(rag.ErrEmbeddingUnavailable, "azure embedder: decode response", decodeErr)
	}

	if len(result.Data) != len(texts) {
		return nil, rag.Errorf(rag.ErrEmbeddingUnavailable,
			"azure embedder: expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	// The API may return data out of order; place by index.
	embeddings := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) || embeddings[d.Index] != nil {
			return nil, rag.Errorf(rag.ErrEmbeddingUnavailable,
				"azure embedder: invalid result index %d for %d inputs", d.Index, len(texts))
		}
		embeddings[d.Index] = d.Embedding
	}

	return embeddings, nil
}
