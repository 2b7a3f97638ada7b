// Package embedder provides implementations of the rag.Embedder interface for
// converting text into dense vector embeddings. OpenAI is reached through the
// openai-go SDK; Ollama and Azure OpenAI over plain HTTP. The hash backend
// needs no model and runs offline.
package embedder

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/54b3r/pdfqa-go/internal/rag"
)

// OpenAIEmbedder implements rag.Embedder using the OpenAI embeddings API.
// It is safe for concurrent use.
type OpenAIEmbedder struct {
	// client is the SDK client. SDK-level retries are disabled; retry policy
	// belongs to the caller.
	client openai.Client
	// model is the embedding model name (e.g. "text-embedding-3-small").
	model string
	// dimensions is the desired embedding vector length (0 = model default).
	dimensions int
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is the API base URL. Defaults to "https://api.openai.com/v1".
	BaseURL string
	// APIKey is the authentication key.
	APIKey string
	// Model is the embedding model name (e.g. "text-embedding-3-small").
	Model string
	// Dimensions is the desired vector length (0 = model default).
	Dimensions int
	// Timeout bounds a single request. Defaults to 30s.
	Timeout time.Duration
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from the given config.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	)
	return &OpenAIEmbedder{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, rag.Errorf(rag.ErrEmbeddingUnavailable, "openai embedder: HTTP %d: %s", apiErr.StatusCode, apiErr.Message)
		}
		return nil, rag.Wrap(rag.ErrEmbeddingUnavailable, "openai embedder: request failed", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, rag.Errorf(rag.ErrEmbeddingUnavailable,
			"openai embedder: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// The API may return data out of order; place by index.
	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		i := int(d.Index)
		if i < 0 || i >= len(texts) || embeddings[i] != nil {
			return nil, rag.Errorf(rag.ErrEmbeddingUnavailable,
				"openai embedder: invalid result index %d for %d inputs", d.Index, len(texts))
		}
		embeddings[i] = toFloat32(d.Embedding)
	}

	return embeddings, nil
}

// toFloat32 narrows the SDK's float64 vectors to the index element type.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
