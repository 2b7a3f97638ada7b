package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HealthCheckConfig is a zero-cost reachability probe for an LLM backend:
// it calls a listing endpoint instead of generating tokens.
type HealthCheckConfig interface {
	// HealthCheck returns nil when the backend answered with a 2xx status.
	HealthCheck(ctx context.Context) error
}

// httpHealthCheck issues a GET and treats any 2xx as healthy.
type httpHealthCheck struct {
	url    string
	header http.Header
	client *http.Client
}

// HealthCheck implements HealthCheckConfig.
func (h *httpHealthCheck) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("provider: health request: %w", err)
	}
	for k, vs := range h.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider: health request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider: health check returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// HealthCheck returns a zero-cost probe for the selected backend, or nil when
// the backend has no suitable endpoint and callers must fall back to a
// generate call.
func (c *Config) HealthCheck() HealthCheckConfig {
	client := &http.Client{Timeout: 10 * time.Second}
	trim := func(s string) string { return strings.TrimRight(s, "/") }

	switch c.Backend {
	case BackendOllama:
		return &httpHealthCheck{url: trim(c.Ollama.Host) + "/api/tags", client: client}
	case BackendOpenAI:
		base := c.OpenAI.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		return &httpHealthCheck{
			url:    trim(base) + "/models",
			header: http.Header{"Authorization": {"Bearer " + c.OpenAI.APIKey}},
			client: client,
		}
	case BackendAzure:
		return &httpHealthCheck{
			url:    trim(c.AzureOpenAI.Endpoint) + "/openai/models?api-version=" + url.QueryEscape(c.AzureOpenAI.APIVersion),
			header: http.Header{"api-key": {c.AzureOpenAI.APIKey}},
			client: client,
		}
	case BackendGemini:
		return &httpHealthCheck{
			url:    "https://generativelanguage.googleapis.com/v1beta/models",
			header: http.Header{"x-goog-api-key": {c.Gemini.APIKey}},
			client: client,
		}
	}
	return nil
}
