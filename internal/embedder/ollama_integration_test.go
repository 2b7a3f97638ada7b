//go:build integration

package embedder

import (
	"context"
	"os"
	"slices"
	"testing"
	"time"
)

// TestOllamaEmbedder_Integration performs a real HTTP call to a locally running
// Ollama instance to validate the embedder end-to-end.
//
// Prerequisites:
//
//	ollama pull nomic-embed-text
//	ollama serve   (or it must already be running)
//
// Run with:
//
//	go test -tags=integration -run TestOllamaEmbedder_Integration ./internal/embedder/
//
// In CI, set OLLAMA_HOST if Ollama is not on localhost:11434.
func TestOllamaEmbedder_Integration(t *testing.T) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = defaultOllamaHost
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = defaultOllamaModel
	}

	emb := NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	texts := []string{
		"The warranty covers manufacturing defects for two years.",
		"Invoices are payable within thirty days of receipt.",
	}

	embeddings, err := emb.Embed(ctx, texts)
	if err != nil {
		t.Fatalf("Embed() failed: %v\n\nEnsure Ollama is running and %q is pulled:\n  ollama pull %s", err, model, model)
	}

	if len(embeddings) != len(texts) {
		t.Fatalf("expected %d embeddings, got %d", len(texts), len(embeddings))
	}
	for i, vec := range embeddings {
		if len(vec) == 0 {
			t.Errorf("embedding[%d] is empty", i)
		}
	}
	if len(embeddings[0]) != len(embeddings[1]) {
		t.Fatalf("dimension differs between inputs: %d vs %d", len(embeddings[0]), len(embeddings[1]))
	}
	if slices.Equal(embeddings[0], embeddings[1]) {
		t.Error("embeddings[0] and embeddings[1] are identical; model may not be working correctly")
	}

	again, err := emb.Embed(ctx, texts[:1])
	if err != nil {
		t.Fatalf("second Embed() failed: %v", err)
	}
	if !slices.Equal(again[0], embeddings[0]) {
		t.Log("embedding is not bit-for-bit deterministic across calls on this host")
	}

	t.Logf("model=%s dim=%d", model, len(embeddings[0]))
}
