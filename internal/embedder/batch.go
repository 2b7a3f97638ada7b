package embedder

import (
	"context"
	"fmt"

	"github.com/54b3r/pdfqa-go/internal/rag"
)

// DefaultBatchSize is the number of texts sent per backend request.
const DefaultBatchSize = 64

// Batched splits large inputs into fixed-size requests against the wrapped
// embedder and concatenates the results in input order.
type Batched struct {
	inner rag.Embedder
	size  int
}

// NewBatched wraps inner. A non-positive size selects DefaultBatchSize.
func NewBatched(inner rag.Embedder, size int) *Batched {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batched{inner: inner, size: size}
}

// Embed converts texts batch by batch. A failing batch aborts the call.
func (b *Batched) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += b.size {
		end := min(i+b.size, len(texts))
		vecs, err := b.inner.Embed(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embedder: batch %d-%d: %w", i, end, err)
		}
		if len(vecs) != end-i {
			return nil, rag.Errorf(rag.ErrEmbeddingUnavailable,
				"embedder: batch %d-%d: expected %d embeddings, got %d", i, end, end-i, len(vecs))
		}
		out = append(out, vecs...)
	}
	return out, nil
}
