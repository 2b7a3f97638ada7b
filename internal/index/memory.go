// Package index provides the vector indices the retrieval session searches.
//
// Every ingest builds a fresh, immutable index; nothing is ever mutated after
// Build returns, so a built index can be searched from any number of
// goroutines. Two backends exist: an in-memory linear scan (the default) and
// a Qdrant collection per build.
package index

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/54b3r/pdfqa-go/internal/rag"
)

// entry is one indexed chunk with its precomputed vector norm.
type entry struct {
	vector []float32
	norm   float64
	text   string
	page   int
}

// Memory is an exact cosine-similarity index over an in-memory slice.
type Memory struct {
	entries []entry
	dim     int
}

// MemoryBuilder builds Memory indices. The zero value is ready to use.
type MemoryBuilder struct{}

// Build implements rag.Builder.
func (MemoryBuilder) Build(ctx context.Context, chunks []rag.Chunk, vectors [][]float32) (rag.Searcher, error) {
	return BuildMemory(ctx, chunks, vectors)
}

// BuildMemory validates the input and returns a ready Memory index. Vectors
// are copied, so the caller may reuse its slices.
func BuildMemory(ctx context.Context, chunks []rag.Chunk, vectors [][]float32) (*Memory, error) {
	dim, err := validate(chunks, vectors)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]entry, len(chunks))
	for i, c := range chunks {
		v := slices.Clone(vectors[i])
		entries[i] = entry{vector: v, norm: norm(v), text: c.Text, page: c.Page}
	}
	return &Memory{entries: entries, dim: dim}, nil
}

// Search implements rag.Searcher with a linear scan. Results are ordered by
// descending cosine similarity; equal scores keep insertion order.
func (m *Memory) Search(_ context.Context, query []float32, k int) ([]rag.Hit, error) {
	if len(m.entries) == 0 || k <= 0 {
		return []rag.Hit{}, nil
	}
	if len(query) != m.dim {
		return nil, rag.Errorf(rag.ErrDimensionMismatch,
			"index: query has dimension %d, index has %d", len(query), m.dim)
	}

	qn := norm(query)
	hits := make([]rag.Hit, len(m.entries))
	for i, e := range m.entries {
		hits[i] = rag.Hit{Text: e.text, Page: e.page, Score: cosine(query, qn, e.vector, e.norm), Seq: i}
	}
	slices.SortStableFunc(hits, func(a, b rag.Hit) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return hits[:min(k, len(hits))], nil
}

// Len implements rag.Searcher.
func (m *Memory) Len() int { return len(m.entries) }

// Dimension implements rag.Searcher.
func (m *Memory) Dimension() int { return m.dim }

// Close implements rag.Searcher. Memory holds no external resources.
func (m *Memory) Close() error { return nil }

// validate checks that chunks and vectors are parallel and share a positive
// dimension, which it returns. Empty input is valid and has dimension 0.
func validate(chunks []rag.Chunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, rag.Errorf(rag.ErrDimensionMismatch,
			"index: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(vectors) == 0 {
		return 0, nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, rag.Errorf(rag.ErrDimensionMismatch, "index: vector 0 is empty")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, rag.Errorf(rag.ErrDimensionMismatch,
				"index: vector %d has dimension %d, expected %d", i, len(v), dim)
		}
	}
	return dim, nil
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

// cosine returns the cosine similarity of a and b given their norms. A zero
// vector on either side scores 0.
func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}
