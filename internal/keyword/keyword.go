// Package keyword provides the lexical half of hybrid retrieval: an in-memory
// BM25 index over the same chunks as the vector index, and reciprocal-rank
// fusion of the two result lists.
package keyword

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/blevesearch/bleve"

	"github.com/54b3r/pdfqa-go/internal/rag"
)

// RRFK is the rank offset in the reciprocal-rank fusion score 1/(RRFK+rank).
const RRFK = 60

// Index is an immutable BM25 index. Document ids are chunk sequence numbers,
// so hits line up with the vector index built from the same chunk slice.
type Index struct {
	idx    bleve.Index
	chunks []rag.Chunk
}

// Build indexes chunks in memory.
func Build(ctx context.Context, chunks []rag.Chunk) (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("keyword: create index: %w", err)
	}

	batch := idx.NewBatch()
	for i, c := range chunks {
		if err := batch.Index(strconv.Itoa(i), map[string]any{"text": c.Text}); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("keyword: index chunk %d: %w", i, err)
		}
	}
	if err := ctx.Err(); err != nil {
		_ = idx.Close()
		return nil, err
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("keyword: apply batch: %w", err)
	}
	return &Index{idx: idx, chunks: slices.Clone(chunks)}, nil
}

// Search returns up to k chunks matching query, best BM25 score first.
// The query is analysed as plain text; no query syntax is interpreted.
func (x *Index) Search(ctx context.Context, query string, k int) ([]rag.Hit, error) {
	if k <= 0 || len(x.chunks) == 0 {
		return []rag.Hit{}, nil
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), k, 0, false)
	res, err := x.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword: search: %w", err)
	}

	hits := make([]rag.Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		seq, err := strconv.Atoi(h.ID)
		if err != nil || seq < 0 || seq >= len(x.chunks) {
			return nil, fmt.Errorf("keyword: unexpected document id %q", h.ID)
		}
		c := x.chunks[seq]
		hits = append(hits, rag.Hit{Text: c.Text, Page: c.Page, Score: h.Score, Seq: seq})
	}
	return hits, nil
}

// Len returns the number of indexed chunks.
func (x *Index) Len() int { return len(x.chunks) }

// Close releases the bleve index.
func (x *Index) Close() error { return x.idx.Close() }

// Fuse merges ranked lists with reciprocal-rank fusion and returns the top k.
// Hits are identified by Seq. Each list contributes 1/(RRFK+rank) with rank
// starting at 1; the fused score replaces Score. Equal fused scores are
// ordered by Seq.
func Fuse(k int, lists ...[]rag.Hit) []rag.Hit {
	type agg struct {
		hit   rag.Hit
		score float64
	}
	bySeq := map[int]*agg{}
	for _, list := range lists {
		for rank, h := range list {
			a, ok := bySeq[h.Seq]
			if !ok {
				a = &agg{hit: h}
				bySeq[h.Seq] = a
			}
			a.score += 1.0 / float64(RRFK+rank+1)
		}
	}

	fused := make([]rag.Hit, 0, len(bySeq))
	for _, a := range bySeq {
		h := a.hit
		h.Score = a.score
		fused = append(fused, h)
	}
	slices.SortFunc(fused, func(a, b rag.Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
	return fused[:min(max(k, 0), len(fused))]
}
