package keyword

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/pdfqa-go/internal/rag"
)

func TestIndex_Search(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	chunks := []rag.Chunk{
		{Text: "Invoices are payable within thirty days.", Page: 1},
		{Text: "The warranty covers manufacturing defects.", Page: 2},
		{Text: "Warranty claims require the original invoice.", Page: 5},
	}
	idx, err := Build(ctx, chunks)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, 3, idx.Len())

	hits, err := idx.Search(ctx, "warranty", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Contains(t, []int{1, 2}, h.Seq)
		assert.Equal(t, chunks[h.Seq].Text, h.Text)
		assert.Equal(t, chunks[h.Seq].Page, h.Page)
		assert.Positive(t, h.Score)
	}
}

func TestIndex_QuerySyntaxIsNotInterpreted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx, err := Build(ctx, []rag.Chunk{{Text: "plain text", Page: 1}})
	require.NoError(t, err)
	defer idx.Close()

	_, err = idx.Search(ctx, `text AND (+"unbalanced`, 3)
	assert.NoError(t, err)
}

func TestIndex_Empty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx, err := Build(ctx, nil)
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Search(ctx, "anything", 4)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFuse(t *testing.T) {
	t.Parallel()

	vector := []rag.Hit{{Text: "a", Seq: 0}, {Text: "b", Seq: 1}, {Text: "c", Seq: 2}}
	lexical := []rag.Hit{{Text: "c", Seq: 2}, {Text: "d", Seq: 3}}

	got := Fuse(3, vector, lexical)
	require.Len(t, got, 3)

	// c: 1/63 + 1/61, a: 1/61, b: 1/62 == d: 1/62 (tie broken by seq).
	assert.Equal(t, []int{2, 0, 1}, []int{got[0].Seq, got[1].Seq, got[2].Seq})
	assert.InDelta(t, 1.0/63+1.0/61, got[0].Score, 1e-12)
}

func TestFuse_Bounds(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Fuse(4))
	assert.Empty(t, Fuse(0, []rag.Hit{{Seq: 1}}))
	assert.Len(t, Fuse(10, []rag.Hit{{Seq: 1}, {Seq: 2}}), 2)
}
