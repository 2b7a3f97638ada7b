// Package rag defines the shared contracts of the retrieval pipeline: the
// data types that flow between stages, the client interfaces for the
// embedding and language models, and the error taxonomy every stage reports
// through. Concrete implementations live in sibling packages so the session
// layer never depends on a specific backend.
package rag

import (
	"context"
	"encoding/json"
	"strconv"
)

// Document is a raw uploaded file. It is consumed during ingest and never
// retained by the session.
type Document struct {
	// Name is the client-supplied filename, used for format detection and logs.
	Name string

	// Data is the raw byte stream.
	Data []byte
}

// Page is the extracted text of a single document page.
type Page struct {
	// Number is the 1-based page position in its document.
	Number int

	// Text is the page text with surrounding whitespace trimmed.
	// Extractors never emit a Page with empty Text.
	Text string
}

// Chunk is a bounded span of a page prepared for embedding.
type Chunk struct {
	// Text is the exact rune span [Start, End) of the page text.
	Text string

	// Page is the originating page number.
	Page int

	// Start is the rune offset of the first character in the page text.
	Start int

	// End is the rune offset one past the last character in the page text.
	End int
}

// Hit is a single search result returned by a vector index.
type Hit struct {
	// Text is the indexed chunk text.
	Text string

	// Page is the originating page number of the chunk.
	Page int

	// Score is the similarity score; higher is more relevant.
	Score float64

	// Seq is the insertion position of the entry in its index. Used to keep
	// tie-breaking stable across backends.
	Seq int
}

// Turn is one question/answer exchange in the conversation log.
type Turn struct {
	// Question is the user's question as received.
	Question string `json:"question"`

	// Answer is the generated answer text.
	Answer string `json:"answer"`
}

// PageRef is a citation page number. The zero value encodes as "Unknown".
type PageRef int

// MarshalJSON encodes the page number, or "Unknown" when it is not known.
func (p PageRef) MarshalJSON() ([]byte, error) {
	if p <= 0 {
		return []byte(`"Unknown"`), nil
	}
	return []byte(strconv.Itoa(int(p))), nil
}

// UnmarshalJSON accepts either an integer page or the "Unknown" marker.
func (p *PageRef) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*p = PageRef(n)
		return nil
	}
	*p = 0
	return nil
}

// Citation is a retrieved passage returned alongside an answer.
type Citation struct {
	// Page is the page the passage came from.
	Page PageRef `json:"page"`

	// Content is the passage text.
	Content string `json:"content"`
}

// Answer is the result of a successful query.
type Answer struct {
	// Response is the generated answer.
	Response string `json:"response"`

	// Citations are the passages handed to the model, most relevant first.
	Citations []Citation `json:"citations"`
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines and must be
// deterministic for a fixed model.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces an answer for a question given ranked context passages.
// Implementations must not retry; retry policy belongs to the caller.
type Generator interface {
	// Generate returns the model's answer. Passages are presented to the
	// model in the order given.
	Generate(ctx context.Context, question string, passages []string) (string, error)
}

// Searcher is a built, immutable vector index.
// Implementations must be safe to call from multiple goroutines.
type Searcher interface {
	// Search returns up to k hits ordered by descending similarity, ties
	// broken by insertion order.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)

	// Len returns the number of indexed entries.
	Len() int

	// Dimension returns the shared vector dimension, or 0 for an empty index.
	Dimension() int

	// Close releases any resources held by the index.
	Close() error
}

// Builder constructs a fresh Searcher from parallel chunk and vector slices.
type Builder interface {
	// Build validates the input and returns a ready index. It must not
	// mutate any previously built index.
	Build(ctx context.Context, chunks []Chunk, vectors [][]float32) (Searcher, error)
}

// EmbedOne embeds a single text using e.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, Errorf(ErrEmbeddingUnavailable, "embedder returned %d vectors for 1 input", len(vecs))
	}
	return vecs[0], nil
}
