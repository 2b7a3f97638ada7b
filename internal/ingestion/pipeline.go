// Package ingestion implements the document ingestion pipeline.
// It extracts page text from uploaded documents, chunks the content, embeds
// each chunk, and builds a fresh search index from the results. The pipeline
// never touches session state: the caller decides whether to install the
// index it returns.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/pdfqa-go/internal/chunker"
	"github.com/54b3r/pdfqa-go/internal/keyword"
	"github.com/54b3r/pdfqa-go/internal/logging"
	"github.com/54b3r/pdfqa-go/internal/rag"
)

// Extractor turns a raw document into its non-empty pages.
type Extractor interface {
	Extract(ctx context.Context, doc rag.Document) ([]rag.Page, error)
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of runes per chunk.
	// Size and overlap default to 1000 and 200 when both are zero.
	ChunkSize int

	// ChunkOverlap is the number of runes shared by consecutive chunks of a
	// page.
	ChunkOverlap int

	// Separator is the preferred cut point inside a chunk window.
	// Defaults to "\n" if empty.
	Separator string

	// Hybrid builds a keyword index alongside the vector index.
	Hybrid bool
}

// Report summarises a completed ingest.
type Report struct {
	// Documents is the number of documents processed.
	Documents int `json:"documents"`

	// Pages is the number of non-empty pages extracted.
	Pages int `json:"pages"`

	// Chunks is the number of chunks indexed.
	Chunks int `json:"chunks"`

	// Dimension is the embedding dimension of the index, 0 when empty.
	Dimension int `json:"dimension"`
}

// Result is the output of a successful Run. Ownership of Index and Keyword
// passes to the caller, who must Close them when they are replaced.
type Result struct {
	// Generation uniquely identifies this ingest in logs.
	Generation string

	// Index is the freshly built vector index.
	Index rag.Searcher

	// Keyword is the BM25 index over the same chunks, nil unless Hybrid.
	Keyword *keyword.Index

	// Report holds the ingest counts.
	Report Report
}

// Close releases both indices.
func (r *Result) Close() error {
	var err error
	if r.Keyword != nil {
		err = r.Keyword.Close()
	}
	if r.Index != nil {
		if cerr := r.Index.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Pipeline orchestrates the extract → chunk → embed → build flow for a
// batch of documents.
type Pipeline struct {
	// extractor converts raw documents into pages.
	extractor Extractor

	// chunker splits pages into overlapping chunks.
	chunker *chunker.Chunker

	// embedder converts chunk text into dense vector embeddings.
	embedder rag.Embedder

	// builder constructs the vector index.
	builder rag.Builder

	// hybrid enables the keyword index.
	hybrid bool
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(extractor Extractor, embedder rag.Embedder, builder rag.Builder, cfg *Config) (*Pipeline, error) {
	if extractor == nil {
		return nil, rag.Errorf(rag.ErrInvalidConfiguration, "ingestion: extractor must not be nil")
	}
	if embedder == nil {
		return nil, rag.Errorf(rag.ErrInvalidConfiguration, "ingestion: embedder must not be nil")
	}
	if builder == nil {
		return nil, rag.Errorf(rag.ErrInvalidConfiguration, "ingestion: builder must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	size, overlap := cfg.ChunkSize, cfg.ChunkOverlap
	if size == 0 && overlap == 0 {
		size, overlap = chunker.DefaultSize, chunker.DefaultOverlap
	}

	ch, err := chunker.New(chunker.Config{Size: size, Overlap: overlap, Separator: cfg.Separator})
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}

	return &Pipeline{
		extractor: extractor,
		chunker:   ch,
		embedder:  embedder,
		builder:   builder,
		hybrid:    cfg.Hybrid,
	}, nil
}

// Run extracts, chunks, embeds, and indexes all provided documents.
// Any failure aborts the whole run and releases whatever was built.
// Progress is reported via the optional progress callback.
func (p *Pipeline) Run(ctx context.Context, docs []rag.Document, progress func(msg string)) (*Result, error) {
	if len(docs) == 0 {
		return nil, rag.Errorf(rag.ErrValidation, "ingestion: no documents provided")
	}
	if progress == nil {
		progress = func(string) {}
	}

	gen := uuid.NewString()
	log := logging.FromContext(ctx).With("generation", gen)
	start := time.Now()

	var pages []rag.Page
	for _, doc := range docs {
		progress(fmt.Sprintf("extracting %s", doc.Name))

		docPages, err := p.extractor.Extract(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("ingestion: extract %q: %w", doc.Name, err)
		}
		log.Debug("ingestion: extracted document", "document", doc.Name, "pages", len(docPages))
		pages = append(pages, docPages...)
	}

	chunks := p.chunker.Split(pages)
	progress(fmt.Sprintf("chunked %d pages into %d chunks", len(pages), len(chunks)))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var vectors [][]float32
	if len(texts) > 0 {
		var err error
		vectors, err = p.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, rag.Wrap(rag.ErrEmbeddingUnavailable, "ingestion: embed chunks", err)
		}
		if len(vectors) != len(chunks) {
			return nil, rag.Errorf(rag.ErrEmbeddingUnavailable,
				"ingestion: embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
		}
	}
	progress(fmt.Sprintf("embedded %d chunks", len(vectors)))

	idx, err := p.builder.Build(ctx, chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("ingestion: build index: %w", err)
	}
	res := &Result{
		Generation: gen,
		Index:      idx,
		Report: Report{
			Documents: len(docs),
			Pages:     len(pages),
			Chunks:    len(chunks),
			Dimension: idx.Dimension(),
		},
	}

	if p.hybrid {
		kw, err := keyword.Build(ctx, chunks)
		if err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("ingestion: build keyword index: %w", err)
		}
		res.Keyword = kw
	}

	log.Info("ingestion: index built",
		"documents", res.Report.Documents,
		"pages", res.Report.Pages,
		"chunks", res.Report.Chunks,
		"dimension", res.Report.Dimension,
		"hybrid", p.hybrid,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	progress(fmt.Sprintf("indexed %d chunks", len(chunks)))
	return res, nil
}
