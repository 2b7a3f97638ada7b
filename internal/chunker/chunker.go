// Package chunker splits extracted pages into overlapping, bounded chunks
// that keep their page provenance.
//
// Lengths and offsets are measured in runes, so multi-byte text is never cut
// inside a character.
package chunker

import (
	"slices"
	"strings"

	"github.com/54b3r/pdfqa-go/internal/rag"
)

const (
	// DefaultSize is the target maximum number of runes per chunk.
	DefaultSize = 1000

	// DefaultOverlap is the number of runes shared by consecutive chunks.
	DefaultOverlap = 200

	// DefaultSeparator is the preferred cut boundary.
	DefaultSeparator = "\n"
)

// Config holds the chunking parameters.
type Config struct {
	// Size is the maximum chunk length in runes. Must be positive.
	Size int

	// Overlap is the number of runes a chunk shares with its predecessor.
	// Must satisfy 0 <= Overlap < Size.
	Overlap int

	// Separator is the boundary searched for inside each window.
	// Defaults to DefaultSeparator when empty.
	Separator string
}

// Chunker splits pages into chunks. It is immutable and safe for concurrent use.
type Chunker struct {
	size    int
	overlap int
	sep     []rune
}

// New validates cfg and returns a Chunker. A non-positive size or an overlap
// outside [0, Size) fails with rag.ErrInvalidConfiguration.
func New(cfg Config) (*Chunker, error) {
	if cfg.Size <= 0 {
		return nil, rag.Errorf(rag.ErrInvalidConfiguration, "chunk size must be positive, got %d", cfg.Size)
	}
	if cfg.Overlap < 0 {
		return nil, rag.Errorf(rag.ErrInvalidConfiguration, "chunk overlap must not be negative, got %d", cfg.Overlap)
	}
	if cfg.Overlap >= cfg.Size {
		return nil, rag.Errorf(rag.ErrInvalidConfiguration,
			"chunk overlap (%d) must be smaller than chunk size (%d)", cfg.Overlap, cfg.Size)
	}
	sep := cfg.Separator
	if sep == "" {
		sep = DefaultSeparator
	}
	return &Chunker{size: cfg.Size, overlap: cfg.Overlap, sep: []rune(sep)}, nil
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured chunk overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split chunks every page in order. Offsets index the page text as given.
// Whitespace-only pages yield no chunks.
func (c *Chunker) Split(pages []rag.Page) []rag.Chunk {
	var chunks []rag.Chunk
	for _, p := range pages {
		chunks = append(chunks, c.splitPage(p)...)
	}
	return chunks
}

// splitPage walks one page with a cursor. Each step takes the window
// [cursor, cursor+size), cuts after the last separator that still leaves a
// chunk longer than the overlap, or at the window edge otherwise, then moves
// the cursor to end-overlap. The cursor strictly increases and never passes
// the previous end, so no rune is dropped.
func (c *Chunker) splitPage(p rag.Page) []rag.Chunk {
	if strings.TrimSpace(p.Text) == "" {
		return nil
	}
	text := []rune(p.Text)
	n := len(text)

	chunks := make([]rag.Chunk, 0, n/(c.size-c.overlap)+1)
	cursor := 0
	for {
		if n-cursor <= c.size {
			chunks = append(chunks, rag.Chunk{Text: string(text[cursor:]), Page: p.Number, Start: cursor, End: n})
			return chunks
		}

		end := cursor + c.size
		if cut := c.lastCut(text, cursor, end); cut > 0 {
			end = cut
		}
		chunks = append(chunks, rag.Chunk{Text: string(text[cursor:end]), Page: p.Number, Start: cursor, End: end})
		cursor = end - c.overlap
	}
}

// lastCut returns the position just past the last separator inside
// text[cursor:limit] for which the resulting chunk is longer than the
// overlap, or 0 when there is none.
func (c *Chunker) lastCut(text []rune, cursor, limit int) int {
	sl := len(c.sep)
	for i := limit - sl; i >= cursor; i-- {
		cut := i + sl
		if cut-cursor <= c.overlap {
			return 0
		}
		if slices.Equal(text[i:cut], c.sep) {
			return cut
		}
	}
	return 0
}
