// Package extract turns uploaded document bytes into ordered page text.
//
// PDFs are decoded with github.com/ledongthuc/pdf. Plain text and markdown
// uploads are accepted as well; a form feed separates their pages, which is
// the convention pdftotext uses for its output.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/54b3r/pdfqa-go/internal/rag"
)

// Format identifies how a document's bytes are decoded.
type Format string

const (
	// FormatPDF is a PDF byte stream.
	FormatPDF Format = "pdf"
	// FormatText is UTF-8 plain text or markdown.
	FormatText Format = "text"
	// FormatUnknown is anything else.
	FormatUnknown Format = ""
)

// pageBreak separates pages in plain-text uploads.
const pageBreak = "\f"

// PDFDecoder returns the raw text of every page of a PDF, in order. The
// returned slice has one entry per page, empty pages included.
type PDFDecoder func(data []byte) ([]string, error)

// Extractor converts documents into pages. The zero value is not usable;
// construct one with New.
type Extractor struct {
	decodePDF PDFDecoder
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPDFDecoder replaces the PDF decoder. Used by tests.
func WithPDFDecoder(d PDFDecoder) Option {
	return func(e *Extractor) { e.decodePDF = d }
}

// New returns an Extractor backed by the ledongthuc/pdf decoder.
func New(opts ...Option) *Extractor {
	e := &Extractor{decodePDF: decodePDF}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Detect reports the format of doc from its magic bytes, falling back to the
// filename extension.
func Detect(doc rag.Document) Format {
	if bytes.HasPrefix(doc.Data, []byte("%PDF-")) {
		return FormatPDF
	}
	switch strings.ToLower(filepath.Ext(doc.Name)) {
	case ".pdf":
		return FormatPDF
	case ".txt", ".md", ".markdown", ".text":
		return FormatText
	}
	return FormatUnknown
}

// Extract returns the non-empty pages of doc in document order. Page numbers
// are 1-based positions in the document, so skipping a blank page leaves a
// gap in the numbering. Every failure wraps rag.ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, doc rag.Document) ([]rag.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	var raw []string
	switch Detect(doc) {
	case FormatPDF:
		var err error
		raw, err = e.safeDecode(doc.Data)
		if err != nil {
			return nil, rag.Wrap(rag.ErrExtraction, fmt.Sprintf("extract: decode %q", doc.Name), err)
		}
	case FormatText:
		if !utf8.Valid(doc.Data) {
			return nil, rag.Errorf(rag.ErrExtraction, "extract: %q: unsupported encoding, expected UTF-8", doc.Name)
		}
		raw = strings.Split(string(doc.Data), pageBreak)
	default:
		return nil, rag.Errorf(rag.ErrExtraction, "extract: %q: unsupported format", doc.Name)
	}

	pages := make([]rag.Page, 0, len(raw))
	for i, text := range raw {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, rag.Page{Number: i + 1, Text: text})
	}
	return pages, nil
}

// safeDecode runs the PDF decoder and converts a decoder panic on malformed
// input into an error.
func (e *Extractor) safeDecode(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	return e.decodePDF(data)
}

// decodePDF is the default PDFDecoder.
func decodePDF(data []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	n := r.NumPage()
	pages := make([]string, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages[i-1] = text
	}
	return pages, nil
}
