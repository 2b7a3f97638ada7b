package rag

import (
	"errors"
	"fmt"
)

// Error categories reported by the pipeline. Callers classify failures with
// errors.Is; every stage wraps one of these.
var (
	// ErrExtraction reports a document that could not be parsed.
	ErrExtraction = errors.New("extraction error")

	// ErrInvalidConfiguration reports bad pipeline parameters.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDimensionMismatch reports embedding vectors of inconsistent size.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrEmbeddingUnavailable reports a failing embedding backend.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrGenerationUnavailable reports a failing or misbehaving language model.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrNotReady reports a query issued before any successful ingest.
	ErrNotReady = errors.New("no index available; ingest first")

	// ErrValidation reports invalid request input.
	ErrValidation = errors.New("validation error")
)

// kinds is ordered so Kind reports the most specific category first.
var kinds = []struct {
	err  error
	name string
}{
	{ErrNotReady, "not_ready"},
	{ErrValidation, "validation"},
	{ErrInvalidConfiguration, "invalid_configuration"},
	{ErrExtraction, "extraction"},
	{ErrDimensionMismatch, "dimension_mismatch"},
	{ErrEmbeddingUnavailable, "embedding_unavailable"},
	{ErrGenerationUnavailable, "generation_unavailable"},
}

// categorised joins a category sentinel with a descriptive message so that
// errors.Is matches the category while Error() stays human-readable.
type categorised struct {
	kind error
	msg  string
	err  error
}

func (e *categorised) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *categorised) Unwrap() []error {
	if e.err != nil {
		return []error{e.kind, e.err}
	}
	return []error{e.kind}
}

// Errorf returns an error in category kind with a formatted message.
func Errorf(kind error, format string, args ...any) error {
	return &categorised{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap returns err tagged with category kind. Returns nil if err is nil and
// err unchanged if it already belongs to kind.
func Wrap(kind error, msg string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return &categorised{kind: kind, msg: msg, err: err}
}

// Kind returns a short machine-readable name for the category of err, or
// "internal" when err carries none.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}

// IsClientError reports whether err was caused by the request rather than by
// the service or its dependencies.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotReady) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidConfiguration)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable) || errors.Is(err, ErrGenerationUnavailable)
}
