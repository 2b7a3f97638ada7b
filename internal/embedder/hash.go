package embedder

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// HashEmbedder is an offline embedder based on signed feature hashing of
// lower-cased word tokens. Vectors are L2-normalised, so cosine similarity
// reflects token overlap. It needs no model or network and is deterministic,
// which makes it suitable for tests and air-gapped demos; retrieval quality is
// far below a neural model.
type HashEmbedder struct {
	dim int
}

// tokenPattern matches runs of letters or digits, allowing inner apostrophes.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

// NewHashEmbedder returns a HashEmbedder producing vectors of length dim.
// A non-positive dim selects defaultHashDimensions.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = defaultHashDimensions
	}
	return &HashEmbedder{dim: dim}
}

// Dimension returns the output vector length.
func (e *HashEmbedder) Dimension() int { return e.dim }

// Embed converts a batch of texts into their corresponding embeddings.
// Text with no tokens maps to the zero vector.
func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	acc := make([]float64, e.dim)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		h := xxhash.Sum64String(tok)
		sign := 1.0
		if h>>63 == 1 {
			sign = -1.0
		}
		acc[h%uint64(e.dim)] += sign
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, e.dim)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}
