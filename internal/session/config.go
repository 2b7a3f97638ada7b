package session

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/54b3r/pdfqa-go/internal/budget"
	"github.com/54b3r/pdfqa-go/internal/chunker"
	"github.com/54b3r/pdfqa-go/internal/embedder"
	"github.com/54b3r/pdfqa-go/internal/rag"
)

const (
	// DefaultTopK is the number of passages retrieved per question.
	DefaultTopK = 4

	// DefaultEmbedTimeout bounds a single embedding call.
	DefaultEmbedTimeout = 60 * time.Second

	// DefaultGenerateTimeout bounds a single generation call.
	DefaultGenerateTimeout = 120 * time.Second

	// DefaultRetryAttempts is the total number of tries for a transient failure.
	DefaultRetryAttempts = 3

	// DefaultRetryInterval is the first backoff delay.
	DefaultRetryInterval = 250 * time.Millisecond

	// hybridPoolFactor widens each ranked list before fusion.
	hybridPoolFactor = 3
)

// Config holds the session tuning parameters. Zero values select defaults.
type Config struct {
	// TopK is the number of passages retrieved per question.
	// Env: RETRIEVAL_TOP_K (default: 4).
	TopK int

	// Hybrid fuses BM25 keyword ranking with vector ranking.
	// Env: RETRIEVAL_HYBRID (default: false).
	Hybrid bool

	// ChunkSize and ChunkOverlap are the chunker parameters in runes.
	// Env: CHUNK_SIZE (default: 1000), CHUNK_OVERLAP (default: 200).
	ChunkSize    int
	ChunkOverlap int

	// Separator is the preferred chunk boundary. Env: CHUNK_SEPARATOR.
	Separator string

	// EmbedBatchSize is the number of chunks per embedding request at
	// ingest. Env: EMBEDDING_BATCH_SIZE (default: 64).
	EmbedBatchSize int

	// MaxContextTokens caps the estimated prompt size. Negative disables the
	// budget. Env: MAX_CONTEXT_TOKENS (default: 6000).
	MaxContextTokens int

	// EmbedTimeout bounds each embedding attempt. Env: EMBED_TIMEOUT.
	EmbedTimeout time.Duration

	// GenerateTimeout bounds each generation attempt. Env: GENERATE_TIMEOUT.
	GenerateTimeout time.Duration

	// RetryAttempts is the total number of tries for embedding and generation
	// calls that fail transiently. 1 disables retries. Env: RETRY_ATTEMPTS.
	RetryAttempts int

	// RetryInterval is the initial backoff delay between attempts.
	RetryInterval time.Duration

	// HistoryMaxTurns bounds the in-memory conversation log. Zero keeps every
	// turn. Env: HISTORY_MAX_TURNS.
	HistoryMaxTurns int
}

// ConfigFromEnv resolves session settings from environment variables.
// Unparseable values fall back to their defaults.
func ConfigFromEnv() Config {
	return Config{
		TopK:             getEnvInt("RETRIEVAL_TOP_K", DefaultTopK),
		Hybrid:           getEnvBool("RETRIEVAL_HYBRID"),
		ChunkSize:        getEnvInt("CHUNK_SIZE", chunker.DefaultSize),
		ChunkOverlap:     getEnvInt("CHUNK_OVERLAP", chunker.DefaultOverlap),
		Separator:        os.Getenv("CHUNK_SEPARATOR"),
		EmbedBatchSize:   getEnvInt("EMBEDDING_BATCH_SIZE", embedder.DefaultBatchSize),
		MaxContextTokens: getEnvInt("MAX_CONTEXT_TOKENS", budget.DefaultMaxContextTokens),
		EmbedTimeout:     getEnvDuration("EMBED_TIMEOUT", DefaultEmbedTimeout),
		GenerateTimeout:  getEnvDuration("GENERATE_TIMEOUT", DefaultGenerateTimeout),
		RetryAttempts:    getEnvInt("RETRY_ATTEMPTS", DefaultRetryAttempts),
		HistoryMaxTurns:  getEnvInt("HISTORY_MAX_TURNS", 0),
	}
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.TopK == 0 {
		c.TopK = DefaultTopK
	}
	if c.ChunkSize == 0 && c.ChunkOverlap == 0 {
		c.ChunkSize, c.ChunkOverlap = chunker.DefaultSize, chunker.DefaultOverlap
	}
	if c.EmbedBatchSize == 0 {
		c.EmbedBatchSize = embedder.DefaultBatchSize
	}
	if c.MaxContextTokens == 0 {
		c.MaxContextTokens = budget.DefaultMaxContextTokens
	}
	if c.EmbedTimeout == 0 {
		c.EmbedTimeout = DefaultEmbedTimeout
	}
	if c.GenerateTimeout == 0 {
		c.GenerateTimeout = DefaultGenerateTimeout
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.TopK < 0:
		return rag.Errorf(rag.ErrInvalidConfiguration, "session: RETRIEVAL_TOP_K must be positive, got %d", c.TopK)
	case c.EmbedBatchSize < 0:
		return rag.Errorf(rag.ErrInvalidConfiguration, "session: EMBEDDING_BATCH_SIZE must be positive, got %d", c.EmbedBatchSize)
	case c.EmbedTimeout < 0 || c.GenerateTimeout < 0:
		return rag.Errorf(rag.ErrInvalidConfiguration, "session: timeouts must be positive")
	case c.RetryAttempts < 0:
		return rag.Errorf(rag.ErrInvalidConfiguration, "session: RETRY_ATTEMPTS must be positive, got %d", c.RetryAttempts)
	case c.HistoryMaxTurns < 0:
		return rag.Errorf(rag.ErrInvalidConfiguration, "session: HISTORY_MAX_TURNS must not be negative, got %d", c.HistoryMaxTurns)
	}
	return nil
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration parses a Go duration such as "90s", or fallback.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvBool reports whether the named variable is set to a true value.
func getEnvBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
