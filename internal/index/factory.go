package index

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/pdfqa-go/internal/rag"
)

// Config selects and configures the index backend.
type Config struct {
	// Backend is "memory" (default) or "qdrant".
	Backend string

	// Qdrant holds connection settings, used when Backend is "qdrant".
	Qdrant QdrantConfig
}

// ConfigFromEnv reads INDEX_BACKEND and the QDRANT_* variables.
func ConfigFromEnv() Config {
	backend := strings.ToLower(os.Getenv("INDEX_BACKEND"))
	if backend == "" {
		backend = "memory"
	}
	port, _ := strconv.Atoi(os.Getenv("QDRANT_PORT"))
	return Config{
		Backend: backend,
		Qdrant: QdrantConfig{
			Host:             os.Getenv("QDRANT_HOST"),
			Port:             port,
			APIKey:           os.Getenv("QDRANT_API_KEY"),
			UseTLS:           os.Getenv("QDRANT_TLS") == "true",
			CollectionPrefix: os.Getenv("QDRANT_COLLECTION_PREFIX"),
		},
	}
}

// NewBuilder returns the rag.Builder for cfg and a closer for any connection
// it opened. On success the closer is never nil.
func NewBuilder(cfg Config) (rag.Builder, io.Closer, error) {
	switch cfg.Backend {
	case "memory", "":
		return MemoryBuilder{}, nopCloser{}, nil
	case "qdrant":
		qcfg := cfg.Qdrant
		b, err := NewQdrantBuilder(&qcfg)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	default:
		return nil, nil, rag.Errorf(rag.ErrInvalidConfiguration,
			"index: unknown backend %q, valid values: memory, qdrant", cfg.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
