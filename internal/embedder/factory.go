package embedder

import (
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/pdfqa-go/internal/rag"
)

// Default embedding models and endpoints per backend.
const (
	defaultOllamaModel     = "nomic-embed-text"
	defaultOllamaHost      = "http://localhost:11434"
	defaultOpenAIModel     = "text-embedding-3-small"
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultAzureAPIVersion = "2025-04-01-preview"

	// defaultHashDimensions is the output dimension of the hash embedder.
	defaultHashDimensions = 384
)

// Backends lists the accepted EMBEDDING_PROVIDER values.
var Backends = []string{"ollama", "openai", "azure", "hash"}

// Config holds the resolved embedding settings.
type Config struct {
	// Backend is one of Backends.
	Backend string
	// Model is the embedding model or Azure deployment name.
	Model string
	// APIKey authenticates against openai or azure.
	APIKey string
	// Endpoint is the backend base URL (Ollama host, OpenAI base URL or
	// Azure resource URL).
	Endpoint string
	// APIVersion is the Azure OpenAI API version.
	APIVersion string
	// Dimensions requests a vector length. 0 keeps the model default.
	Dimensions int
	// BatchSize is the number of texts per backend request.
	BatchSize int
}

// ConfigFromEnv resolves the embedding settings, inheriting from the chat
// provider configuration when embedding-specific overrides are not set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER, else MODEL_PROVIDER when it names an embedding
//     backend, else ollama
//  2. Per-backend credentials are inherited from the chat provider's env vars
//  3. EMBEDDING_MODEL overrides the default model for the resolved backend
//  4. EMBEDDING_API_KEY overrides the inherited API key
//  5. EMBEDDING_ENDPOINT overrides the inherited endpoint
//  6. EMBEDDING_DIMENSIONS overrides the default dimensions
//  7. EMBEDDING_BATCH_SIZE sets the request batch size (default 64)
func ConfigFromEnv() Config {
	backend := strings.ToLower(getEnv("EMBEDDING_PROVIDER"))
	if backend == "" {
		switch p := strings.ToLower(getEnv("MODEL_PROVIDER")); p {
		case "openai", "azure":
			backend = p
		default:
			backend = "ollama"
		}
	}

	cfg := Config{
		Backend:    backend,
		Model:      getEnv("EMBEDDING_MODEL"),
		APIKey:     getEnv("EMBEDDING_API_KEY"),
		Endpoint:   getEnv("EMBEDDING_ENDPOINT"),
		APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", defaultAzureAPIVersion),
		Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
		BatchSize:  getEnvInt("EMBEDDING_BATCH_SIZE", DefaultBatchSize),
	}

	switch backend {
	case "ollama":
		if cfg.Endpoint == "" {
			cfg.Endpoint = getEnvOrDefault("OLLAMA_HOST", defaultOllamaHost)
		}
		if cfg.Model == "" {
			cfg.Model = defaultOllamaModel
		}
	case "openai":
		if cfg.APIKey == "" {
			cfg.APIKey = getEnv("OPENAI_API_KEY")
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = getEnvOrDefault("OPENAI_BASE_URL", defaultOpenAIBaseURL)
		}
		if cfg.Model == "" {
			cfg.Model = defaultOpenAIModel
		}
	case "azure":
		if cfg.APIKey == "" {
			cfg.APIKey = getEnv("AZURE_OPENAI_API_KEY")
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = getEnv("AZURE_OPENAI_ENDPOINT")
		}
		if cfg.Model == "" {
			cfg.Model = defaultOpenAIModel
		}
	case "hash":
		if cfg.Dimensions == 0 {
			cfg.Dimensions = defaultHashDimensions
		}
	}
	return cfg
}

// New constructs a batching rag.Embedder for cfg. Missing credentials or an
// unknown backend fail with rag.ErrInvalidConfiguration.
func New(cfg Config) (rag.Embedder, error) {
	var inner rag.Embedder
	switch cfg.Backend {
	case "ollama":
		inner = NewOllamaEmbedder(&OllamaConfig{Host: cfg.Endpoint, Model: cfg.Model})

	case "openai":
		if cfg.APIKey == "" {
			return nil, rag.Errorf(rag.ErrInvalidConfiguration,
				"embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		inner = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})

	case "azure":
		if cfg.APIKey == "" {
			return nil, rag.Errorf(rag.ErrInvalidConfiguration,
				"embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if cfg.Endpoint == "" {
			return nil, rag.Errorf(rag.ErrInvalidConfiguration,
				"embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		inner = NewAzureEmbedder(&AzureConfig{
			Endpoint:   cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Deployment: cfg.Model,
			Dimensions: cfg.Dimensions,
			APIVersion: cfg.APIVersion,
		})

	case "hash":
		inner = NewHashEmbedder(cfg.Dimensions)

	default:
		return nil, rag.Errorf(rag.ErrInvalidConfiguration,
			"embedder: unknown backend %q, valid values: %s", cfg.Backend, strings.Join(Backends, ", "))
	}

	return NewBatched(inner, cfg.BatchSize), nil
}

// NewFromEnv is New(ConfigFromEnv()).
func NewFromEnv() (rag.Embedder, error) {
	return New(ConfigFromEnv())
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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
