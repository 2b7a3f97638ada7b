package embedder

import (
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/54b3r/pdfqa-go/internal/rag"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding. If the configured model matches
// any of these, a warning is emitted so the operator knows they may have
// misconfigured the pipeline.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate is a pre-flight check of cfg. It returns rag.ErrInvalidConfiguration
// when the configuration is clearly broken (unknown backend, missing
// credentials) and logs a warning when the model looks like a chat model
// rather than an embedding model.
//
// Call it at startup so operators get a clear error instead of a cryptic
// failure during the first ingest.
func Validate(cfg Config, log *slog.Logger) error {
	if !slices.Contains(Backends, cfg.Backend) {
		return rag.Errorf(rag.ErrInvalidConfiguration,
			"embedder: unknown backend %q, valid values: %s", cfg.Backend, strings.Join(Backends, ", "))
	}

	// Inheriting a chat provider silently is a common misconfiguration.
	if cfg.Backend != "ollama" && os.Getenv("EMBEDDING_PROVIDER") == "" {
		log.Warn("embedder: EMBEDDING_PROVIDER is not set, inheriting MODEL_PROVIDER as embedding backend",
			slog.String("backend", cfg.Backend),
			slog.String("hint", "set EMBEDDING_PROVIDER=ollama (or openai/azure/hash) to be explicit"),
		)
	}

	switch cfg.Backend {
	case "openai":
		if cfg.APIKey == "" {
			return rag.Errorf(rag.ErrInvalidConfiguration,
				"embedder: no OpenAI API key found, set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
	case "azure":
		if cfg.APIKey == "" {
			return rag.Errorf(rag.ErrInvalidConfiguration,
				"embedder: no Azure API key found, set AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if cfg.Endpoint == "" {
			return rag.Errorf(rag.ErrInvalidConfiguration,
				"embedder: no Azure endpoint found, set AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
	case "hash":
		log.Warn("embedder: using the offline hash embedder; retrieval quality is lexical only")
	}

	if cfg.Model != "" && looksLikeChatModel(cfg.Model) {
		log.Warn("embedder: embedding model looks like a chat model, not an embedding model; "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", cfg.Model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}

	return nil
}
