// Package provider selects and constructs the Eino chat model that answers
// questions. Supported backends: Ollama, OpenAI, Azure OpenAI, Google Gemini
// and Volcengine Ark.
package provider

import (
	"fmt"
	"strings"

	"github.com/54b3r/pdfqa-go/internal/rag"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendArk selects the Volcengine Ark model runtime.
	BackendArk Backend = "ark"
)

// ProviderOllama holds Ollama settings.
type ProviderOllama struct {
	// Host is the Ollama server base URL. Env: OLLAMA_HOST.
	Host string
	// Model is the chat model name. Env: OLLAMA_MODEL (default: llama3).
	Model string
}

// ProviderOpenAI holds OpenAI settings.
type ProviderOpenAI struct {
	// APIKey is the bearer token. Env: OPENAI_API_KEY.
	APIKey string
	// Model is the chat model name. Env: OPENAI_MODEL (default: gpt-4o-mini).
	Model string
	// BaseURL overrides the API base. Env: OPENAI_BASE_URL.
	BaseURL string
}

// ProviderAzureOpenAI holds Azure OpenAI settings.
type ProviderAzureOpenAI struct {
	// APIKey is the api-key header value. Env: AZURE_OPENAI_API_KEY.
	APIKey string
	// Endpoint is the resource URL. Env: AZURE_OPENAI_ENDPOINT.
	Endpoint string
	// Deployment is the chat deployment name. Env: AZURE_OPENAI_DEPLOYMENT.
	Deployment string
	// APIVersion is the REST API version. Env: AZURE_OPENAI_API_VERSION.
	APIVersion string
}

// ProviderGemini holds Google Gemini settings.
type ProviderGemini struct {
	// APIKey is the AI Studio key. Env: GOOGLE_API_KEY.
	APIKey string
	// Model is the model name. Env: GEMINI_MODEL (default: gemini-1.5-flash).
	Model string
}

// ProviderArk holds Volcengine Ark settings.
type ProviderArk struct {
	// APIKey is the Ark API key. Env: ARK_API_KEY.
	APIKey string
	// Model is the endpoint or model id. Env: ARK_MODEL.
	Model string
	// BaseURL overrides the regional API base. Env: ARK_BASE_URL.
	BaseURL string
}

// SharedTuning holds generation parameters shared by all backends.
type SharedTuning struct {
	// MaxTokens caps the number of tokens generated per answer.
	// Env: MODEL_MAX_TOKENS (default: 1024).
	MaxTokens int
	// Temperature controls response randomness (0.0 to 1.0).
	// Env: MODEL_TEMPERATURE (default: 0.1).
	Temperature float32
}

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values. Only the block matching
// Backend is read.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Gemini      ProviderGemini
	Ark         ProviderArk
	Tuning      SharedTuning
}

// Validate reports the first missing setting for the selected backend as a
// rag.ErrInvalidConfiguration naming the environment variable to set.
func (c *Config) Validate() error {
	missing := func(env string) error {
		return rag.Errorf(rag.ErrInvalidConfiguration, "provider: %s backend requires %s", c.Backend, env)
	}
	switch c.Backend {
	case BackendOllama:
		if c.Ollama.Host == "" {
			return missing("OLLAMA_HOST")
		}
		if c.Ollama.Model == "" {
			return missing("OLLAMA_MODEL")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return missing("OPENAI_API_KEY")
		}
		if c.OpenAI.Model == "" {
			return missing("OPENAI_MODEL")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return missing("AZURE_OPENAI_API_KEY")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return missing("AZURE_OPENAI_ENDPOINT")
		}
		if c.AzureOpenAI.Deployment == "" {
			return missing("AZURE_OPENAI_DEPLOYMENT")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return missing("GOOGLE_API_KEY")
		}
		if c.Gemini.Model == "" {
			return missing("GEMINI_MODEL")
		}
	case BackendArk:
		if c.Ark.APIKey == "" {
			return missing("ARK_API_KEY")
		}
		if c.Ark.Model == "" {
			return missing("ARK_MODEL")
		}
	default:
		return rag.Errorf(rag.ErrInvalidConfiguration,
			"provider: unknown backend %q, valid values: ollama, openai, azure, gemini, ark", c.Backend)
	}
	if c.Tuning.Temperature < 0 || c.Tuning.Temperature > 2 {
		return rag.Errorf(rag.ErrInvalidConfiguration,
			"provider: MODEL_TEMPERATURE must be within [0, 2], got %v", c.Tuning.Temperature)
	}
	return nil
}

// ModelName returns the model or deployment the selected backend will call.
func (c *Config) ModelName() string {
	switch c.Backend {
	case BackendOllama:
		return c.Ollama.Model
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendGemini:
		return c.Gemini.Model
	case BackendArk:
		return c.Ark.Model
	}
	return ""
}

// String identifies the backend and model in logs. It never includes secrets.
func (c *Config) String() string {
	return fmt.Sprintf("%s/%s", c.Backend, c.ModelName())
}

// isAzureReasoningModel reports whether an Azure deployment name refers to an
// o-series or codex reasoning model. Those reject temperature and max_tokens.
func isAzureReasoningModel(deployment string) bool {
	d := strings.ToLower(deployment)
	for _, p := range []string{"o1", "o3", "o4", "codex"} {
		if strings.HasPrefix(d, p) {
			return true
		}
	}
	return false
}
