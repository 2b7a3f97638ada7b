package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// unsetEnv clears keys for the duration of the test. t.Setenv registers the
// restore; the Unsetenv makes the keys absent rather than empty.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: azure
  max_tokens: 2048
  temperature: 0.2
  azure:
    endpoint: https://my-resource.openai.azure.com
    deployment: gpt-4o
    api_version: "2025-04-01-preview"
embedding:
  provider: ollama
  model: nomic-embed-text
  batch_size: 32
index:
  backend: qdrant
  qdrant:
    host: qdrant.internal
    port: 6334
    collection_prefix: manuals
retrieval:
  top_k: 6
  hybrid: true
  chunk_size: 800
  generate_timeout: 90s
server:
  port: 9090
  cors_origins: "https://app.example.com"
logging:
  level: debug
  format: text
history:
  db_path: disabled
  max_turns: 50
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":           "azure",
		"MODEL_MAX_TOKENS":         "2048",
		"MODEL_TEMPERATURE":        "0.2",
		"AZURE_OPENAI_ENDPOINT":    "https://my-resource.openai.azure.com",
		"AZURE_OPENAI_DEPLOYMENT":  "gpt-4o",
		"AZURE_OPENAI_API_VERSION": "2025-04-01-preview",
		"EMBEDDING_PROVIDER":       "ollama",
		"EMBEDDING_MODEL":          "nomic-embed-text",
		"EMBEDDING_BATCH_SIZE":     "32",
		"INDEX_BACKEND":            "qdrant",
		"QDRANT_HOST":              "qdrant.internal",
		"QDRANT_PORT":              "6334",
		"QDRANT_COLLECTION_PREFIX": "manuals",
		"RETRIEVAL_TOP_K":          "6",
		"RETRIEVAL_HYBRID":         "true",
		"CHUNK_SIZE":               "800",
		"GENERATE_TIMEOUT":         "90s",
		"PDFQA_PORT":               "9090",
		"CORS_ORIGINS":             "https://app.example.com",
		"LOG_LEVEL":                "debug",
		"LOG_FORMAT":               "text",
		"PDFQA_HISTORY_DB":         "disabled",
		"HISTORY_MAX_TURNS":        "50",
	}
	keys := make([]string, 0, len(checks))
	for k := range checks {
		keys = append(keys, k)
	}
	unsetEnv(t, keys...)

	loaded, err := Load(cfgPath, slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: ollama
retrieval:
  top_k: 9
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env vars BEFORE loading; they must not be overwritten, even when
	// set to the empty string.
	t.Setenv("MODEL_PROVIDER", "azure")
	t.Setenv("RETRIEVAL_TOP_K", "")

	if _, err := Load(cfgPath, slog.Default()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("MODEL_PROVIDER"); got != "azure" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "azure", got)
	}
	if got := os.Getenv("RETRIEVAL_TOP_K"); got != "" {
		t.Errorf("RETRIEVAL_TOP_K: expected empty env to win, got %q", got)
	}
}

func TestLoad_PDFQAConfigEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pdfqa.yaml")
	if err := os.WriteFile(cfgPath, []byte("logging:\n  level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PDFQA_CONFIG", cfgPath)
	unsetEnv(t, "LOG_LEVEL")

	loaded, err := Load("", slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}
	if got := os.Getenv("LOG_LEVEL"); got != "warn" {
		t.Errorf("LOG_LEVEL: got %q, want %q", got, "warn")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(cfgPath, slog.Default())
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "OLLAMA_MODEL=llama3.2\nOPENAI_MODEL=gpt-4o-mini\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	unsetEnv(t, "OLLAMA_MODEL")
	t.Setenv("OPENAI_MODEL", "gpt-4o")

	loaded, err := LoadDotEnv(envPath)
	if err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if !loaded {
		t.Fatal("expected the file to be loaded")
	}
	if got := os.Getenv("OLLAMA_MODEL"); got != "llama3.2" {
		t.Errorf("OLLAMA_MODEL: got %q", got)
	}
	if got := os.Getenv("OPENAI_MODEL"); got != "gpt-4o" {
		t.Errorf("OPENAI_MODEL: existing env must win, got %q", got)
	}
}

func TestLoadDotEnv_Missing(t *testing.T) {
	t.Parallel()

	loaded, err := LoadDotEnv(filepath.Join(t.TempDir(), ".env"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if loaded {
		t.Error("expected loaded=false for a missing file")
	}
}
