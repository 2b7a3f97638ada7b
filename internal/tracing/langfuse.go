// Package tracing wires Langfuse tracing into every Eino model call made by
// the process.
package tracing

import (
	"log/slog"
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// defaultHost is used when LANGFUSE_HOST is unset.
const defaultHost = "http://localhost:3000"

// Config holds the Langfuse credentials.
type Config struct {
	// Host is the Langfuse API base URL.
	Host string
	// PublicKey and SecretKey authenticate the ingestion API.
	PublicKey string
	SecretKey string
}

// ConfigFromEnv reads LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY.
func ConfigFromEnv() Config {
	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = defaultHost
	}
	return Config{
		Host:      host,
		PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
	}
}

// Enabled reports whether both keys are present.
func (c Config) Enabled() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// Handler builds the Langfuse callback handler and its flush function.
// Returns nil values when c is not enabled.
func (c Config) Handler() (callbacks.Handler, func()) {
	if !c.Enabled() {
		return nil, nil
	}
	return langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      c.Host,
		PublicKey: c.PublicKey,
		SecretKey: c.SecretKey,
	})
}

// Setup registers the Langfuse handler globally when configured. The returned
// flush function must be called before process exit so buffered traces are
// sent; it is a no-op when tracing is disabled.
func Setup(log *slog.Logger) func() {
	cfg := ConfigFromEnv()
	handler, flush := cfg.Handler()
	if handler == nil {
		log.Debug("tracing: langfuse disabled")
		return func() {}
	}
	callbacks.AppendGlobalHandlers(handler)
	log.Info("tracing: langfuse enabled", slog.String("host", cfg.Host))
	return flush
}
