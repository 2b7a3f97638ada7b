package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/pdfqa-go/internal/ingestion"
	"github.com/54b3r/pdfqa-go/internal/rag"
	"github.com/54b3r/pdfqa-go/internal/session"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request, including
	// uploaded documents.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// cover a full ingest or a generation with retries.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [slog.Default] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready reports only the index state.
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on the ingest
	// and ask endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// MaxUploadBytes caps the request body of an ingest. Defaults to 32 MiB.
	MaxUploadBytes int64
	// CORSOrigins lists the origins allowed to call the API. "*" allows any
	// origin. Defaults to ["*"].
	CORSOrigins []string
	// MetricsRegistry receives the server's Prometheus collectors.
	// Defaults to prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer is served on GET /metrics.
	// Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// retriever is the part of *session.Session the handlers call.
// Tests inject a fake.
type retriever interface {
	// Ingest replaces the active index with one built from docs.
	Ingest(ctx context.Context, docs []rag.Document) (ingestion.Report, error)
	// Query answers question from the active index.
	Query(ctx context.Context, question string) (rag.Answer, error)
	// History returns the conversation log, oldest first.
	History() []rag.Turn
	// Stats reports the session state.
	Stats() session.Stats
}

// Server is the HTTP server that exposes a retrieval session.
type Server struct {
	// session handles every ingest and query.
	session retriever
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// handler is the fully wrapped route tree.
	handler http.Handler
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors.
	metrics *serverMetrics
	// limiter guards the ingest and ask routes.
	limiter *rateLimiter
	// stopRL stops the rate limiter's sweeper.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
}

// ingestResponse is the JSON response for a successful ingest.
type ingestResponse struct {
	// Message is the human-readable outcome.
	Message string `json:"message"`
	// Documents is the number of documents processed.
	Documents int `json:"documents"`
	// Pages is the number of non-empty pages extracted.
	Pages int `json:"pages"`
	// Chunks is the number of chunks indexed.
	Chunks int `json:"chunks"`
}

// historyResponse is the JSON response for GET /chat_history/.
type historyResponse struct {
	// ChatHistory is the conversation log, oldest first. Never null.
	ChatHistory []rag.Turn `json:"chat_history"`
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	// Error describes the failure.
	Error string `json:"error"`
}
