// Package server implements the HTTP transport for the retrieval session:
// document upload, question answering and conversation history, plus the
// liveness, readiness and metrics endpoints. The server is started by the
// `pdfqa serve` CLI command.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/pdfqa-go/internal/rag"
)

// defaultMaxUploadBytes is the ingest body cap when none is configured.
const defaultMaxUploadBytes = 32 << 20

// New constructs a Server around sess and registers every route.
func New(sess retriever, cfg *Config) (*Server, error) {
	if sess == nil {
		return nil, rag.Errorf(rag.ErrInvalidConfiguration, "server: session must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 2 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		// Long enough for an ingest of a large upload or a slow local model.
		cfg.WriteTimeout = 10 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		session: sess,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, func(handler string) {
		s.metrics.rateLimitedTotal.WithLabelValues(handler).Inc()
	})
	s.limiter = rl
	s.stopRL = stop

	mux := http.NewServeMux()
	ingest := rl.wrap("ingest", http.HandlerFunc(s.handleIngest))
	ask := rl.wrap("ask", http.HandlerFunc(s.handleAsk))
	history := http.HandlerFunc(s.handleHistory)

	// Legacy form-style paths, then their JSON API aliases.
	mux.Handle("POST /process_pdfs/", s.instrument("ingest", ingest))
	mux.Handle("POST /api/ingest", s.instrument("ingest", ingest))
	mux.Handle("POST /ask_question/", s.instrument("ask", ask))
	mux.Handle("POST /api/ask", s.instrument("ask", ask))
	mux.Handle("GET /chat_history/", s.instrument("history", history))
	mux.Handle("GET /api/history", s.instrument("history", history))

	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.handler = requestLogger(log, corsMiddleware(cfg.CORSOrigins, mux))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Close stops the server's background goroutines. It is safe to call more
// than once and after Start has returned.
func (s *Server) Close() error {
	s.stopRL()
	return nil
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}
