// metrics.go registers the Prometheus collectors for the HTTP server and
// the instrumentation middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path, so the legacy
	// routes and their /api aliases share a series.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// ingestTotal counts ingest requests, partitioned by outcome: "ok",
	// "too_large", or the error kind.
	ingestTotal *prometheus.CounterVec

	// queryTotal counts ask requests, partitioned by outcome: "ok" or the
	// error kind.
	queryTotal *prometheus.CounterVec

	// queryDurationSeconds records the wall-clock duration of each answered
	// or failed question, retrieval and generation included.
	queryDurationSeconds *prometheus.HistogramVec

	// indexChunks is the number of chunks in the active index.
	indexChunks prometheus.Gauge

	// rateLimitedTotal counts requests rejected by the rate limiter.
	rateLimitedTotal *prometheus.CounterVec

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		ingestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdfqa",
			Name:      "ingest_total",
			Help:      "Total number of ingest requests, partitioned by outcome.",
		}, []string{"outcome"}),

		queryTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdfqa",
			Name:      "query_total",
			Help:      "Total number of questions asked, partitioned by outcome.",
		}, []string{"outcome"}),

		queryDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pdfqa",
			Name:      "query_duration_seconds",
			Help:      "Wall-clock duration of questions from receipt to answer.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		indexChunks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "pdfqa",
			Name:      "index_chunks",
			Help:      "Number of chunks in the active index.",
		}),

		rateLimitedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdfqa",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limit.",
		}, []string{labelHandler}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdfqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pdfqa",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// instrument records request count and latency for next under the logical
// handler name.
func (s *Server) instrument(handler string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw, ok := w.(*responseWriter)
		if !ok {
			rw = &responseWriter{ResponseWriter: w, status: http.StatusOK}
		}

		start := time.Now()
		next.ServeHTTP(rw, r)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, handler, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, handler).Observe(time.Since(start).Seconds())
	})
}
