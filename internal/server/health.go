package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/54b3r/pdfqa-go/internal/logging"
)

// probeTimeout bounds each dependency probe so /api/ready answers promptly
// when a dependency hangs.
const probeTimeout = 5 * time.Second

// Pinger reports the reachability of one external dependency (the language
// model backend, the Qdrant server). Implementations must be safe for
// concurrent use.
type Pinger interface {
	// Ping returns nil when the dependency answered within ctx.
	Ping(ctx context.Context) error

	// Name labels the dependency in readiness responses, e.g. "llm".
	Name() string
}

// readyCheck is one probe result.
type readyCheck struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	// LatencyMS is the probe round trip in milliseconds.
	LatencyMS int64 `json:"latency_ms"`
}

// readyResponse is the JSON body returned by GET /api/ready.
type readyResponse struct {
	// Ready is true only when every dependency probe succeeded.
	Ready bool `json:"ready"`
	// IndexReady is true once documents have been ingested. It does not
	// affect Ready: an empty service must still accept uploads.
	IndexReady bool `json:"index_ready"`
	// Chunks is the size of the active index.
	Chunks int `json:"chunks"`
	// Checks holds one entry per Pinger, in registration order.
	Checks []readyCheck `json:"checks"`
}

// probeAll runs every pinger concurrently, each under its own timeout.
func probeAll(ctx context.Context, pingers []Pinger) []readyCheck {
	checks := make([]readyCheck, len(pingers))
	var wg sync.WaitGroup
	for i, p := range pingers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			start := time.Now()
			err := p.Ping(probeCtx)
			checks[i] = readyCheck{
				Name:      p.Name(),
				OK:        err == nil,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				checks[i].Error = err.Error()
			}
		}()
	}
	wg.Wait()
	return checks
}

// handleReady handles GET /api/ready. It answers 200 when every dependency
// probe succeeds and 503 otherwise; the index state is reported alongside
// but never fails the check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	stats := s.session.Stats()
	resp := readyResponse{
		Ready:      true,
		IndexReady: stats.Ready,
		Chunks:     stats.Chunks,
		Checks:     probeAll(r.Context(), s.pingers),
	}
	for _, c := range resp.Checks {
		if c.OK {
			continue
		}
		resp.Ready = false
		log.Warn("readiness probe failed",
			slog.String("dependency", c.Name),
			slog.String("error", c.Error),
		)
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, r, status, resp)
}
