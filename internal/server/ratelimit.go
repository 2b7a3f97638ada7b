package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/pdfqa-go/internal/logging"
)

const (
	// defaultRateLimit is the per-client request rate on ingest and ask when
	// none is configured.
	defaultRateLimit = 10
	// defaultRateBurst is the per-client burst when none is configured.
	defaultRateBurst = 20
	// bucketIdleTTL is how long an untouched client bucket is kept.
	bucketIdleTTL = 5 * time.Minute
	// sweepInterval is how often idle buckets are swept.
	sweepInterval = time.Minute
)

// bucket is one client's token bucket.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter enforces a token-bucket limit per client address. One
// rateLimiter is shared by every limited route, so uploads and questions
// from the same client draw on the same budget.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	limit rate.Limit
	burst int
	ttl   time.Duration
	// now is the clock; tests replace it.
	now func() time.Time
	// onReject is called with the handler name for each rejected request.
	onReject func(handler string)
	// exited is closed when the sweeper goroutine returns.
	exited chan struct{}
}

// newRateLimiter returns a limiter allowing rps sustained requests per second
// with the given burst, and a stop function for its sweeper goroutine.
func newRateLimiter(rps float64, burst int, onReject func(handler string)) (*rateLimiter, func()) {
	if onReject == nil {
		onReject = func(string) {}
	}
	rl := &rateLimiter{
		buckets:  make(map[string]*bucket),
		limit:    rate.Limit(rps),
		burst:    burst,
		ttl:      bucketIdleTTL,
		now:      time.Now,
		onReject: onReject,
		exited:   make(chan struct{}),
	}

	done := make(chan struct{})
	go func() {
		defer close(rl.exited)
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				rl.sweep()
			}
		}
	}()

	var once sync.Once
	return rl, func() { once.Do(func() { close(done) }) }
}

// reserve takes a token for client. It returns zero when the request may
// proceed, or how long the client should wait otherwise. A rejected
// reservation is cancelled so it does not consume future tokens.
func (rl *rateLimiter) reserve(client string) time.Duration {
	rl.mu.Lock()
	now := rl.now()
	b, ok := rl.buckets[client]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[client] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return rl.ttl
	}
	wait := res.DelayFrom(now)
	if wait > 0 {
		res.CancelAt(now)
	}
	return wait
}

// sweep drops buckets idle for longer than the TTL.
func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.ttl)
	for client, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, client)
		}
	}
}

// size reports the number of tracked clients.
func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// wrap rejects over-limit requests to next with 429 and a Retry-After header
// in whole seconds. handler labels the rejection metric.
func (rl *rateLimiter) wrap(handler string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		wait := rl.reserve(client)
		if wait <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		rl.onReject(handler)
		logging.FromContext(r.Context()).Warn("rate limit exceeded",
			slog.String("client", client),
			slog.String("handler", handler),
			slog.Duration("retry_after", wait),
		)
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(math.Ceil(wait.Seconds()))))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(errorResponse{Error: "rate limit exceeded"})
	})
}

// clientIP is the host part of RemoteAddr. Forwarding headers are ignored.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
