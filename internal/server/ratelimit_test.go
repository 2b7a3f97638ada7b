package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// passThrough marks requests that reached the wrapped handler.
var passThrough = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

// fakeClock is a settable clock for the limiter.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// newTestLimiter returns a limiter on a fake clock and the names of the
// handlers it rejected.
func newTestLimiter(t *testing.T, rps float64, burst int) (*rateLimiter, *fakeClock, *[]string) {
	t.Helper()
	var mu sync.Mutex
	rejected := []string{}
	rl, stop := newRateLimiter(rps, burst, func(h string) {
		mu.Lock()
		rejected = append(rejected, h)
		mu.Unlock()
	})
	t.Cleanup(stop)
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl.now = clock.Now
	return rl, clock, &rejected
}

func hit(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/ask", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// Token bucket
// ---------------------------------------------------------------------------

func TestRateLimit_BurstPassesThenRejects(t *testing.T) {
	t.Parallel()
	rl, _, rejected := newTestLimiter(t, 1, 3)
	h := rl.wrap("ask", passThrough)

	for i := range 3 {
		if w := hit(h, "10.0.0.1:1000"); w.Code != http.StatusNoContent {
			t.Fatalf("request %d inside the burst: got %d", i, w.Code)
		}
	}

	w := hit(h, "10.0.0.1:1000")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("fourth request: want 429, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
	if !strings.Contains(w.Body.String(), `"error":"rate limit exceeded"`) {
		t.Errorf("body: got %s", w.Body.String())
	}
	if len(*rejected) != 1 || (*rejected)[0] != "ask" {
		t.Errorf("onReject calls: got %v", *rejected)
	}
}

func TestRateLimit_RetryAfterRoundsUp(t *testing.T) {
	t.Parallel()
	// One token every four seconds.
	rl, _, _ := newTestLimiter(t, 0.25, 1)
	h := rl.wrap("ingest", passThrough)

	hit(h, "10.0.0.2:1")
	w := hit(h, "10.0.0.2:1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("want 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "4" {
		t.Errorf("Retry-After: want 4, got %q", got)
	}
}

func TestRateLimit_RefillsOverTime(t *testing.T) {
	t.Parallel()
	rl, clock, _ := newTestLimiter(t, 1, 1)
	h := rl.wrap("ask", passThrough)

	hit(h, "10.0.0.3:1")
	if w := hit(h, "10.0.0.3:1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("want 429 before refill, got %d", w.Code)
	}

	clock.Advance(1100 * time.Millisecond)
	if w := hit(h, "10.0.0.3:1"); w.Code != http.StatusNoContent {
		t.Errorf("want pass after refill, got %d", w.Code)
	}
}

func TestRateLimit_RejectionDoesNotDrainFutureTokens(t *testing.T) {
	t.Parallel()
	rl, clock, _ := newTestLimiter(t, 1, 1)
	h := rl.wrap("ask", passThrough)

	hit(h, "10.0.0.4:1")
	for range 5 {
		hit(h, "10.0.0.4:1")
	}

	// Had the rejected reservations been kept, the bucket would be five
	// tokens in debt.
	clock.Advance(1100 * time.Millisecond)
	if w := hit(h, "10.0.0.4:1"); w.Code != http.StatusNoContent {
		t.Errorf("want pass after one interval, got %d", w.Code)
	}
}

func TestRateLimit_ClientsAreIndependent(t *testing.T) {
	t.Parallel()
	rl, _, _ := newTestLimiter(t, 0.001, 1)
	h := rl.wrap("ask", passThrough)

	for range 3 {
		hit(h, "192.168.1.1:1111")
	}
	if w := hit(h, "192.168.1.2:2222"); w.Code != http.StatusNoContent {
		t.Errorf("second client: want pass, got %d", w.Code)
	}
}

func TestRateLimit_RoutesShareClientBudget(t *testing.T) {
	t.Parallel()
	rl, _, rejected := newTestLimiter(t, 0.001, 1)
	ingest := rl.wrap("ingest", passThrough)
	ask := rl.wrap("ask", passThrough)

	hit(ingest, "10.0.0.5:1")
	if w := hit(ask, "10.0.0.5:1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("want 429 on the second route, got %d", w.Code)
	}
	if len(*rejected) != 1 || (*rejected)[0] != "ask" {
		t.Errorf("onReject calls: got %v", *rejected)
	}
}

// ---------------------------------------------------------------------------
// Sweeping
// ---------------------------------------------------------------------------

func TestRateLimit_SweepDropsIdleClients(t *testing.T) {
	t.Parallel()
	rl, clock, _ := newTestLimiter(t, 1, 1)
	h := rl.wrap("ask", passThrough)

	hit(h, "10.0.1.1:1")
	clock.Advance(bucketIdleTTL / 2)
	hit(h, "10.0.1.2:1")
	if n := rl.size(); n != 2 {
		t.Fatalf("tracked clients: want 2, got %d", n)
	}

	clock.Advance(bucketIdleTTL/2 + time.Second)
	rl.sweep()
	if n := rl.size(); n != 1 {
		t.Errorf("after sweep: want 1, got %d", n)
	}
}

func TestRateLimit_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	_, stop := newRateLimiter(1, 1, nil)
	stop()
	stop()
}

func TestServer_CloseStopsSweeperWithoutStart(t *testing.T) {
	t.Parallel()
	s, err := New(&fakeRetriever{}, &Config{MetricsRegistry: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	select {
	case <-s.limiter.exited:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper goroutine still running after Close")
	}
}

// ---------------------------------------------------------------------------
// Server wiring
// ---------------------------------------------------------------------------

func TestRateLimit_ServerCountsRejections(t *testing.T) {
	t.Parallel()
	s, reg := newTestServer(t, &fakeRetriever{}, func(c *Config) {
		c.RateLimit = 0.001
		c.RateBurst = 1
	})

	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
		serve(s, req)
	}
	if v := counterValue(t, reg, "pdfqa_rate_limited_total", labelHandler, "history"); v != -1 {
		t.Errorf("history is not limited, got counter %v", v)
	}

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"q"}`))
		req.Header.Set("Content-Type", "application/json")
		serve(s, req)
	}
	if v := counterValue(t, reg, "pdfqa_rate_limited_total", labelHandler, "ask"); v != 1 {
		t.Errorf("pdfqa_rate_limited_total{handler=ask}: want 1, got %v", v)
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := []struct {
		remoteAddr string
		want       string
	}{
		{"127.0.0.1:54321", "127.0.0.1"},
		{"10.0.0.1:80", "10.0.0.1"},
		{"[::1]:8080", "::1"},
		{"noport", "noport"},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tc.remoteAddr
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		if got := clientIP(req); got != tc.want {
			t.Errorf("remoteAddr=%q: want %q, got %q", tc.remoteAddr, tc.want, got)
		}
	}
}
