package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue returns the value of the counter series name{label=value}, or
// -1 when it has not been created.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return -1
}

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &fakeRetriever{}, nil)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/metrics", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("want 200, got %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
}

func Test_Metrics_QueryCounterIncremented(t *testing.T) {
	t.Parallel()
	s, reg := newTestServer(t, &fakeRetriever{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"q"}`))
	req.Header.Set("Content-Type", "application/json")
	serve(s, req)

	if v := counterValue(t, reg, "pdfqa_query_total", "outcome", "ok"); v != 1 {
		t.Errorf("pdfqa_query_total{outcome=ok}: want 1, got %v", v)
	}
}

func Test_Metrics_HTTPRequestsShareHandlerLabel(t *testing.T) {
	t.Parallel()
	s, reg := newTestServer(t, &fakeRetriever{}, nil)

	serve(s, httptest.NewRequest(http.MethodGet, "/chat_history/", nil))
	serve(s, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	if v := counterValue(t, reg, "pdfqa_http_requests_total", labelHandler, "history"); v != 2 {
		t.Errorf("pdfqa_http_requests_total{handler=history}: want 2, got %v", v)
	}
}

func Test_Metrics_IndexChunksGauge(t *testing.T) {
	t.Parallel()
	fake := &fakeRetriever{}
	fake.report.Chunks = 42
	s, reg := newTestServer(t, fake, nil)

	body, ct := multipartUpload(t, map[string]string{"doc.txt": "text"})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", body)
	req.Header.Set("Content-Type", ct)
	serve(s, req)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == "pdfqa_index_chunks" {
			if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 42 {
				t.Errorf("want index_chunks=42, got %v", v)
			}
			return
		}
	}
	t.Error("pdfqa_index_chunks not found in gathered metrics")
}
