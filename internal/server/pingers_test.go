package server

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// stubChat is a model.BaseChatModel returning a fixed reply or error.
type stubChat struct {
	reply *schema.Message
	err   error
	calls int
}

func (c *stubChat) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	c.calls++
	return c.reply, c.err
}

func (c *stubChat) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

// stubHealth is a provider.HealthCheckConfig.
type stubHealth struct{ err error }

func (h stubHealth) HealthCheck(context.Context) error { return h.err }

// stubEmbedder returns vec for every input, or err.
type stubEmbedder struct {
	vec []float32
	err error
}

func (e stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = e.vec
	}
	return out, nil
}

func TestLLMPinger_PrefersHealthCheck(t *testing.T) {
	t.Parallel()

	chat := &stubChat{reply: schema.AssistantMessage("pong", nil)}
	p := NewLLMPinger(chat, stubHealth{}, "ollama")
	if err := p.Ping(t.Context()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if chat.calls != 0 {
		t.Errorf("model should not be called when a health check exists, got %d calls", chat.calls)
	}

	p = NewLLMPinger(chat, stubHealth{err: errors.New("refused")}, "ollama")
	err := p.Ping(t.Context())
	if err == nil || !strings.Contains(err.Error(), "ollama health check failed") {
		t.Errorf("want wrapped health check error, got %v", err)
	}
}

func TestLLMPinger_FallsBackToGenerate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		chat    model.BaseChatModel
		wantErr bool
	}{
		{"reply", &stubChat{reply: schema.AssistantMessage("pong", nil)}, false},
		{"error", &stubChat{err: errors.New("boom")}, true},
		{"nil reply", &stubChat{}, true},
		{"no model", nil, true},
	}
	for _, tc := range cases {
		p := NewLLMPinger(tc.chat, nil, "ark")
		if err := p.Ping(t.Context()); (err != nil) != tc.wantErr {
			t.Errorf("%s: wantErr=%v, got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestEmbedderPinger(t *testing.T) {
	t.Parallel()

	p := NewEmbedderPinger(stubEmbedder{vec: []float32{1, 0}}, "hash")
	if p.Name() != "embedder:hash" {
		t.Errorf("Name: got %q", p.Name())
	}
	if err := p.Ping(t.Context()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	if err := NewEmbedderPinger(stubEmbedder{vec: []float32{}}, "hash").Ping(t.Context()); err == nil {
		t.Error("want error for an empty vector")
	}
	if err := NewEmbedderPinger(stubEmbedder{err: errors.New("down")}, "ollama").Ping(t.Context()); err == nil {
		t.Error("want error when the backend fails")
	}
}
