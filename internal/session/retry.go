package session

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/54b3r/pdfqa-go/internal/logging"
	"github.com/54b3r/pdfqa-go/internal/rag"
)

// retry runs op up to RetryAttempts times with exponential backoff. Each
// attempt gets its own timeout. Only transient failures are retried.
func (s *Session) retry(ctx context.Context, name string, timeout time.Duration, op func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.cfg.RetryInterval
	eb.MaxElapsedTime = 0

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if s.cfg.RetryAttempts > 1 {
		policy = backoff.WithMaxRetries(eb, uint64(s.cfg.RetryAttempts-1))
	}

	attempt := func() error {
		actx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		err := op(actx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !rag.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logging.FromContext(ctx).Warn("session: retrying after transient failure",
			"call", name,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
	}
	return backoff.RetryNotify(attempt, backoff.WithContext(policy, ctx), notify)
}

// retryingEmbedder applies the session retry policy and EmbedTimeout to
// every Embed call.
type retryingEmbedder struct {
	inner rag.Embedder
	s     *Session
}

func (r *retryingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := r.s.retry(ctx, "embed", r.s.cfg.EmbedTimeout, func(ctx context.Context) error {
		vecs, err := r.inner.Embed(ctx, texts)
		if err != nil {
			return err
		}
		out = vecs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
