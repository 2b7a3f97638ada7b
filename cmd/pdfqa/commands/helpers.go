package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/pdfqa-go/internal/embedder"
	"github.com/54b3r/pdfqa-go/internal/extract"
	"github.com/54b3r/pdfqa-go/internal/generator"
	"github.com/54b3r/pdfqa-go/internal/index"
	"github.com/54b3r/pdfqa-go/internal/provider"
	"github.com/54b3r/pdfqa-go/internal/rag"
	"github.com/54b3r/pdfqa-go/internal/server"
	"github.com/54b3r/pdfqa-go/internal/session"
)

// runtime is the set of components a command runs a session with.
type runtime struct {
	session     *session.Session
	embedder    rag.Embedder
	embBackend  string
	chat        model.BaseChatModel
	providerCfg *provider.Config
	builder     rag.Builder
	closers     []io.Closer
}

// Close releases the session and every connection opened for it, in
// reverse order of creation.
func (r *runtime) Close() error {
	var errs []error
	if r.session != nil {
		errs = append(errs, r.session.Close())
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i].Close())
	}
	return errors.Join(errs...)
}

// buildRuntime wires the embedder, index backend, chat model and generator
// from the environment into a session. recorder may be nil.
func buildRuntime(ctx context.Context, log *slog.Logger, recorder session.Recorder) (*runtime, error) {
	embCfg := embedder.ConfigFromEnv()
	if err := embedder.Validate(embCfg, log); err != nil {
		return nil, err
	}
	emb, err := embedder.New(embCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised", slog.String("backend", embCfg.Backend), slog.String("model", embCfg.Model))

	idxCfg := index.ConfigFromEnv()
	builder, idxCloser, err := index.NewBuilder(idxCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise index backend: %w", err)
	}
	rt := &runtime{
		embedder:   emb,
		embBackend: embCfg.Backend,
		builder:    builder,
		closers:    []io.Closer{idxCloser},
	}
	log.Info("index backend initialised", slog.String("backend", idxCfg.Backend))

	rt.providerCfg = provider.ConfigFromEnv()
	rt.chat, err = provider.New(ctx, rt.providerCfg)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised", slog.String("provider", rt.providerCfg.String()))

	gen, err := generator.New(rt.chat)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	sessCfg := session.ConfigFromEnv()
	rt.session, err = session.New(session.Deps{
		Extractor: extract.New(),
		Embedder:  emb,
		Builder:   builder,
		Generator: gen,
		Recorder:  recorder,
	}, sessCfg)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to initialise session: %w", err)
	}
	return rt, nil
}

// pingers builds the readiness probes for the runtime's dependencies.
func (r *runtime) pingers() []server.Pinger {
	p := []server.Pinger{
		server.NewLLMPinger(r.chat, r.providerCfg.HealthCheck(), string(r.providerCfg.Backend)),
		server.NewEmbedderPinger(r.embedder, r.embBackend),
	}
	if qb, ok := r.builder.(*index.QdrantBuilder); ok {
		p = append(p, server.NewQdrantPinger(qb.Client()))
	}
	return p
}
