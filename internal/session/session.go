// Package session ties the retrieval pipeline together. A Session owns the
// active search index and the conversation log, runs ingests through the
// ingestion pipeline, and answers questions by retrieving passages and
// handing them to the language model.
//
// A Session starts empty. Queries fail with rag.ErrNotReady until the first
// successful ingest; every later ingest replaces the active index atomically.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/54b3r/pdfqa-go/internal/budget"
	"github.com/54b3r/pdfqa-go/internal/embedder"
	"github.com/54b3r/pdfqa-go/internal/generator"
	"github.com/54b3r/pdfqa-go/internal/ingestion"
	"github.com/54b3r/pdfqa-go/internal/keyword"
	"github.com/54b3r/pdfqa-go/internal/logging"
	"github.com/54b3r/pdfqa-go/internal/rag"
)

// Recorder receives every completed turn. Session treats it as a
// write-through copy: a failing Recorder is logged and otherwise ignored.
type Recorder interface {
	Append(ctx context.Context, turn rag.Turn) error
}

// Deps holds the collaborators a Session is built from.
type Deps struct {
	// Extractor converts uploaded documents into pages. Required.
	Extractor ingestion.Extractor

	// Embedder embeds chunks at ingest and questions at query time. Required.
	Embedder rag.Embedder

	// Builder constructs the vector index for each ingest. Required.
	Builder rag.Builder

	// Generator produces answers. Required.
	Generator rag.Generator

	// Recorder persists turns. Optional.
	Recorder Recorder
}

// lease is one generation of the active index. refs counts queries that are
// currently searching it.
type lease struct {
	res  *ingestion.Result
	refs sync.WaitGroup
}

// Session is the retrieval session. It is safe for concurrent use: ingests
// are serialised with each other but never block queries, and history
// appends are serialised independently of both.
type Session struct {
	cfg       Config
	pipeline  *ingestion.Pipeline
	embedder  rag.Embedder
	generator rag.Generator
	recorder  Recorder

	// ingestMu serialises ingests. It is held while the next index is built.
	ingestMu sync.Mutex

	// mu guards active. It is only held for pointer reads and the swap.
	mu     sync.RWMutex
	active *lease

	// retiring tracks replaced indexes still waiting for their queries.
	retiring sync.WaitGroup

	histMu  sync.Mutex
	history []rag.Turn
}

// New validates deps and cfg and returns an empty Session.
func New(deps Deps, cfg Config) (*Session, error) {
	if deps.Embedder == nil {
		return nil, rag.Errorf(rag.ErrInvalidConfiguration, "session: embedder must not be nil")
	}
	if deps.Generator == nil {
		return nil, rag.Errorf(rag.ErrInvalidConfiguration, "session: generator must not be nil")
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:       cfg,
		generator: deps.Generator,
		recorder:  deps.Recorder,
		history:   []rag.Turn{},
	}
	s.embedder = &retryingEmbedder{inner: deps.Embedder, s: s}

	// Each batch gets its own timeout and retry budget.
	p, err := ingestion.NewPipeline(deps.Extractor, embedder.NewBatched(s.embedder, cfg.EmbedBatchSize), deps.Builder, &ingestion.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Separator:    cfg.Separator,
		Hybrid:       cfg.Hybrid,
	})
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	s.pipeline = p
	return s, nil
}

// Ingest builds a fresh index from docs and installs it as the active index.
// On any failure the previous index and state are left untouched. The
// replaced index is closed in the background once in-flight queries have
// released it; Ingest does not wait for them.
func (s *Session) Ingest(ctx context.Context, docs []rag.Document) (ingestion.Report, error) {
	log := logging.FromContext(ctx)

	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	res, err := s.pipeline.Run(ctx, docs, func(msg string) {
		log.Debug("session: ingest progress", "step", msg)
	})
	if err != nil {
		return ingestion.Report{}, err
	}
	if err := ctx.Err(); err != nil {
		_ = res.Close()
		return ingestion.Report{}, fmt.Errorf("session: ingest cancelled: %w", err)
	}

	next := &lease{res: res}
	s.mu.Lock()
	prev := s.active
	s.active = next
	s.mu.Unlock()

	if prev != nil {
		s.retiring.Add(1)
		go s.retire(log, prev)
	}

	log.Info("session: index installed",
		"generation", res.Generation,
		"chunks", res.Report.Chunks,
	)
	return res.Report, nil
}

// Query answers question from the active index. Citations are exactly the
// passages given to the model, most relevant first.
func (s *Session) Query(ctx context.Context, question string) (rag.Answer, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return rag.Answer{}, rag.Errorf(rag.ErrValidation, "session: question must not be empty")
	}

	l := s.acquire()
	if l == nil {
		return rag.Answer{}, rag.ErrNotReady
	}
	hits, err := s.retrieve(ctx, l, q)
	l.refs.Done()
	if err != nil {
		return rag.Answer{}, err
	}

	passages := make([]string, len(hits))
	for i, h := range hits {
		passages[i] = h.Text
	}
	n := budget.FitPassages(generator.PromptTokens(q), passages, s.cfg.MaxContextTokens)
	if n < len(hits) {
		logging.FromContext(ctx).Debug("session: dropped passages over context budget",
			"kept", n,
			"dropped", len(hits)-n,
		)
	}
	hits, passages = hits[:n], passages[:n]

	answer, err := s.generate(ctx, q, passages)
	if err != nil {
		return rag.Answer{}, err
	}

	s.record(ctx, rag.Turn{Question: question, Answer: answer})

	citations := make([]rag.Citation, len(hits))
	for i, h := range hits {
		citations[i] = rag.Citation{Page: rag.PageRef(h.Page), Content: h.Text}
	}
	return rag.Answer{Response: answer, Citations: citations}, nil
}

// History returns a copy of the conversation log, oldest first. It never
// returns nil.
func (s *Session) History() []rag.Turn {
	s.histMu.Lock()
	defer s.histMu.Unlock()
	out := make([]rag.Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Ready reports whether an index has been installed.
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active != nil
}

// Stats describes the session for readiness probes and metrics.
type Stats struct {
	// Ready is true once an index has been installed.
	Ready bool `json:"index_ready"`
	// Generation identifies the active index.
	Generation string `json:"generation,omitempty"`
	// Chunks is the number of entries in the active index.
	Chunks int `json:"chunks"`
	// Dimension is the embedding dimension of the active index.
	Dimension int `json:"dimension"`
	// Hybrid is true when the active index has a keyword companion.
	Hybrid bool `json:"hybrid"`
	// Turns is the number of recorded turns.
	Turns int `json:"turns"`
}

// Stats returns a snapshot of the session state.
func (s *Session) Stats() Stats {
	var st Stats
	s.mu.RLock()
	if s.active != nil {
		st.Ready = true
		st.Generation = s.active.res.Generation
		st.Chunks = s.active.res.Index.Len()
		st.Dimension = s.active.res.Index.Dimension()
		st.Hybrid = s.active.res.Keyword != nil
	}
	s.mu.RUnlock()

	s.histMu.Lock()
	st.Turns = len(s.history)
	s.histMu.Unlock()
	return st
}

// Close releases the active index and waits for every replaced index to be
// closed. The session must not be used afterwards.
func (s *Session) Close() error {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	s.mu.Lock()
	prev := s.active
	s.active = nil
	s.mu.Unlock()

	var err error
	if prev != nil {
		prev.refs.Wait()
		err = prev.res.Close()
	}
	s.retiring.Wait()
	return err
}

// retire closes prev after its last query releases it.
func (s *Session) retire(log *slog.Logger, prev *lease) {
	defer s.retiring.Done()
	prev.refs.Wait()
	if err := prev.res.Close(); err != nil {
		log.Warn("session: failed to close replaced index",
			"generation", prev.res.Generation,
			"error", err,
		)
	}
}

// acquire takes a reference on the active index, or returns nil when the
// session is empty. The caller must call refs.Done.
func (s *Session) acquire() *lease {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return nil
	}
	s.active.refs.Add(1)
	return s.active
}

// retrieve embeds q and returns the top hits from l. With a keyword index
// present, vector and keyword rankings are fused.
func (s *Session) retrieve(ctx context.Context, l *lease, q string) ([]rag.Hit, error) {
	vec, err := rag.EmbedOne(ctx, s.embedder, q)
	if err != nil {
		return nil, fmt.Errorf("session: embed question: %w", err)
	}

	k := s.cfg.TopK
	if l.res.Keyword == nil {
		hits, err := l.res.Index.Search(ctx, vec, k)
		if err != nil {
			return nil, fmt.Errorf("session: search: %w", err)
		}
		return hits, nil
	}

	pool := k * hybridPoolFactor
	vhits, err := l.res.Index.Search(ctx, vec, pool)
	if err != nil {
		return nil, fmt.Errorf("session: search: %w", err)
	}
	khits, err := l.res.Keyword.Search(ctx, q, pool)
	if err != nil {
		return nil, fmt.Errorf("session: keyword search: %w", err)
	}
	return keyword.Fuse(k, vhits, khits), nil
}

// generate calls the language model under GenerateTimeout with retries.
func (s *Session) generate(ctx context.Context, q string, passages []string) (string, error) {
	var answer string
	err := s.retry(ctx, "generate", s.cfg.GenerateTimeout, func(ctx context.Context) error {
		a, err := s.generator.Generate(ctx, q, passages)
		if err != nil {
			return err
		}
		answer = a
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("session: generate: %w", err)
	}
	return answer, nil
}

// record appends turn to the log, evicting the oldest turns beyond
// HistoryMaxTurns, and forwards it to the Recorder.
func (s *Session) record(ctx context.Context, turn rag.Turn) {
	s.histMu.Lock()
	s.history = append(s.history, turn)
	if limit := s.cfg.HistoryMaxTurns; limit > 0 && len(s.history) > limit {
		s.history = append([]rag.Turn(nil), s.history[len(s.history)-limit:]...)
	}
	s.histMu.Unlock()

	if s.recorder == nil {
		return
	}
	// The answer has already been produced; a cancelled request must not
	// lose its transcript entry.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.recorder.Append(rctx, turn); err != nil {
		logging.FromContext(ctx).Warn("session: failed to persist turn", "error", err)
	}
}
