package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/54b3r/pdfqa-go/internal/logging"
	"github.com/54b3r/pdfqa-go/internal/rag"
)

// multipartMemory is the part of an upload kept in memory before spilling
// to temporary files.
const multipartMemory = 8 << 20

// handleIngest handles POST /process_pdfs/ and POST /api/ingest. The
// multipart field "files" carries one or more documents; together they
// replace the active index.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.metrics.ingestTotal.WithLabelValues("too_large").Inc()
			s.writeError(w, r, http.StatusRequestEntityTooLarge,
				fmt.Errorf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.metrics.ingestTotal.WithLabelValues(rag.Kind(rag.ErrValidation)).Inc()
		s.writeError(w, r, http.StatusBadRequest, rag.Wrap(rag.ErrValidation, "invalid multipart body", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	docs, err := readDocuments(r.MultipartForm.File["files"])
	if err != nil {
		s.metrics.ingestTotal.WithLabelValues(rag.Kind(err)).Inc()
		s.writeError(w, r, statusFor(err), err)
		return
	}

	report, err := s.session.Ingest(r.Context(), docs)
	if err != nil {
		s.metrics.ingestTotal.WithLabelValues(rag.Kind(err)).Inc()
		s.writeError(w, r, statusFor(err), err)
		return
	}
	s.metrics.ingestTotal.WithLabelValues("ok").Inc()
	s.metrics.indexChunks.Set(float64(report.Chunks))

	log.Info("documents ingested",
		slog.Int("documents", report.Documents),
		slog.Int("pages", report.Pages),
		slog.Int("chunks", report.Chunks),
	)
	s.writeJSON(w, r, http.StatusOK, ingestResponse{
		Message:   "PDFs processed successfully.",
		Documents: report.Documents,
		Pages:     report.Pages,
		Chunks:    report.Chunks,
	})
}

// readDocuments loads every uploaded file into memory.
func readDocuments(files []*multipart.FileHeader) ([]rag.Document, error) {
	if len(files) == 0 {
		return nil, rag.Errorf(rag.ErrValidation, "no files uploaded; use the multipart field \"files\"")
	}
	docs := make([]rag.Document, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("server: open upload %q: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("server: read upload %q: %w", fh.Filename, err)
		}
		docs = append(docs, rag.Document{Name: fh.Filename, Data: data})
	}
	return docs, nil
}

// handleAsk handles POST /ask_question/ (form field "question") and
// POST /api/ask (JSON body {"question": ...}). The body format is chosen by
// Content-Type, so either route accepts either form.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	question, err := readQuestion(r)
	if err != nil {
		s.metrics.queryTotal.WithLabelValues(rag.Kind(err)).Inc()
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	answer, err := s.session.Query(r.Context(), question)
	outcome := "ok"
	if err != nil {
		outcome = rag.Kind(err)
	}
	s.metrics.queryTotal.WithLabelValues(outcome).Inc()
	s.metrics.queryDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}

	log.Info("question answered",
		slog.Int("citations", len(answer.Citations)),
		slog.Duration("duration", time.Since(start)),
	)
	s.writeJSON(w, r, http.StatusOK, answer)
}

// readQuestion extracts the question from a JSON or form-encoded body.
func readQuestion(r *http.Request) (string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var req askRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			return "", rag.Wrap(rag.ErrValidation, "invalid request body", err)
		}
		return req.Question, nil
	}
	if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return "", rag.Wrap(rag.ErrValidation, "invalid form body", err)
	}
	return r.FormValue("question"), nil
}

// handleHistory handles GET /chat_history/ and GET /api/history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	turns := s.session.History()
	if turns == nil {
		turns = []rag.Turn{}
	}
	s.writeJSON(w, r, http.StatusOK, historyResponse{ChatHistory: turns})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps an error category onto an HTTP status: request problems are
// 400, everything else is 500.
func statusFor(err error) int {
	if rag.IsClientError(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError logs err and writes it as {"error": ...}.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	log := logging.FromContext(r.Context())
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	log.Log(r.Context(), level, "request failed",
		slog.Int("status", status),
		slog.String("kind", rag.Kind(err)),
		slog.Any("error", err),
	)
	s.writeJSON(w, r, status, errorResponse{Error: err.Error()})
}

// writeJSON encodes v with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}
