package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/54b3r/pdfqa-go/internal/rag"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_AppendAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, rag.Turn{Question: "hello?", Answer: "world"}); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := s.Append(ctx, rag.Turn{Question: "again?", Answer: "yes"}); err != nil {
		t.Fatalf("append second: %v", err)
	}

	recs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("want 2 turns, got %d", len(recs))
	}
	if recs[0].Question != "hello?" || recs[0].Answer != "world" {
		t.Errorf("rec[0]: want hello?/world, got %s/%s", recs[0].Question, recs[0].Answer)
	}
	if recs[1].Question != "again?" || recs[1].Answer != "yes" {
		t.Errorf("rec[1]: want again?/yes, got %s/%s", recs[1].Question, recs[1].Answer)
	}
	if recs[0].Run != s.Run() {
		t.Errorf("run: want %s, got %s", s.Run(), recs[0].Run)
	}
	if recs[0].CreatedAt.IsZero() {
		t.Error("created_at should be set")
	}
}

func Test_Store_RecentLimitKeepsNewest(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for i := range 6 {
		if err := s.Append(ctx, rag.Turn{Question: fmt.Sprintf("q%d", i), Answer: "a"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	recs, err := s.Recent(ctx, 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("want 4 turns, got %d", len(recs))
	}
	for i, r := range recs {
		if want := fmt.Sprintf("q%d", i+2); r.Question != want {
			t.Errorf("rec[%d]: want %s, got %s", i, want, r.Question)
		}
	}
}

func Test_Store_EmptyIsNotNil(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	recs, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("want empty non-nil slice, got %#v", recs)
	}
}

func Test_Store_RunsShareFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	first, err := Open(path)
	if err != nil {
		t.Fatalf("open first: %v", err)
	}
	if err := first.Append(ctx, rag.Turn{Question: "from first", Answer: "a"}); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close first: %v", err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatalf("open second: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })
	if err := second.Append(ctx, rag.Turn{Question: "from second", Answer: "b"}); err != nil {
		t.Fatalf("append second: %v", err)
	}

	recs, err := second.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("want 2 turns, got %d", len(recs))
	}
	if recs[0].Run == recs[1].Run {
		t.Errorf("runs should differ, both %s", recs[0].Run)
	}
}

func Test_OpenFromEnv_Disabled(t *testing.T) {
	t.Setenv("PDFQA_HISTORY_DB", "disabled")

	s, err := OpenFromEnv()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s != nil {
		t.Errorf("want nil store when disabled, got %v", s)
	}
}

func Test_OpenFromEnv_Path(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.db")
	t.Setenv("PDFQA_HISTORY_DB", path)

	s, err := OpenFromEnv()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Append(context.Background(), rag.Turn{Question: "q", Answer: "a"}); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func Test_Open_AppliesPragmas(t *testing.T) {
	t.Parallel()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode: want wal, got %q", mode)
	}

	var timeout int
	if err := s.db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout: want 5000, got %d", timeout)
	}
}
