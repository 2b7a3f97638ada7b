// Package store provides a SQLite-backed transcript of answered questions.
// The session keeps the authoritative history in memory; every turn is also
// written here so `pdfqa history` can show past conversations after the
// server has exited. Each process run is tagged with its own run id.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/pdfqa-go/internal/rag"
)

// Disabled is the PDFQA_HISTORY_DB value that turns the transcript off.
const Disabled = "disabled"

// Record is a persisted turn.
type Record struct {
	// Run identifies the process run that answered the question.
	Run string `json:"run"`
	// Turn is the question and answer.
	rag.Turn
	// CreatedAt is when the turn was persisted.
	CreatedAt time.Time `json:"created_at"`
}

// TranscriptStore persists and retrieves turns.
// Implementations must be safe for concurrent use.
type TranscriptStore interface {
	// Append persists a single turn under the current run.
	Append(ctx context.Context, turn rag.Turn) error
	// Recent returns the most recent n turns across all runs, ordered
	// oldest-first. If fewer than n turns exist, all are returned.
	Recent(ctx context.Context, n int) ([]Record, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a TranscriptStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// run tags every row appended through this handle.
	run string
}

// DefaultDBPath returns the default path for the transcript database.
// It resolves to ~/.pdfqa/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".pdfqa")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// OpenFromEnv opens the store named by PDFQA_HISTORY_DB, falling back to
// DefaultDBPath. It returns (nil, nil) when the variable is "disabled".
func OpenFromEnv() (*SQLiteStore, error) {
	path := strings.TrimSpace(os.Getenv("PDFQA_HISTORY_DB"))
	if strings.EqualFold(path, Disabled) {
		return nil, nil
	}
	if path == "" {
		var err error
		if path, err = DefaultDBPath(); err != nil {
			return nil, err
		}
	}
	return Open(path)
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// modernc.org/sqlite applies connection pragmas through _pragma parameters.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, run: uuid.NewString()}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Run returns the run id stamped on appended turns.
func (s *SQLiteStore) Run() string { return s.run }

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS turns (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    run          TEXT    NOT NULL,
    question     TEXT    NOT NULL,
    answer       TEXT    NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_turns_run_id
    ON turns (run, id);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single turn under the store's run id.
func (s *SQLiteStore) Append(ctx context.Context, turn rag.Turn) error {
	const q = `INSERT INTO turns (run, question, answer, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, s.run, turn.Question, turn.Answer, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n turns, ordered oldest-first. Insertion
// order breaks ties between turns stored in the same second.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Record, error) {
	const q = `
SELECT run, question, answer, created_at FROM (
    SELECT id, run, question, answer, created_at
    FROM   turns
    ORDER  BY id DESC
    LIMIT  ?
) ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	recs := []Record{}
	for rows.Next() {
		var r Record
		var ts int64
		if err := rows.Scan(&r.Run, &r.Question, &r.Answer, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		r.CreatedAt = time.Unix(ts, 0)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return recs, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
