// Package journal persists finished generation requests in a local SQLite
// database so recent activity survives restarts.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// register sqlite driver
	_ "modernc.org/sqlite"

	"streamgen/internal/common/fsutil"
	"streamgen/internal/engine"
)

const defaultRecentLimit = 50

// Store implements engine.Recorder backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ engine.Recorder = (*Store)(nil)

// Open opens (or creates) the journal at path.
func Open(path string) (*Store, error) {
	abs, err := fsutil.PrepareFile(path)
	if err != nil {
		return nil, fmt.Errorf("journal path: %w", err)
	}
	db, err := sql.Open("sqlite", abs)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL CHECK(status IN ('completed','cancelled','failed')),
	max_tokens INTEGER NOT NULL,
	prompt_bytes INTEGER NOT NULL,
	output_bytes INTEGER NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	submitted_at INTEGER NOT NULL,
	admitted_at INTEGER NOT NULL DEFAULT 0,
	finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_finished ON requests(finished_at DESC);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases underlying database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a finished request. Recording the same id again replaces it.
func (s *Store) Record(ctx context.Context, info engine.RequestInfo) error {
	if info.ID == "" {
		return errors.New("journal record requires request id")
	}
	if !info.Status.Terminal() {
		return fmt.Errorf("journal record: status %q is not terminal", info.Status)
	}
	finished := info.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO requests(id, status, max_tokens, prompt_bytes, output_bytes, reason, submitted_at, admitted_at, finished_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		info.ID,
		string(info.Status),
		info.MaxTokens,
		info.PromptBytes,
		info.OutputBytes,
		info.Reason,
		unixNano(info.SubmittedAt),
		unixNano(info.AdmittedAt),
		unixNano(finished),
	)
	if err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}
	return nil
}

// Recent returns up to limit finished requests, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]engine.RequestInfo, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, status, max_tokens, prompt_bytes, output_bytes, reason, submitted_at, admitted_at, finished_at
FROM requests
ORDER BY finished_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.RequestInfo
	for rows.Next() {
		var (
			info                          engine.RequestInfo
			status                        string
			submitted, admitted, finished int64
		)
		if err := rows.Scan(&info.ID, &status, &info.MaxTokens, &info.PromptBytes, &info.OutputBytes, &info.Reason, &submitted, &admitted, &finished); err != nil {
			return nil, err
		}
		info.Status = engine.Status(status)
		info.SubmittedAt = fromUnixNano(submitted)
		info.AdmittedAt = fromUnixNano(admitted)
		info.FinishedAt = fromUnixNano(finished)
		if admitted != 0 {
			info.QueueWait = info.AdmittedAt.Sub(info.SubmittedAt)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
