package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		sessionId TEXT NOT NULL,
		mode TEXT NOT NULL,
		device TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		textLength INTEGER NOT NULL DEFAULT 0,
		audioDurationMs INTEGER NOT NULL DEFAULT 0,
		startedAt REAL NOT NULL,
		finishedAt REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS runs_session ON runs(sessionId);
	CREATE INDEX IF NOT EXISTS runs_started ON runs(startedAt);
`

const runColumns = `id, sessionId, mode, device, source, model, language, state, error,
	textLength, audioDurationMs, startedAt, finishedAt`

// Store is the session journal.
type Store struct {
	db *sql.DB
}

// Open opens or creates the journal at path with WAL enabled.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts run, assigning an id when it has none.
func (s *Store) Record(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.SessionID, run.Mode, run.Device, run.Source, run.Model, run.Language,
		run.State, run.Error, run.TextLength, run.AudioDuration.Milliseconds(),
		unixFromTime(run.StartedAt), unixFromTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY startedAt DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// RunsForSession returns every run recorded for a session directory, oldest
// first.
func (s *Store) RunsForSession(ctx context.Context, sessionID string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE sessionId = ?
		ORDER BY startedAt ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// LatestRun returns the most recent run, or nil if the journal is empty.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	runs, err := s.RecentRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// DeleteSession removes the journal rows of a deleted session.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE sessionId = ?`, sessionID); err != nil {
		return fmt.Errorf("delete runs: %w", err)
	}
	return nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var r Run
		var durationMs int64
		var startedAt, finishedAt float64
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Mode, &r.Device, &r.Source, &r.Model,
			&r.Language, &r.State, &r.Error, &r.TextLength, &durationMs,
			&startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.AudioDuration = time.Duration(durationMs) * time.Millisecond
		r.StartedAt = timeFromUnix(startedAt)
		r.FinishedAt = timeFromUnix(finishedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func unixFromTime(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
