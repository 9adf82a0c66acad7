package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteSink writes Records to a single-file SQLite database. Intended
// for local runs and tests that want a queryable, persistent record of
// what a run did without standing up a server.
type SQLiteSink struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteSink opens (creating if necessary) a SQLite database at path
// and ensures its schema exists. Pass ":memory:" for a throwaway
// in-process database.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite connection: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	sink := &SQLiteSink{db: db, path: path}
	if err := sink.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return sink, nil
}

func (s *SQLiteSink) createTable(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS run_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			phase TEXT NOT NULL,
			node_id TEXT NOT NULL,
			class TEXT NOT NULL,
			cause TEXT NOT NULL DEFAULT '',
			result_count INTEGER NOT NULL DEFAULT 0,
			recorded_at TIMESTAMP NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_run_records_run_id ON run_records(run_id)")
	return err
}

func (s *SQLiteSink) Write(ctx context.Context, rec Record) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("sink is closed")
	}
	s.mu.RUnlock()

	const query = `
		INSERT INTO run_records (run_id, phase, node_id, class, cause, result_count, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, rec.RunID, rec.Phase, rec.NodeID, rec.Class, rec.Cause, rec.ResultCount, rec.RecordedAt)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func (s *SQLiteSink) WriteBatch(ctx context.Context, recs []Record) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("sink is closed")
	}
	s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
		INSERT INTO run_records (run_id, phase, node_id, class, cause, result_count, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, rec := range recs {
		if _, err := tx.ExecContext(ctx, query, rec.RunID, rec.Phase, rec.NodeID, rec.Class, rec.Cause, rec.ResultCount, rec.RecordedAt); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	return tx.Commit()
}

// Close closes the database connection. Calling Close more than once is
// safe.
func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Path returns the database file path this sink was opened with.
func (s *SQLiteSink) Path() string {
	return s.path
}
