package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLSink writes Records to a MySQL/MariaDB table. Intended for
// production deployments where many orchestrator processes share one
// audit trail.
//
// The DSN format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...]
//
// Example:
//
//	user:pass@tcp(localhost:3306)/dagflow?parseTime=true
type MySQLSink struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLSink opens a connection pool against dsn and ensures the
// run_records table exists.
func NewMySQLSink(dsn string) (*MySQLSink, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx := context.Background()
	sink := &MySQLSink{db: db}
	if err := sink.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return sink, nil
}

func (s *MySQLSink) createTable(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS run_records (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(128) NOT NULL,
			phase VARCHAR(32) NOT NULL,
			node_id VARCHAR(255) NOT NULL,
			class VARCHAR(32) NOT NULL,
			cause TEXT NOT NULL,
			result_count INT NOT NULL DEFAULT 0,
			recorded_at DATETIME(6) NOT NULL,
			INDEX idx_run_records_run_id (run_id)
		) ENGINE=InnoDB
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *MySQLSink) Write(ctx context.Context, rec Record) error {
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

func (s *MySQLSink) WriteBatch(ctx context.Context, recs []Record) error {
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

// Close closes the connection pool. Calling Close more than once is
// safe.
func (s *MySQLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
