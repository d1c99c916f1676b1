// Package analytics is a single-writer SQLite-backed log of broadcasters,
// point-balance snapshots, and prediction lifecycle rows, serialized
// through a work-unit channel to a dedicated writer goroutine.
package analytics

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"pointskeeper/internal/logging"
	"pointskeeper/internal/metrics"
)

// WorkUnit is a single database mutation: a handful of concrete
// implementations, no dynamic dispatch across module boundaries.
type WorkUnit interface {
	Execute(tx *sql.Tx) error
	Kind() string
}

type Store struct {
	writeConn *sql.DB
	readConn  *sql.DB
	workChan  chan WorkUnit
	logger    *logging.Logger
	metrics   *metrics.Collectors
}

// Open applies migrations and opens a dedicated write connection plus a
// second read connection for the HTTP layer: SQLite supports concurrent
// reads with a serialized writer.
func Open(path string, logger *logging.Logger, mc *metrics.Collectors) (*Store, error) {
	writeConn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}
	writeConn.SetMaxOpenConns(1)

	readConn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open analytics db (read): %w", err)
	}

	s := &Store{writeConn: writeConn, readConn: readConn, workChan: make(chan WorkUnit, 256), logger: logger, metrics: mc}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS streamer (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS point (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id TEXT NOT NULL,
			value INTEGER NOT NULL,
			info_kind TEXT NOT NULL,
			info_event_id TEXT,
			info_point_row_id INTEGER,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (channel_id) REFERENCES streamer(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_point_channel_created ON point(channel_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS prediction (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id TEXT NOT NULL,
			event_id TEXT NOT NULL,
			title TEXT NOT NULL,
			window_seconds INTEGER NOT NULL,
			outcomes TEXT NOT NULL,
			winning_outcome_id TEXT,
			placed_bet_outcome_id TEXT,
			placed_bet_points INTEGER,
			created_at DATETIME NOT NULL,
			closed_at DATETIME,
			FOREIGN KEY (channel_id) REFERENCES streamer(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prediction_channel_event ON prediction(channel_id, event_id)`,
	}
	for _, stmt := range schema {
		if _, err := s.writeConn.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Submit enqueues a work unit; failures are logged, never propagated
// synchronously.
func (s *Store) Submit(w WorkUnit) {
	select {
	case s.workChan <- w:
	default:
		s.logger.Errorf("analytics: work channel full, dropping %s", w.Kind())
	}
}

// Run is the dedicated long-running goroutine that owns the write
// connection.
func (s *Store) Run(ctx context.Context) error {
	defer s.writeConn.Close()
	defer s.readConn.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case w := <-s.workChan:
			s.process(w)
		}
	}
}

func (s *Store) process(w WorkUnit) {
	tx, err := s.writeConn.Begin()
	if err != nil {
		s.logger.Errorf("analytics: begin tx for %s: %v", w.Kind(), err)
		s.recordOutcome(w.Kind(), "error")
		return
	}
	if err := w.Execute(tx); err != nil {
		tx.Rollback()
		s.logger.Errorf("analytics: %s failed: %v", w.Kind(), err)
		s.recordOutcome(w.Kind(), "error")
		return
	}
	if err := tx.Commit(); err != nil {
		s.logger.Errorf("analytics: commit %s: %v", w.Kind(), err)
		s.recordOutcome(w.Kind(), "error")
		return
	}
	s.recordOutcome(w.Kind(), "ok")
}

func (s *Store) recordOutcome(kind, outcome string) {
	if s.metrics != nil {
		s.metrics.AnalyticsWrites.WithLabelValues(kind, outcome).Inc()
	}
}

// ReadDB exposes the read-only connection for the HTTP timeline query.
func (s *Store) ReadDB() *sql.DB { return s.readConn }
