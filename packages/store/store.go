// Package store persists load run summaries to a local SQLite database so
// runs can be compared over time.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Run is one persisted load run summary.
type Run struct {
	ID        string
	Scenario  string
	StartedAt time.Time
	Duration  time.Duration
	Requests  int64
	Errors    int64
	RPS       float64
	P50Ms     float64
	P95Ms     float64
	P99Ms     float64
}

// Store is a SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the run history at path. Use ":memory:" for an
// ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening run history: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to run history: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id         TEXT PRIMARY KEY,
			scenario   TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			requests   INTEGER NOT NULL,
			errors     INTEGER NOT NULL,
			rps        REAL NOT NULL,
			p50_ms     REAL NOT NULL,
			p95_ms     REAL NOT NULL,
			p99_ms     REAL NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("migrating run history: %w", err)
	}
	return nil
}

// Save persists a run, assigning it an id when absent.
func (s *Store) Save(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (id, scenario, started_at, duration_ms, requests, errors, rps, p50_ms, p95_ms, p99_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Scenario, run.StartedAt.Unix(), run.Duration.Milliseconds(),
		run.Requests, run.Errors, run.RPS, run.P50Ms, run.P95Ms, run.P99Ms)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, scenario, started_at, duration_ms, requests, errors, rps, p50_ms, p95_ms, p99_ms
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var startedAt, durationMs int64
		if err := rows.Scan(&run.ID, &run.Scenario, &startedAt, &durationMs,
			&run.Requests, &run.Errors, &run.RPS, &run.P50Ms, &run.P95Ms, &run.P99Ms); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run.StartedAt = time.Unix(startedAt, 0)
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
