// Package storage persists run results and the reliability checkpoint in
// a local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"dev.veridict.agent/internal/models"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("storage: not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id          TEXT PRIMARY KEY,
	item_id         TEXT NOT NULL,
	status          TEXT NOT NULL,
	verdict         TEXT,
	confidence      REAL,
	aggregate       REAL,
	payload         TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL,
	CHECK (verdict IS NULL OR verdict IN ('REAL','FAKE','UNSURE'))
);
CREATE INDEX IF NOT EXISTS idx_runs_item ON runs(item_id);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

CREATE TABLE IF NOT EXISTS reliability (
	unit_id           TEXT PRIMARY KEY,
	trust_weight      REAL NOT NULL,
	smoothed_accuracy REAL NOT NULL,
	correct_count     INTEGER NOT NULL,
	total_count       INTEGER NOT NULL,
	updated_at        TIMESTAMP NOT NULL
);
`

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	// modernc sqlite serializes per connection; a single connection
	// avoids SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveRun persists one run result. The full result is stored as JSON
// alongside indexed verdict columns for querying.
func (s *Store) SaveRun(ctx context.Context, run models.RunResult) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("storage: encode run %s: %w", run.RunID, err)
	}
	var verdict sql.NullString
	var confidence, aggregate sql.NullFloat64
	if run.Verdict != nil {
		verdict = sql.NullString{String: string(run.Verdict.Verdict), Valid: true}
		confidence = sql.NullFloat64{Float64: run.Verdict.Confidence, Valid: true}
		aggregate = sql.NullFloat64{Float64: run.Verdict.AggregateScore, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(run_id, item_id, status, verdict, confidence, aggregate, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Item.ID, run.Status, verdict, confidence, aggregate,
		string(payload), run.Timestamp)
	if err != nil {
		return fmt.Errorf("storage: save run %s: %w", run.RunID, err)
	}
	return nil
}

// GetRun loads one run result by its identifier.
func (s *Store) GetRun(ctx context.Context, runID string) (models.RunResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM runs WHERE run_id = ?`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RunResult{}, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	if err != nil {
		return models.RunResult{}, fmt.Errorf("storage: load run %s: %w", runID, err)
	}
	var run models.RunResult
	if err := json.Unmarshal([]byte(payload), &run); err != nil {
		return models.RunResult{}, fmt.Errorf("storage: decode run %s: %w", runID, err)
	}
	return run, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]models.RunResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list runs: %w", err)
	}
	defer rows.Close()

	var out []models.RunResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("storage: scan run: %w", err)
		}
		var run models.RunResult
		if err := json.Unmarshal([]byte(payload), &run); err != nil {
			return nil, fmt.Errorf("storage: decode run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// CheckpointReliability writes the full registry snapshot in one
// transaction.
func (s *Store) CheckpointReliability(ctx context.Context, entries []models.ReliabilityEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin checkpoint: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO reliability
			(unit_id, trust_weight, smoothed_accuracy, correct_count, total_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage: prepare checkpoint: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.UnitID, e.TrustWeight,
			e.SmoothedAccuracy, e.CorrectCount, e.TotalCount, e.UpdatedAt); err != nil {
			return fmt.Errorf("storage: checkpoint %s: %w", e.UnitID, err)
		}
	}
	return tx.Commit()
}

// LoadReliability reads the persisted registry state.
func (s *Store) LoadReliability(ctx context.Context) ([]models.ReliabilityEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT unit_id, trust_weight, smoothed_accuracy, correct_count, total_count, updated_at
		FROM reliability ORDER BY unit_id`)
	if err != nil {
		return nil, fmt.Errorf("storage: load reliability: %w", err)
	}
	defer rows.Close()

	var out []models.ReliabilityEntry
	for rows.Next() {
		var e models.ReliabilityEntry
		var updated time.Time
		if err := rows.Scan(&e.UnitID, &e.TrustWeight, &e.SmoothedAccuracy,
			&e.CorrectCount, &e.TotalCount, &updated); err != nil {
			return nil, fmt.Errorf("storage: scan reliability: %w", err)
		}
		e.UpdatedAt = updated
		out = append(out, e)
	}
	return out, rows.Err()
}
