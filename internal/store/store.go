// Package store keeps a SQLite journal of translation runs: one row per
// session plus one row per failed batch. Translation results themselves
// are never stored.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/bilingua/internal"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Sessions write from worker goroutines; one connection keeps SQLite
	// from returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		page_url TEXT NOT NULL DEFAULT '',
		target_lang TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT '',
		total INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	-- batch_failures keeps one row per batch that did not complete
	CREATE TABLE IF NOT EXISTS batch_failures (
		run_id TEXT NOT NULL,
		batch_id INTEGER NOT NULL,
		units INTEGER NOT NULL,
		error_class TEXT NOT NULL,
		message TEXT NOT NULL,
		occurred_at TIMESTAMP NOT NULL,
		PRIMARY KEY (run_id, batch_id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_document ON runs(document);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun inserts or replaces the summary of a run.
func (s *Store) SaveRun(ctx context.Context, run internal.RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, document, page_url, target_lang, state, status, total, completed, failed, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, normalizeName(run.Document), run.PageURL, run.TargetLang, run.State, run.Status,
		run.Total, run.Completed, run.Failed, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// SaveFailure records a failed batch of a run.
func (s *Store) SaveFailure(ctx context.Context, f internal.BatchFailure) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO batch_failures (run_id, batch_id, units, error_class, message, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.RunID, f.BatchID, f.Units, f.ErrorClass, f.Message, f.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to save batch failure: %w", err)
	}
	return nil
}

// ListRuns returns runs, most recent first. limit ≤ 0 returns every run.
// A non-empty document filters by document name.
func (s *Store) ListRuns(ctx context.Context, document string, limit int) ([]internal.RunRecord, error) {
	query := `SELECT id, document, page_url, target_lang, state, status, total, completed, failed, started_at, finished_at FROM runs`
	var args []interface{}
	if document != "" {
		query += ` WHERE document = ?`
		args = append(args, normalizeName(document))
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []internal.RunRecord
	for rows.Next() {
		var r internal.RunRecord
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Document, &r.PageURL, &r.TargetLang, &r.State, &r.Status,
			&r.Total, &r.Completed, &r.Failed, &r.StartedAt, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Failures returns the failed batches of a run in batch order.
func (s *Store) Failures(ctx context.Context, runID string) ([]internal.BatchFailure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, batch_id, units, error_class, message, occurred_at FROM batch_failures WHERE run_id = ? ORDER BY batch_id`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.BatchFailure
	for rows.Next() {
		var f internal.BatchFailure
		if err := rows.Scan(&f.RunID, &f.BatchID, &f.Units, &f.ErrorClass, &f.Message, &f.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// RunStats summarises the journal.
type RunStats struct {
	TotalRuns      int
	Completed      int
	Stopped        int
	NothingFound   int
	UnitsCompleted int
	UnitsFailed    int
	FailedBatches  int
}

// Stats returns summary statistics for all recorded runs.
func (s *Store) Stats(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'stopped' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'nothing found' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(completed), 0),
			COALESCE(SUM(failed), 0)
		FROM runs`).Scan(
		&stats.TotalRuns,
		&stats.Completed,
		&stats.Stopped,
		&stats.NothingFound,
		&stats.UnitsCompleted,
		&stats.UnitsFailed,
	)
	if err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM batch_failures`).Scan(&stats.FailedBatches); err != nil {
		return nil, err
	}
	return stats, nil
}

// Clear removes every run and failure and returns the number of runs
// deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM batch_failures`); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// normalizeName trims whitespace and applies Unicode NFC normalization so
// the same document name typed on different systems matches.
func normalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
