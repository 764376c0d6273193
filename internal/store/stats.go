package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Stats summarizes the index contents.
type Stats struct {
	Files       int       `json:"files"`
	Bytes       int64     `json:"bytes"`
	Binary      int       `json:"binary"`
	LastIndexed time.Time `json:"last_indexed"`
}

// RunRecord is the summary of one indexing run.
type RunRecord struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Processed   int       `json:"processed"`
	Indexed     int       `json:"indexed"`
	Removed     int       `json:"removed"`
	Skipped     int       `json:"skipped"`
	Errored     int       `json:"errored"`
	Bytes       int64     `json:"bytes"`
	Interrupted bool      `json:"interrupted"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(size), 0), COALESCE(SUM(is_binary), 0), MAX(indexed_at)
		FROM files`).Scan(&st.Files, &st.Bytes, &st.Binary, &last)
	if err != nil {
		return Stats{}, err
	}
	if last.Valid {
		st.LastIndexed = time.Unix(0, last.Int64)
	}
	return st, nil
}

// Paths returns every indexed path.
func (s *Store) Paths(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT path FROM files ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// RecordRun stores a run summary.
func (s *Store) RecordRun(ctx context.Context, r RunRecord) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO runs
				(run_id, started_at, finished_at, processed, indexed, removed, skipped, errored, bytes, interrupted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, r.StartedAt.UnixNano(), r.FinishedAt.UnixNano(),
			r.Processed, r.Indexed, r.Removed, r.Skipped, r.Errored, r.Bytes, r.Interrupted)
		return err
	})
}

// LastRun returns the most recently finished run, or nil if none.
func (s *Store) LastRun(ctx context.Context) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r RunRecord
	var started, finished int64
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, started_at, finished_at, processed, indexed, removed, skipped, errored, bytes, interrupted
		FROM runs ORDER BY finished_at DESC LIMIT 1`).
		Scan(&r.RunID, &started, &finished, &r.Processed, &r.Indexed, &r.Removed, &r.Skipped, &r.Errored, &r.Bytes, &r.Interrupted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(0, started)
	r.FinishedAt = time.Unix(0, finished)
	return &r, nil
}
