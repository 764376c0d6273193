package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	cerrors "github.com/Aman-CERP/contentidx/internal/errors"
	"github.com/Aman-CERP/contentidx/pkg/indexer"
)

const (
	stateReindexReason = "reindex_reason"
	stateReindexAt     = "reindex_requested_at"

	// binarySniffLen is how much of a file is checked for NUL bytes.
	binarySniffLen = 8000
)

// IndexContent tokenizes content into an update for f.
func (s *Store) IndexContent(_ context.Context, f indexer.File, content []byte, stamp indexer.Stamp) (indexer.ApplyResult, error) {
	start := time.Now()
	hash := xxhash.Sum64(content)

	r := &updateResult{
		s:     s,
		file:  f,
		stamp: stamp,
		size:  int64(len(content)),
		hash:  hash,
	}

	if cached, ok := s.hashes.Get(f.ID); ok && cached == hash {
		// Kept until Apply in case the row has gone in the meantime.
		r.unchanged = true
		r.content = content
	} else {
		r.tokenize(content)
	}

	r.took = time.Since(start)
	return r, nil
}

func (r *updateResult) tokenize(content []byte) {
	if bytes.IndexByte(content[:min(len(content), binarySniffLen)], 0) >= 0 {
		r.binary = true
		return
	}
	r.terms = strings.Join(Tokenize(string(content)), " ")
}

// ComputeRemoval returns (nil, nil) when f exists on disk again.
func (s *Store) ComputeRemoval(_ context.Context, f indexer.File, stamp indexer.Stamp) (indexer.ApplyResult, error) {
	if s.exists(f) {
		return nil, nil
	}
	return &removalResult{s: s, file: f, stamp: stamp}, nil
}

// RequestFullReindex records that the index needs rebuilding. The marker
// survives restarts until ClearReindexRequest.
func (s *Store) RequestFullReindex(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.write(ctx, func(tx *sql.Tx) error {
		if err := setState(ctx, tx, stateReindexReason, reason); err != nil {
			return err
		}
		return setState(ctx, tx, stateReindexAt, time.Now().UTC().Format(time.RFC3339))
	})
	if err != nil {
		slog.Error("index_reindex_marker_failed",
			slog.String("reason", reason),
			slog.String("error", err.Error()))
		return
	}
	slog.Warn("index_reindex_requested", slog.String("reason", reason))
}

// ReindexRequested returns the recorded reason, if any.
func (s *Store) ReindexRequested(ctx context.Context) (string, bool, error) {
	reason, err := s.state(ctx, stateReindexReason)
	if err != nil {
		return "", false, err
	}
	return reason, reason != "", nil
}

// Reset removes every indexed file and clears the reindex marker.
func (s *Store) Reset(ctx context.Context) error {
	err := s.write(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM files`,
			`DELETE FROM fts_content`,
			`DELETE FROM state WHERE key IN ('` + stateReindexReason + `', '` + stateReindexAt + `')`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return cerrors.New(cerrors.ErrCodeApplyFailed, "reset index", err)
	}
	s.hashes.Purge()
	return nil
}

func (s *Store) state(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func setState(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}
