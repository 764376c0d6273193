package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	cerrors "github.com/Aman-CERP/contentidx/internal/errors"
	"github.com/Aman-CERP/contentidx/pkg/indexer"
)

// updateResult replaces a file's row and search content.
type updateResult struct {
	s         *Store
	file      indexer.File
	stamp     indexer.Stamp
	size      int64
	hash      uint64
	binary    bool
	terms     string
	unchanged bool
	content   []byte
	took      time.Duration
}

func (r *updateResult) File() indexer.File          { return r.file }
func (r *updateResult) IndexingTime() time.Duration { return r.took }

// Apply writes the file. Stamps are modification times, which can move
// backwards, so the stored stamp is replaced whatever its value. Unchanged
// content only refreshes the stamp.
func (r *updateResult) Apply(ctx context.Context) error {
	defer func() { r.content = nil }()
	now := time.Now().UnixNano()
	id := int64(r.file.ID)

	err := r.s.write(ctx, func(tx *sql.Tx) error {
		var stored int64
		err := tx.QueryRowContext(ctx, `SELECT stamp FROM files WHERE file_id = ?`, id).Scan(&stored)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if r.unchanged {
			if err == nil {
				_, err := tx.ExecContext(ctx,
					`UPDATE files SET stamp = ?, indexed_at = ? WHERE file_id = ?`,
					int64(r.stamp), now, id)
				return err
			}
			r.tokenize(r.content)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO files (file_id, path, stamp, size, content_hash, is_binary, indexed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(file_id) DO UPDATE SET
				path = excluded.path,
				stamp = excluded.stamp,
				size = excluded.size,
				content_hash = excluded.content_hash,
				is_binary = excluded.is_binary,
				indexed_at = excluded.indexed_at`,
			id, r.file.Path, int64(r.stamp), r.size, int64(r.hash), r.binary, now); err != nil {
			return err
		}

		// FTS5 has no upsert.
		if _, err := tx.ExecContext(ctx, `DELETE FROM fts_content WHERE path = ?`, r.file.Path); err != nil {
			return err
		}
		if r.terms == "" {
			return nil
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO fts_content (path, content) VALUES (?, ?)`, r.file.Path, r.terms)
		return err
	})
	if err != nil {
		r.s.hashes.Remove(r.file.ID)
		return cerrors.New(cerrors.ErrCodeApplyFailed, "apply update for "+r.file.Path, err)
	}

	r.s.hashes.Add(r.file.ID, r.hash)
	return nil
}

// removalResult deletes a file's row and search content.
type removalResult struct {
	s     *Store
	file  indexer.File
	stamp indexer.Stamp
	took  time.Duration
}

func (r *removalResult) File() indexer.File          { return r.file }
func (r *removalResult) IndexingTime() time.Duration { return r.took }

func (r *removalResult) Apply(ctx context.Context) error {
	err := r.s.write(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE file_id = ?`, int64(r.file.ID)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM fts_content WHERE path = ?`, r.file.Path)
		return err
	})
	r.s.hashes.Remove(r.file.ID)
	if err != nil {
		return cerrors.New(cerrors.ErrCodeApplyFailed, "apply removal for "+r.file.Path, err)
	}
	return nil
}
