// Package store persists indexed file content in SQLite with an FTS5 table
// for search. It supplies the content indexer and removal computer the
// indexing engine drives, and records run history and repair markers.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite" // pure Go driver, registers "sqlite"

	cerrors "github.com/Aman-CERP/contentidx/internal/errors"
	"github.com/Aman-CERP/contentidx/pkg/indexer"
)

const schemaVersion = 1

// Options configures a Store.
type Options struct {
	// CacheSize is the number of content hashes remembered to skip
	// rewriting unchanged files. Zero uses 4096.
	CacheSize int

	// Exists reports whether a file is present on disk. ComputeRemoval uses
	// it to detect files re-created after their delete was requested. Nil
	// treats every file as gone.
	Exists func(indexer.File) bool

	// Retry overrides the backoff used when the database is busy.
	Retry *cerrors.RetryConfig
}

// Store is the persistent index.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool

	exists func(indexer.File) bool
	hashes *lru.Cache[indexer.FileID, uint64]
	retry  cerrors.RetryConfig
}

var (
	_ indexer.ContentIndexer     = (*Store)(nil)
	_ indexer.RemovalComputer    = (*Store)(nil)
	_ indexer.CorruptionReporter = (*Store)(nil)
)

// Open opens or creates the index at path. An empty path opens an
// in-memory database. A database that fails its integrity check is removed
// and recreated empty.
func Open(path string, opts Options) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, cerrors.New(cerrors.ErrCodeStoreOpen, "create index directory", err)
		}
		if err := validateIntegrity(path); err != nil {
			slog.Warn("index_store_corrupted",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if rmErr := removeDatabase(path); rmErr != nil {
				return nil, cerrors.New(cerrors.ErrCodeCorruptIndex, "index is corrupted and cannot be removed", rmErr).
					WithDetail("path", path)
			}
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeStoreOpen, "open index database", err)
	}

	// One connection serializes writers; WAL lets other processes read.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, cerrors.New(cerrors.ErrCodeStoreOpen, "set pragma", err).WithDetail("pragma", pragma)
		}
	}

	if opts.CacheSize <= 0 {
		opts.CacheSize = 4096
	}
	hashes, err := lru.New[indexer.FileID, uint64](opts.CacheSize)
	if err != nil {
		_ = db.Close()
		return nil, cerrors.InternalError("create hash cache", err)
	}

	s := &Store{
		db:     db,
		path:   path,
		exists: opts.Exists,
		hashes: hashes,
		retry:  cerrors.DefaultRetryConfig(),
	}
	if s.exists == nil {
		s.exists = func(indexer.File) bool { return false }
	}
	if opts.Retry != nil {
		s.retry = *opts.Retry
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, cerrors.New(cerrors.ErrCodeStoreSchema, "initialize schema", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS files (
		file_id      INTEGER PRIMARY KEY,
		path         TEXT NOT NULL UNIQUE,
		stamp        INTEGER NOT NULL,
		size         INTEGER NOT NULL,
		content_hash INTEGER NOT NULL,
		is_binary    INTEGER NOT NULL DEFAULT 0,
		indexed_at   INTEGER NOT NULL
	);

	-- content holds pre-tokenized text; path is stored for results only
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_content USING fts5(
		path UNINDEXED,
		content,
		tokenize='unicode61'
	);

	CREATE TABLE IF NOT EXISTS state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		run_id      TEXT PRIMARY KEY,
		started_at  INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		processed   INTEGER NOT NULL,
		indexed     INTEGER NOT NULL,
		removed     INTEGER NOT NULL,
		skipped     INTEGER NOT NULL,
		errored     INTEGER NOT NULL,
		bytes       INTEGER NOT NULL,
		interrupted INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, schemaVersion)
	return err
}

// validateIntegrity checks an existing database before it is opened for
// writing. A missing file is valid.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('files', 'fts_content')`).Scan(&count)
	if err != nil {
		return fmt.Errorf("query schema: %w", err)
	}
	if count != 0 && count != 2 {
		return fmt.Errorf("schema incomplete: %d of 2 tables", count)
	}
	return nil
}

func removeDatabase(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
	return nil
}

// Path is the database file, or "" for an in-memory store.
func (s *Store) Path() string { return s.path }

// Close releases the database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// write runs fn in a transaction, retrying while the database is busy.
func (s *Store) write(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return cerrors.New(cerrors.ErrCodeStoreOpen, "index store is closed", nil)
	}

	return cerrors.Retry(ctx, s.retry, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return classifySQLiteError(err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := fn(tx); err != nil {
			return classifySQLiteError(err)
		}
		return classifySQLiteError(tx.Commit())
	})
}

// classifySQLiteError marks lock contention as retryable.
func classifySQLiteError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return cerrors.New(cerrors.ErrCodeStoreBusy, "index database is busy", err)
	}
	return err
}
