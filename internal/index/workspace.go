// Package index drives full index runs and watch-mode updates for one
// project directory.
package index

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/contentidx/internal/config"
	"github.com/Aman-CERP/contentidx/internal/content"
	"github.com/Aman-CERP/contentidx/internal/engine"
	cerrors "github.com/Aman-CERP/contentidx/internal/errors"
	"github.com/Aman-CERP/contentidx/internal/lock"
	"github.com/Aman-CERP/contentidx/internal/scanner"
	"github.com/Aman-CERP/contentidx/internal/store"
)

// DatabaseFile is the index database inside the data directory.
const DatabaseFile = "index.db"

// Workspace is everything needed to index one project: the locked data
// directory, the store, the content source, the scanner and an engine
// wired to them. Close releases it.
type Workspace struct {
	Root    string
	DataDir string
	Config  *config.Config

	Lock    *lock.DirLock
	Store   *store.Store
	Content *content.FS
	Scanner *scanner.Scanner
	Engine  *engine.Engine
	Pause   *engine.PauseFlag
}

// OpenWorkspace locks the data directory of root and opens the index. A
// lock held by another process fails with ErrCodeLockHeld.
func OpenWorkspace(root string, cfg *config.Config) (*Workspace, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeInvalidPath, "resolve project root", err)
	}

	engineCfg, maxFileSize, err := engineConfig(cfg)
	if err != nil {
		return nil, err
	}

	w := &Workspace{
		Root:    root,
		DataDir: cfg.ResolveDataDir(root),
		Config:  cfg,
		Pause:   &engine.PauseFlag{},
	}

	w.Lock = lock.New(w.DataDir)
	if err := w.Lock.TryAcquire(); err != nil {
		return nil, err
	}

	// Everything below must release the lock on failure.
	ok := false
	defer func() {
		if !ok {
			_ = w.Close()
		}
	}()

	w.Content = content.NewFS(root, maxFileSize)

	w.Store, err = store.Open(filepath.Join(w.DataDir, DatabaseFile), store.Options{
		CacheSize: cfg.Store.CacheSize,
		Exists:    w.Content.Exists,
	})
	if err != nil {
		return nil, err
	}

	w.Scanner, err = scanner.New(scanner.Options{
		Root:             root,
		Include:          cfg.Paths.Include,
		Exclude:          cfg.Paths.Exclude,
		RespectGitignore: true,
		SkipDirs:         []string{w.DataDir},
	})
	if err != nil {
		return nil, err
	}

	w.Engine, err = engine.New(engineCfg, engine.Dependencies{
		SizePolicy: w.Content,
		Source:     w.Content,
		Indexer:    w.Store,
		Remover:    w.Store,
		Stamps:     w.Content,
		Pause:      w.Pause,
		Corruption: w.Store,
	})
	if err != nil {
		return nil, cerrors.InternalError("build engine", err)
	}

	slog.Info("workspace_opened",
		slog.String("root", root),
		slog.String("data_dir", w.DataDir),
		slog.Int("workers", w.Engine.Config().Workers))
	ok = true
	return w, nil
}

// engineConfig translates the engine section of cfg.
func engineConfig(cfg *config.Config) (engine.Config, int64, error) {
	ceiling, err := cfg.MemoryCeilingBytes()
	if err != nil {
		return engine.Config{}, 0, err
	}
	maxFileSize, err := cfg.MaxFileSizeBytes()
	if err != nil {
		return engine.Config{}, 0, err
	}
	poll, err := cfg.PollInterval()
	if err != nil {
		return engine.Config{}, 0, err
	}

	return engine.Config{
		Workers:       cfg.Engine.Workers,
		WriterWorkers: cfg.Engine.WriterWorkers,
		WriterBacklog: cfg.Engine.WriterBacklog,
		MemoryCeiling: ceiling,
		PollInterval:  poll,
	}, maxFileSize, nil
}

// DatabaseSize is the on-disk size of the index, including the WAL.
func (w *Workspace) DatabaseSize() int64 {
	return DatabaseSize(w.Store.Path())
}

// DatabaseSize is the on-disk size of the database at path, including its
// WAL and shared-memory files.
func DatabaseSize(path string) int64 {
	var total int64
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if info, err := os.Stat(path + suffix); err == nil {
			total += info.Size()
		}
	}
	return total
}

// Close closes the store and releases the lock.
func (w *Workspace) Close() error {
	var errs []error
	if w.Store != nil {
		if err := w.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if w.Lock != nil {
		if err := w.Lock.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release lock: %w", err))
		}
	}
	return errors.Join(errs...)
}
