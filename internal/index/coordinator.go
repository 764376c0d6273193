package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/Aman-CERP/contentidx/internal/engine"
	"github.com/Aman-CERP/contentidx/internal/watcher"
	"github.com/Aman-CERP/contentidx/pkg/indexer"
)

// PathLister lists indexed paths. Directory deletes are expanded with it.
type PathLister interface {
	Paths(ctx context.Context) ([]string, error)
}

// RescanLister lists the files that should be indexed. It is rescanned when
// a .gitignore changes.
type RescanLister interface {
	FileLister
	InvalidateGitignoreCache()
}

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	Engine *engine.Engine
	Paths  PathLister

	// Files, if set, reconciles the index with the tree whenever a batch
	// touches a .gitignore.
	Files RescanLister

	// OnBatch, if set, is called after each batch with its statistics.
	OnBatch func(name string, stats engine.Statistics, err error)
}

// Coordinator turns debounced watcher batches into FileSets and indexes
// them one batch at a time.
type Coordinator struct {
	engine  *engine.Engine
	paths   PathLister
	files   RescanLister
	onBatch func(string, engine.Statistics, error)

	mu      sync.Mutex
	batches int
	// carried holds the requests of an interrupted batch. They are merged
	// into the next batch, where newer events for the same path win.
	carried map[string]indexer.Request
}

func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.Paths == nil {
		return nil, fmt.Errorf("path lister is required")
	}
	return &Coordinator{
		engine:  cfg.Engine,
		paths:   cfg.Paths,
		files:   cfg.Files,
		onBatch: cfg.OnBatch,
		carried: make(map[string]indexer.Request),
	}, nil
}

// Run feeds batches from events to HandleEvents until ctx ends or events is
// closed. Watcher errors are logged and do not stop the loop.
func (c *Coordinator) Run(ctx context.Context, events <-chan []watcher.FileEvent, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		case batch, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := c.HandleEvents(ctx, batch); err != nil && ctx.Err() == nil {
				slog.Warn("watch_batch_failed", slog.String("error", err.Error()))
			}
		}
	}
}

// HandleEvents indexes one batch as a single FileSet. If the run is
// interrupted its requests are retried with the next batch.
func (c *Coordinator) HandleEvents(ctx context.Context, events []watcher.FileEvent) (engine.Statistics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending, err := c.requests(ctx, events)
	if err != nil {
		return engine.Statistics{}, err
	}
	if len(pending) == 0 {
		return engine.Statistics{}, nil
	}

	c.batches++
	name := fmt.Sprintf("watch-%d", c.batches)
	set := engine.NewFileSet(name, sortedRequests(pending))

	slog.Debug("watch_batch_started",
		slog.String("set", name),
		slog.Int("events", len(events)),
		slog.Int("requests", set.Len()))

	err = c.engine.IndexFiles(ctx, []*engine.FileSet{set}, nil)
	stats := set.Stats()

	var interrupted *engine.InterruptedError
	if errors.As(err, &interrupted) {
		c.carried = pending
		slog.Info("watch_batch_interrupted",
			slog.String("set", name),
			slog.Int("processed", stats.Processed),
			slog.Int("carried", len(pending)))
	} else {
		clear(c.carried)
	}

	if c.onBatch != nil {
		c.onBatch(name, stats, err)
	}
	return stats, err
}

// requests merges the carried requests with the batch. Later events win.
func (c *Coordinator) requests(ctx context.Context, events []watcher.FileEvent) (map[string]indexer.Request, error) {
	pending := maps.Clone(c.carried)
	if pending == nil {
		pending = make(map[string]indexer.Request)
	}

	var indexed []string
	listed := false
	list := func() ([]string, error) {
		if listed {
			return indexed, nil
		}
		paths, err := c.paths.Paths(ctx)
		if err != nil {
			return nil, fmt.Errorf("list indexed paths: %w", err)
		}
		slices.Sort(paths)
		indexed, listed = paths, true
		return indexed, nil
	}

	if c.files != nil && touchesGitignore(events) {
		if err := c.reconcile(ctx, pending, list); err != nil {
			return nil, err
		}
	}

	for _, ev := range events {
		switch ev.Operation {
		case watcher.OpCreate, watcher.OpModify:
			if ev.IsDir {
				// Files of a new directory are announced individually.
				continue
			}
			req := indexer.Update(ev.Path)
			pending[req.File.Path] = req

		case watcher.OpDelete:
			req := indexer.Delete(ev.Path)

			// A removed directory arrives as one event for the directory.
			sorted, err := list()
			if err != nil {
				return nil, err
			}
			under := pathsUnder(sorted, req.File.Path)
			if len(under) == 0 {
				pending[req.File.Path] = req
			}
			for _, p := range under {
				pending[p] = indexer.Delete(p)
			}

		case watcher.OpRename:
			// The debouncer splits renames; handle a raw one the same way.
			if ev.OldPath != "" {
				old := indexer.Delete(ev.OldPath)
				pending[old.File.Path] = old
			}
			req := indexer.Update(ev.Path)
			pending[req.File.Path] = req
		}
	}
	return pending, nil
}

// reconcile rescans the tree after an ignore rule changed. Indexed files
// that are now ignored are deleted and files no longer ignored are added.
// Files that match on both sides are left to their own events.
func (c *Coordinator) reconcile(ctx context.Context, pending map[string]indexer.Request, list func() ([]string, error)) error {
	c.files.InvalidateGitignoreCache()
	files, err := c.files.Scan(ctx)
	if err != nil {
		return fmt.Errorf("rescan after ignore change: %w", err)
	}
	indexed, err := list()
	if err != nil {
		return err
	}

	scanned := make(map[string]struct{}, len(files))
	added := 0
	for _, f := range files {
		scanned[f.Path] = struct{}{}
		if _, ok := slices.BinarySearch(indexed, f.Path); !ok {
			pending[f.Path] = indexer.Update(f.Path)
			added++
		}
	}
	removed := 0
	for _, p := range indexed {
		if _, ok := scanned[p]; !ok {
			pending[p] = indexer.Delete(p)
			removed++
		}
	}

	slog.Info("watch_ignore_reconciled",
		slog.Int("added", added),
		slog.Int("removed", removed))
	return nil
}

func touchesGitignore(events []watcher.FileEvent) bool {
	for _, ev := range events {
		if path.Base(ev.Path) == ".gitignore" || path.Base(ev.OldPath) == ".gitignore" {
			return true
		}
	}
	return false
}

// pathsUnder returns the entries of sorted that lie below dir.
func pathsUnder(sorted []string, dir string) []string {
	prefix := dir + "/"
	i, _ := slices.BinarySearch(sorted, prefix)
	var out []string
	for ; i < len(sorted) && strings.HasPrefix(sorted[i], prefix); i++ {
		out = append(out, sorted[i])
	}
	return out
}

func sortedRequests(m map[string]indexer.Request) []indexer.Request {
	out := make([]indexer.Request, 0, len(m))
	for _, path := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[path])
	}
	return out
}
