package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	cerrors "github.com/Aman-CERP/contentidx/internal/errors"
)

// HybridWatcher watches a tree with fsnotify, falling back to polling
// when fsnotify cannot be initialized, and emits debounced batches.
type HybridWatcher struct {
	opts      Options
	filter    Filter
	debouncer *Debouncer

	fsWatcher   *fsnotify.Watcher
	pollWatcher *PollingWatcher

	root   string
	events chan []FileEvent
	errors chan error
	stopCh chan struct{}

	ready     chan struct{}
	markReady func()

	mu      sync.RWMutex
	stopped bool
}

// NewHybridWatcher creates a watcher. A nil filter watches every path.
func NewHybridWatcher(opts Options, filter Filter) (*HybridWatcher, error) {
	opts = opts.WithDefaults()
	if filter == nil {
		filter = noFilter{}
	}

	h := &HybridWatcher{
		opts:      opts,
		filter:    filter,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		ready:     make(chan struct{}),
	}
	h.markReady = sync.OnceFunc(func() { close(h.ready) })

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			h.fsWatcher = fsw
			return h, nil
		}
		slog.Warn("watch_fsnotify_unavailable", slog.String("error", err.Error()))
	}
	h.pollWatcher = NewPollingWatcher(opts.PollInterval, filter)
	return h, nil
}

// Start watches root until ctx ends or Stop is called. It blocks.
func (h *HybridWatcher) Start(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return cerrors.New(cerrors.ErrCodeInvalidPath, "resolve watch root", err)
	}
	h.mu.Lock()
	h.root = abs
	h.mu.Unlock()

	var wg sync.WaitGroup
	defer wg.Wait()
	defer func() { _ = h.Stop() }()
	wg.Go(func() { h.forwardBatches(ctx) })

	slog.Info("watch_started",
		slog.String("root", abs),
		slog.String("mode", h.Mode()))

	if h.fsWatcher != nil {
		return h.runFsnotify(ctx)
	}
	return h.runPolling(ctx)
}

func (h *HybridWatcher) runFsnotify(ctx context.Context) error {
	if err := h.addRecursive(h.root, false); err != nil {
		return cerrors.New(cerrors.ErrCodeFilePermission, "watch project directories", err)
	}
	h.markReady()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.stopCh:
			return nil
		case event, ok := <-h.fsWatcher.Events:
			if !ok {
				return nil
			}
			h.handleFsnotifyEvent(event)
		case err, ok := <-h.fsWatcher.Errors:
			if !ok {
				return nil
			}
			h.emitError(err)
		}
	}
}

func (h *HybridWatcher) runPolling(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	wg.Go(func() {
		for event := range h.pollWatcher.Events() {
			h.add(event)
		}
	})
	wg.Go(func() {
		select {
		case <-h.pollWatcher.Ready():
			h.markReady()
		case <-h.stopCh:
		case <-ctx.Done():
		}
	})

	return h.pollWatcher.Start(ctx, h.root)
}

// handleFsnotifyEvent converts, filters and records one fsnotify event.
func (h *HybridWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(h.root, event.Name)
	if err != nil || rel == "." {
		return
	}
	rel = filepath.ToSlash(rel)

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}
	if h.filter.Excluded(rel, isDir) {
		return
	}
	if filepath.Base(rel) == ".gitignore" {
		h.filter.InvalidateGitignoreCache()
	}

	now := time.Now()
	switch {
	case event.Has(fsnotify.Create):
		if isDir {
			// Files may land in a new directory before it is watched.
			if err := h.addRecursive(event.Name, true); err != nil {
				h.emitError(err)
			}
			return
		}
		h.add(FileEvent{Path: rel, Operation: OpCreate, Timestamp: now})
	case event.Has(fsnotify.Write):
		if !isDir {
			h.add(FileEvent{Path: rel, Operation: OpModify, Timestamp: now})
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// fsnotify reports the old name of a rename; the new name arrives
		// as a separate create.
		h.add(FileEvent{Path: rel, Operation: OpDelete, Timestamp: now})
	}
}

func (h *HybridWatcher) add(event FileEvent) {
	h.debouncer.Add(event)
}

// addRecursive watches dir and every non-excluded directory below it.
// With announce set, files already present are reported as created.
func (h *HybridWatcher) addRecursive(dir string, announce bool) error {
	now := time.Now()
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(h.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && h.filter.Excluded(rel, true) {
				return filepath.SkipDir
			}
			return h.fsWatcher.Add(path)
		}
		if announce && d.Type().IsRegular() && !h.filter.Excluded(rel, false) {
			h.add(FileEvent{Path: rel, Operation: OpCreate, Timestamp: now})
		}
		return nil
	})
}

// forwardBatches moves debounced batches to the events channel, waiting
// for the consumer rather than dropping.
func (h *HybridWatcher) forwardBatches(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case batch, ok := <-h.debouncer.Output():
			if !ok {
				return
			}
			select {
			case h.events <- batch:
			case <-ctx.Done():
				return
			case <-h.stopCh:
				return
			}
		}
	}
}

func (h *HybridWatcher) emitError(err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}
	select {
	case h.errors <- err:
	default:
		slog.Warn("watch_error_dropped", slog.String("error", err.Error()))
	}
}

// Stop stops watching. The events and errors channels are not closed, so
// consumers should select on their own context as well. Safe to call
// multiple times.
func (h *HybridWatcher) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil
	}
	h.stopped = true
	close(h.stopCh)
	h.debouncer.Stop()

	if h.fsWatcher != nil {
		_ = h.fsWatcher.Close()
	}
	if h.pollWatcher != nil {
		_ = h.pollWatcher.Stop()
	}
	return nil
}

// Ready is closed once every directory is watched. Changes made after it
// closes are reported; it never closes if Start fails first.
func (h *HybridWatcher) Ready() <-chan struct{} {
	return h.ready
}

// Events returns the channel of debounced batches.
func (h *HybridWatcher) Events() <-chan []FileEvent {
	return h.events
}

// Errors returns non-fatal watcher errors.
func (h *HybridWatcher) Errors() <-chan error {
	return h.errors
}

// Mode reports "fsnotify" or "polling".
func (h *HybridWatcher) Mode() string {
	if h.fsWatcher != nil {
		return "fsnotify"
	}
	return "polling"
}
