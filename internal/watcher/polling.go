package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	cerrors "github.com/Aman-CERP/contentidx/internal/errors"
)

// PollingWatcher detects changes by rescanning the tree on an interval.
type PollingWatcher struct {
	interval time.Duration
	filter   Filter
	root     string

	mu     sync.Mutex
	state  map[string]fileSnapshot
	events chan FileEvent
	stopCh chan struct{}
	stop   func()

	ready     chan struct{}
	markReady func()
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// NewPollingWatcher creates a polling watcher. A nil filter watches
// every file.
func NewPollingWatcher(interval time.Duration, filter Filter) *PollingWatcher {
	if filter == nil {
		filter = noFilter{}
	}
	p := &PollingWatcher{
		interval: interval,
		filter:   filter,
		state:    make(map[string]fileSnapshot),
		events:   make(chan FileEvent, 100),
		stopCh:   make(chan struct{}),
	}
	p.stop = sync.OnceFunc(func() { close(p.stopCh) })
	p.ready = make(chan struct{})
	p.markReady = sync.OnceFunc(func() { close(p.ready) })
	return p
}

// Ready is closed once the baseline is recorded. Changes after that are
// reported.
func (p *PollingWatcher) Ready() <-chan struct{} { return p.ready }

// Start records a baseline and then polls until ctx ends or Stop is
// called. The events channel is closed when Start returns.
func (p *PollingWatcher) Start(ctx context.Context, root string) error {
	defer close(p.events)

	abs, err := filepath.Abs(root)
	if err != nil {
		return cerrors.New(cerrors.ErrCodeInvalidPath, "resolve watch root", err)
	}
	p.root = abs

	p.mu.Lock()
	p.state = p.snapshot()
	p.mu.Unlock()
	p.markReady()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			for _, ev := range p.detectChanges() {
				select {
				case p.events <- ev:
				case <-ctx.Done():
					return ctx.Err()
				case <-p.stopCh:
					return nil
				}
			}
		}
	}
}

// Stop ends Start. Safe to call multiple times.
func (p *PollingWatcher) Stop() error {
	p.stop()
	return nil
}

// Events returns the channel of raw, undebounced events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// snapshot walks the tree and records every watched regular file.
func (p *PollingWatcher) snapshot() map[string]fileSnapshot {
	files := make(map[string]fileSnapshot)
	_ = filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == p.root {
			return nil
		}
		rel, relErr := filepath.Rel(p.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if p.filter.Excluded(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || p.filter.Excluded(rel, false) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files[rel] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	return files
}

// detectChanges diffs a fresh snapshot against the previous one.
func (p *PollingWatcher) detectChanges() []FileEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	current := p.snapshot()
	var events []FileEvent

	for rel, snap := range current {
		prev, ok := p.state[rel]
		switch {
		case !ok:
			events = append(events, FileEvent{Path: rel, Operation: OpCreate, Timestamp: now})
		case prev != snap:
			events = append(events, FileEvent{Path: rel, Operation: OpModify, Timestamp: now})
		}
	}
	for rel := range p.state {
		if _, ok := current[rel]; !ok {
			events = append(events, FileEvent{Path: rel, Operation: OpDelete, Timestamp: now})
		}
	}

	p.state = current
	return events
}
