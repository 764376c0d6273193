package watcher

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Debouncer coalesces rapid events per path and emits them as one batch
// once no event has arrived for the window.
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	pending map[string]FileEvent
	output  chan []FileEvent
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer with the given quiet window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]FileEvent),
		output:  make(chan []FileEvent, 10),
	}
}

// Add records an event and restarts the window.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if event.Operation == OpRename {
		if event.OldPath != "" {
			d.merge(FileEvent{
				Path:      event.OldPath,
				Operation: OpDelete,
				IsDir:     event.IsDir,
				Timestamp: event.Timestamp,
			})
		}
		event.Operation = OpCreate
		event.OldPath = ""
	}
	d.merge(event)
	d.schedule()
}

func (d *Debouncer) merge(event FileEvent) {
	prev, ok := d.pending[event.Path]
	if !ok {
		d.pending[event.Path] = event
		return
	}

	op, keep := coalesce(prev.Operation, event.Operation)
	if !keep {
		delete(d.pending, event.Path)
		return
	}
	event.Operation = op
	d.pending[event.Path] = event
}

// coalesce combines the pending operation with a newer one. keep is false
// when the two cancel out.
func coalesce(prev, next Operation) (op Operation, keep bool) {
	switch prev {
	case OpCreate:
		if next == OpDelete {
			return 0, false
		}
		return OpCreate, true
	case OpModify:
		if next == OpDelete {
			return OpDelete, true
		}
		return OpModify, true
	case OpDelete:
		if next == OpDelete {
			return OpDelete, true
		}
		return OpModify, true
	default:
		return next, true
	}
}

// schedule restarts the flush timer. Callers hold d.mu.
func (d *Debouncer) schedule() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	events := make([]FileEvent, 0, len(d.pending))
	for _, ev := range d.pending {
		events = append(events, ev)
	}
	slices.SortFunc(events, func(a, b FileEvent) int { return cmp.Compare(a.Path, b.Path) })

	select {
	case d.output <- events:
		d.pending = make(map[string]FileEvent)
	default:
		// Keep the events pending and try again after another window.
		slog.Warn("watch_batch_deferred", slog.Int("batch_size", len(events)))
		d.schedule()
	}
}

// Output returns the channel of batches. It is closed by Stop.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Pending returns the number of paths waiting to be emitted.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop discards pending events and closes the output channel. Safe to
// call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
