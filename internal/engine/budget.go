package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval bounds how long a blocked goroutine goes without
// checking for cancellation.
const DefaultPollInterval = 100 * time.Millisecond

// MemoryBudget tracks bytes of file content held in memory by in-flight
// jobs. The ceiling is soft: a reservation is granted whenever the current
// total is below the ceiling, whatever its size, so one large file can push
// the total past the ceiling. Later reservations then wait until enough is
// released.
type MemoryBudget struct {
	mu      sync.Mutex
	loaded  int64
	peak    int64
	ceiling int64
	poll    time.Duration

	// changed is closed and replaced on every release.
	changed chan struct{}
}

// NewMemoryBudget creates a budget. A ceiling <= 0 disables throttling.
func NewMemoryBudget(ceiling int64, poll time.Duration) *MemoryBudget {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &MemoryBudget{
		ceiling: ceiling,
		poll:    poll,
		changed: make(chan struct{}),
	}
}

// Acquire reserves n bytes, waiting while the budget is exhausted. It
// returns ctx.Err() without reserving anything if ctx ends first.
func (b *MemoryBudget) Acquire(ctx context.Context, n int64) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		b.mu.Lock()
		if b.ceiling <= 0 || b.loaded < b.ceiling {
			b.loaded += n
			b.peak = max(b.peak, b.loaded)
			b.mu.Unlock()
			return nil
		}
		changed := b.changed
		b.mu.Unlock()

		if err := waitFor(ctx, changed, b.poll); err != nil {
			return err
		}
	}
}

// Release returns n bytes to the budget and wakes waiters.
func (b *MemoryBudget) Release(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.loaded -= n
	if b.loaded < 0 {
		slog.Error("memory_budget_underflow",
			slog.Int64("loaded", b.loaded),
			slog.Int64("released", n))
		b.loaded = 0
	}
	close(b.changed)
	b.changed = make(chan struct{})
}

// Loaded is the number of bytes currently reserved.
func (b *MemoryBudget) Loaded() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

// Peak is the highest Loaded value seen.
func (b *MemoryBudget) Peak() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peak
}

func (b *MemoryBudget) Ceiling() int64 {
	return b.ceiling
}

// waitFor blocks until ch is closed, d elapses or ctx ends.
func waitFor(ctx context.Context, ch <-chan struct{}, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	case <-timer.C:
		return nil
	}
}
