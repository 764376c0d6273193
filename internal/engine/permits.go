package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Aman-CERP/contentidx/pkg/indexer"
)

// PauseFlag is an indexer.PauseSignal toggled from outside the engine.
type PauseFlag struct {
	paused atomic.Bool
}

func (p *PauseFlag) Paused() bool { return p.paused.Load() }
func (p *PauseFlag) Pause()       { p.paused.Store(true) }
func (p *PauseFlag) Resume()      { p.paused.Store(false) }

// Toggle flips the flag and returns the new state.
func (p *PauseFlag) Toggle() bool {
	for {
		old := p.paused.Load()
		if p.paused.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

type neverPaused struct{}

func (neverPaused) Paused() bool { return false }

// permits hands out the concurrency slots workers hold while doing heavy
// work. A paused signal holds new acquisitions back.
type permits struct {
	sem   *semaphore.Weighted
	pause indexer.PauseSignal
	poll  time.Duration
}

func newPermits(n int, pause indexer.PauseSignal, poll time.Duration) *permits {
	return &permits{
		sem:   semaphore.NewWeighted(int64(n)),
		pause: pause,
		poll:  poll,
	}
}

func (p *permits) acquire(ctx context.Context) error {
	if p.pause.Paused() {
		slog.Debug("indexing_paused")
		for p.pause.Paused() {
			if err := waitFor(ctx, nil, p.poll); err != nil {
				return err
			}
		}
		slog.Debug("indexing_resumed")
	}
	return p.sem.Acquire(ctx, 1)
}

func (p *permits) release() {
	p.sem.Release(1)
}
