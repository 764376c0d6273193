package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ProgressSnapshot is a point-in-time view of a ProgressReporter.
type ProgressSnapshot struct {
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Fraction  float64       `json:"fraction"`
	Location  string        `json:"location,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// ProgressReporter counts processed files. It is written by workers and may
// be read at any time from other goroutines. Processed never decreases.
type ProgressReporter struct {
	total     atomic.Int64
	totalSet  atomic.Bool
	processed atomic.Int64

	mu       sync.RWMutex
	location string
	started  time.Time

	logLocation rate.Sometimes
}

func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		started:     time.Now(),
		logLocation: rate.Sometimes{Interval: time.Second},
	}
}

// SetTotalFiles records the total once. Later calls are ignored.
func (p *ProgressReporter) SetTotalFiles(n int) {
	if !p.totalSet.CompareAndSwap(false, true) {
		return
	}
	p.total.Store(int64(n))

	p.mu.Lock()
	p.started = time.Now()
	p.mu.Unlock()
}

func (p *ProgressReporter) OneMoreFileProcessed() {
	p.processed.Add(1)
}

// SetLocationBeingIndexed updates the "currently indexing" label.
func (p *ProgressReporter) SetLocationBeingIndexed(text string) {
	p.mu.Lock()
	p.location = text
	p.mu.Unlock()

	p.logLocation.Do(func() {
		slog.Debug("indexing_location",
			slog.String("path", text),
			slog.Int64("processed", p.processed.Load()),
			slog.Int64("total", p.total.Load()))
	})
}

func (p *ProgressReporter) Processed() int { return int(p.processed.Load()) }
func (p *ProgressReporter) Total() int     { return int(p.total.Load()) }

// Fraction is processed/total in [0, 1]. An empty run is complete.
func (p *ProgressReporter) Fraction() float64 {
	total := p.total.Load()
	if total <= 0 {
		return 1
	}
	return min(float64(p.processed.Load())/float64(total), 1)
}

func (p *ProgressReporter) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	location, started := p.location, p.started
	p.mu.RUnlock()

	return ProgressSnapshot{
		Total:     p.Total(),
		Processed: p.Processed(),
		Fraction:  p.Fraction(),
		Location:  location,
		Elapsed:   time.Since(started),
	}
}
