package engine

import (
	"sync"
	"time"

	"github.com/Aman-CERP/contentidx/pkg/indexer"
)

// Statistics is what one FileSet accumulated during a run.
type Statistics struct {
	// Processed counts every terminal outcome.
	Processed int `json:"processed"`

	Indexed     int `json:"indexed"`
	Removed     int `json:"removed"`
	Resurrected int `json:"resurrected"`
	TooLarge    int `json:"too_large"`
	LoadFailed  int `json:"load_failed"`
	Errored     int `json:"errored"`

	// DuplicatesSkipped counts requests the dedup filter rejected.
	DuplicatesSkipped int `json:"duplicates_skipped"`

	BytesLoaded int64 `json:"bytes_loaded"`

	LoadTime  time.Duration `json:"load_time"`
	IndexTime time.Duration `json:"index_time"`
	ApplyTime time.Duration `json:"apply_time"`

	// VisibleTime is the wall-clock duration of the run.
	VisibleTime time.Duration `json:"visible_time"`
}

// ThreadTime is the time spent on this set's files summed over goroutines.
func (s Statistics) ThreadTime() time.Duration {
	return s.LoadTime + s.IndexTime + s.ApplyTime
}

// Speedup is ThreadTime divided by VisibleTime, or 0 before the run ends.
func (s Statistics) Speedup() float64 {
	if s.VisibleTime <= 0 {
		return 0
	}
	return float64(s.ThreadTime()) / float64(s.VisibleTime)
}

// Add merges o into s.
func (s Statistics) Add(o Statistics) Statistics {
	s.Processed += o.Processed
	s.Indexed += o.Indexed
	s.Removed += o.Removed
	s.Resurrected += o.Resurrected
	s.TooLarge += o.TooLarge
	s.LoadFailed += o.LoadFailed
	s.Errored += o.Errored
	s.DuplicatesSkipped += o.DuplicatesSkipped
	s.BytesLoaded += o.BytesLoaded
	s.LoadTime += o.LoadTime
	s.IndexTime += o.IndexTime
	s.ApplyTime += o.ApplyTime
	s.VisibleTime = max(s.VisibleTime, o.VisibleTime)
	return s
}

// FileSet is a named batch of requests submitted together. Its statistics
// are guarded by its own lock so sets never contend with each other.
type FileSet struct {
	name     string
	requests []indexer.Request

	mu    sync.Mutex
	stats Statistics
}

// NewFileSet copies requests into a new set.
func NewFileSet(name string, requests []indexer.Request) *FileSet {
	return &FileSet{
		name:     name,
		requests: append([]indexer.Request(nil), requests...),
	}
}

func (s *FileSet) Name() string { return s.name }

// Len is the number of requests in the set, duplicates included.
func (s *FileSet) Len() int { return len(s.requests) }

// Stats returns a snapshot of the set's statistics.
func (s *FileSet) Stats() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *FileSet) update(fn func(*Statistics)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

// TotalStats merges the statistics of sets.
func TotalStats(sets []*FileSet) Statistics {
	var total Statistics
	for _, s := range sets {
		total = total.Add(s.Stats())
	}
	return total
}

func snapshotStats(sets []*FileSet) map[string]Statistics {
	out := make(map[string]Statistics, len(sets))
	for _, s := range sets {
		out[s.name] = out[s.name].Add(s.Stats())
	}
	return out
}
