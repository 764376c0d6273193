package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/contentidx/pkg/indexer"
)

// Config tunes an Engine.
type Config struct {
	// Workers is the number of indexing goroutines. Zero or less derives it
	// from the CPU count minus WriterWorkers, with a floor of one.
	Workers int

	// WriterWorkers is the number of goroutines applying results.
	WriterWorkers int

	// WriterBacklog is how many computed results may wait for the writer
	// before workers block.
	WriterBacklog int

	// MemoryCeiling is the soft limit on loaded content, in bytes.
	MemoryCeiling int64

	// PollInterval bounds the latency of cancellation and pause checks.
	PollInterval time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		WriterWorkers: 1,
		WriterBacklog: 64,
		MemoryCeiling: 64 << 20,
		PollInterval:  DefaultPollInterval,
	}
}

// WorkerCount resolves the number of indexing goroutines.
func (c Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return max(1, runtime.NumCPU()-max(c.WriterWorkers, 1))
}

// Dependencies are the collaborators an Engine drives. SizePolicy, Source,
// Indexer, Remover and Stamps are required.
type Dependencies struct {
	SizePolicy indexer.SizePolicy
	Source     indexer.ContentSource
	Indexer    indexer.ContentIndexer
	Remover    indexer.RemovalComputer
	Stamps     indexer.StampSource

	// Locker defaults to a FileLocks private to the engine.
	Locker indexer.FileLocker
	// Pause defaults to never paused.
	Pause indexer.PauseSignal
	// Budget defaults to a MemoryBudget private to the engine.
	Budget *MemoryBudget
	// NewDedup builds the filter for each run; defaults to NewKeyedDedup.
	NewDedup func() DedupFilter
	// Corruption is optional.
	Corruption indexer.CorruptionReporter
}

// Engine runs indexing jobs. One Engine may serve several runs, in sequence
// or concurrently; they share its memory budget, file locks and permits.
type Engine struct {
	cfg     Config
	deps    Dependencies
	budget  *MemoryBudget
	loader  *ContentLoader
	permits *permits
}

// New validates deps and builds an Engine.
func New(cfg Config, deps Dependencies) (*Engine, error) {
	switch {
	case deps.SizePolicy == nil:
		return nil, errors.New("size policy is required")
	case deps.Source == nil:
		return nil, errors.New("content source is required")
	case deps.Indexer == nil:
		return nil, errors.New("content indexer is required")
	case deps.Remover == nil:
		return nil, errors.New("removal computer is required")
	case deps.Stamps == nil:
		return nil, errors.New("stamp source is required")
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.WriterWorkers <= 0 {
		cfg.WriterWorkers = 1
	}
	cfg.Workers = cfg.WorkerCount()

	if deps.Locker == nil {
		deps.Locker = NewFileLocks()
	}
	if deps.Pause == nil {
		deps.Pause = neverPaused{}
	}
	if deps.Budget == nil {
		deps.Budget = NewMemoryBudget(cfg.MemoryCeiling, cfg.PollInterval)
	}
	if deps.NewDedup == nil {
		deps.NewDedup = func() DedupFilter { return NewKeyedDedup() }
	}

	return &Engine{
		cfg:     cfg,
		deps:    deps,
		budget:  deps.Budget,
		loader:  NewContentLoader(deps.SizePolicy, deps.Source, deps.Budget),
		permits: newPermits(cfg.Workers, deps.Pause, cfg.PollInterval),
	}, nil
}

// Config returns the resolved configuration.
func (e *Engine) Config() Config { return e.cfg }

// Budget returns the memory budget used by the engine.
func (e *Engine) Budget() *MemoryBudget { return e.budget }

// IndexFiles processes every request in sets and returns once each admitted
// job has reached a terminal outcome and its result has been applied.
//
// progress may be nil. When the run stops early, the returned error is an
// *InterruptedError carrying the statistics accumulated so far; unfinished
// jobs are not lost but will not be retried by this call.
func (e *Engine) IndexFiles(ctx context.Context, sets []*FileSet, progress *ProgressReporter) error {
	if progress == nil {
		progress = NewProgressReporter()
	}

	runID := uuid.NewString()
	start := time.Now()

	queue := NewWorkQueue(e.deps.NewDedup())
	total := queue.EnqueueAll(sets)
	progress.SetTotalFiles(total)

	slog.Info("index_files_start",
		slog.String("run_id", runID),
		slog.Int("file_sets", len(sets)),
		slog.Int("jobs", total),
		slog.Int("workers", e.cfg.Workers))

	writer := NewWriter(context.WithoutCancel(ctx), e.cfg.WriterWorkers, e.cfg.WriterBacklog)

	g, gctx := errgroup.WithContext(ctx)
	for i := range e.cfg.Workers {
		w := &worker{
			id:       i,
			runID:    runID,
			engine:   e,
			queue:    queue,
			writer:   writer,
			progress: progress,
		}
		g.Go(func() error { return w.run(gctx) })
	}
	err := g.Wait()
	writer.Close()

	visible := time.Since(start)
	for _, s := range sets {
		s.update(func(st *Statistics) { st.VisibleTime = visible })
	}

	totals := TotalStats(sets)
	if err != nil {
		slog.Warn("index_files_interrupted",
			slog.String("run_id", runID),
			slog.Int("processed", totals.Processed),
			slog.Int("remaining", queue.Len()),
			slog.String("error", err.Error()))
		return &InterruptedError{RunID: runID, Cause: err, stats: snapshotStats(sets)}
	}

	slog.Info("index_files_complete",
		slog.String("run_id", runID),
		slog.Int("processed", totals.Processed),
		slog.Int("indexed", totals.Indexed),
		slog.Int("removed", totals.Removed),
		slog.Int("skipped_too_large", totals.TooLarge),
		slog.Int("load_failed", totals.LoadFailed),
		slog.Int("errored", totals.Errored),
		slog.String("bytes_loaded", humanize.IBytes(uint64(totals.BytesLoaded))),
		slog.Duration("visible_time", visible),
		slog.String("speedup", fmt.Sprintf("%.2f", totals.Speedup())))
	return nil
}
