package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/Aman-CERP/contentidx/internal/engine"
	cerrors "github.com/Aman-CERP/contentidx/internal/errors"
	"github.com/Aman-CERP/contentidx/internal/store"
	"github.com/Aman-CERP/contentidx/internal/ui"
	"github.com/Aman-CERP/contentidx/pkg/indexer"
)

// File set names used by a full run.
const (
	ScanSet  = "scan"
	StaleSet = "stale"
)

// progressInterval is how often the renderer is refreshed during a run.
const progressInterval = 100 * time.Millisecond

// Catalog is the part of the store a Runner reads and maintains directly.
// Indexing itself goes through the engine.
type Catalog interface {
	Paths(ctx context.Context) ([]string, error)
	ReindexRequested(ctx context.Context) (string, bool, error)
	Reset(ctx context.Context) error
	RecordRun(ctx context.Context, r store.RunRecord) error
}

// FileLister lists the files currently in the project.
type FileLister interface {
	Scan(ctx context.Context) ([]indexer.File, error)
}

// RunnerResult is the outcome of a full run.
type RunnerResult struct {
	RunID string

	// Scanned is the number of files found on disk.
	Scanned int
	// Stale is the number of indexed files no longer on disk.
	Stale int
	// Rebuilt is set when a pending full reindex cleared the index first.
	Rebuilt bool

	Stats       engine.Statistics
	Sets        map[string]engine.Statistics
	Duration    time.Duration
	Interrupted bool
}

// RunnerDependencies are the collaborators of a Runner. All are required
// except Pause.
type RunnerDependencies struct {
	Renderer ui.Renderer
	Engine   *engine.Engine
	Catalog  Catalog
	Files    FileLister

	// Pause is reported to the renderer.
	Pause indexer.PauseSignal
}

// Runner performs full index runs: scan, diff against the catalog, index.
type Runner struct {
	renderer ui.Renderer
	engine   *engine.Engine
	catalog  Catalog
	files    FileLister
	pause    indexer.PauseSignal
}

func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if deps.Files == nil {
		return nil, fmt.Errorf("file lister is required")
	}
	return &Runner{
		renderer: deps.Renderer,
		engine:   deps.Engine,
		catalog:  deps.Catalog,
		files:    deps.Files,
		pause:    deps.Pause,
	}, nil
}

// NewWorkspaceRunner builds a Runner over an open workspace.
func NewWorkspaceRunner(w *Workspace, renderer ui.Renderer) (*Runner, error) {
	return NewRunner(RunnerDependencies{
		Renderer: renderer,
		Engine:   w.Engine,
		Catalog:  w.Store,
		Files:    w.Scanner,
		Pause:    w.Pause,
	})
}

// Run indexes every file on disk and removes indexed files that are gone.
// The run is recorded in the catalog even when interrupted; an interrupted
// run returns ErrCodeIndexInterrupted alongside its partial result.
func (r *Runner) Run(ctx context.Context) (*RunnerResult, error) {
	start := time.Now()
	result := &RunnerResult{RunID: uuid.NewString()}

	if err := r.renderer.Start(ctx); err != nil {
		return nil, fmt.Errorf("start renderer: %w", err)
	}
	defer func() { _ = r.renderer.Stop() }()

	reason, pending, err := r.catalog.ReindexRequested(ctx)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeIndexFailed, "read reindex marker", err)
	}
	if pending {
		slog.Warn("index_full_rebuild", slog.String("run_id", result.RunID), slog.String("reason", reason))
		r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageScanning, Message: "rebuilding index: " + reason})
		if err := r.catalog.Reset(ctx); err != nil {
			return nil, err
		}
		result.Rebuilt = true
	}

	// Stage 1: scan
	slog.Info("index_scan_started", slog.String("run_id", result.RunID))
	r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageScanning, Message: "scanning files"})
	scanStart := time.Now()

	sets, err := r.plan(ctx, result)
	if err != nil {
		return nil, err
	}
	scanTime := time.Since(scanStart)
	slog.Info("index_scan_complete",
		slog.String("run_id", result.RunID),
		slog.Int("files", result.Scanned),
		slog.Int("stale", result.Stale),
		slog.Duration("duration", scanTime))

	// Stage 2: index
	indexStart := time.Now()
	progress := engine.NewProgressReporter()
	stopPolling := r.pollProgress(progress)
	runErr := r.engine.IndexFiles(ctx, sets, progress)
	stopPolling()
	indexTime := time.Since(indexStart)

	result.Stats = engine.TotalStats(sets)
	result.Sets = make(map[string]engine.Statistics, len(sets))
	for _, s := range sets {
		result.Sets[s.Name()] = s.Stats()
	}
	result.Duration = time.Since(start)

	var interrupted *engine.InterruptedError
	result.Interrupted = errors.As(runErr, &interrupted)
	if runErr != nil && !result.Interrupted {
		return result, cerrors.New(cerrors.ErrCodeIndexFailed, "index files", runErr)
	}

	r.record(ctx, result, start)

	r.renderer.Complete(ui.CompletionStats{
		Files:       result.Stats.Processed,
		Indexed:     result.Stats.Indexed,
		Removed:     result.Stats.Removed,
		TooLarge:    result.Stats.TooLarge,
		LoadFailed:  result.Stats.LoadFailed,
		Errors:      result.Stats.Errored,
		Bytes:       result.Stats.BytesLoaded,
		Duration:    result.Duration,
		Speedup:     result.Stats.Speedup(),
		Interrupted: result.Interrupted,
		Stages:      ui.StageTimings{Scan: scanTime, Index: indexTime},
	})

	if result.Interrupted {
		return result, cerrors.New(cerrors.ErrCodeIndexInterrupted, "index run interrupted", runErr).
			WithDetail("processed", fmt.Sprint(result.Stats.Processed)).
			WithSuggestion("Run 'contentidx index' again to finish; completed files are kept")
	}

	slog.Info("index_complete",
		slog.String("run_id", result.RunID),
		slog.Int("processed", result.Stats.Processed),
		slog.Int("indexed", result.Stats.Indexed),
		slog.Int("removed", result.Stats.Removed),
		slog.String("bytes", humanize.IBytes(uint64(max(result.Stats.BytesLoaded, 0)))),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// plan scans the project and diffs it against the catalog.
func (r *Runner) plan(ctx context.Context, result *RunnerResult) ([]*engine.FileSet, error) {
	files, err := r.files.Scan(ctx)
	if err != nil {
		return nil, err
	}
	known, err := r.catalog.Paths(ctx)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeIndexFailed, "list indexed files", err)
	}

	onDisk := make(map[string]struct{}, len(files))
	updates := make([]indexer.Request, 0, len(files))
	for _, f := range files {
		onDisk[f.Path] = struct{}{}
		updates = append(updates, indexer.Request{File: f, Kind: indexer.KindUpdate})
	}

	var deletes []indexer.Request
	for _, path := range known {
		if _, ok := onDisk[path]; !ok {
			deletes = append(deletes, indexer.Delete(path))
		}
	}

	result.Scanned = len(updates)
	result.Stale = len(deletes)
	return []*engine.FileSet{
		engine.NewFileSet(ScanSet, updates),
		engine.NewFileSet(StaleSet, deletes),
	}, nil
}

// pollProgress forwards progress snapshots to the renderer until the
// returned func is called. The final snapshot is always sent.
func (r *Runner) pollProgress(progress *engine.ProgressReporter) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup

	send := func() {
		snap := progress.Snapshot()
		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageIndexing,
			Current:     snap.Processed,
			Total:       snap.Total,
			CurrentFile: snap.Location,
			Paused:      r.pause != nil && r.pause.Paused(),
		})
	}

	wg.Go(func() {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				send()
				return
			case <-ticker.C:
				send()
			}
		}
	})

	return sync.OnceFunc(func() {
		close(done)
		wg.Wait()
	})
}

// record stores the run summary. Failures are logged, never returned: the
// index itself is already up to date.
func (r *Runner) record(ctx context.Context, result *RunnerResult, start time.Time) {
	s := result.Stats
	err := r.catalog.RecordRun(context.WithoutCancel(ctx), store.RunRecord{
		RunID:       result.RunID,
		StartedAt:   start,
		FinishedAt:  start.Add(result.Duration),
		Processed:   s.Processed,
		Indexed:     s.Indexed,
		Removed:     s.Removed,
		Skipped:     s.TooLarge + s.LoadFailed,
		Errored:     s.Errored,
		Bytes:       s.BytesLoaded,
		Interrupted: result.Interrupted,
	})
	if err != nil {
		slog.Warn("index_run_record_failed",
			slog.String("run_id", result.RunID),
			slog.String("error", err.Error()))
	}
}
