package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/contentidx/pkg/indexer"
)

type worker struct {
	id       int
	runID    string
	engine   *Engine
	queue    *WorkQueue
	writer   *Writer
	progress *ProgressReporter
}

// outcome is what computing one job produced.
type outcome struct {
	result      indexer.ApplyResult
	content     *Content
	removal     bool
	resurrected bool
	loadTime    time.Duration
	indexTime   time.Duration
}

// run processes jobs until the queue is empty. It returns an error only
// when the run must stop, which is on cancellation.
func (w *worker) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("indexing worker %d: %w", w.id, panicError("in worker loop", r))
		}
	}()

	for {
		if w.queue.IsEmpty() {
			return nil
		}
		if err := w.engine.permits.acquire(ctx); err != nil {
			return err
		}

		job, ok := w.queue.Pop()
		if !ok {
			w.engine.permits.release()
			continue
		}

		err := w.process(ctx, job)
		w.engine.permits.release()
		if err != nil {
			return err
		}
	}
}

// process takes one job to a terminal outcome or back onto the queue. The
// file lock is released exactly once on every path, by the writer when the
// result was handed off.
func (w *worker) process(ctx context.Context, job Job) error {
	f := job.Request.File
	deps := w.engine.deps

	if err := deps.Locker.LockFile(ctx, f); err != nil {
		w.requeue(job)
		return err
	}
	unlock := sync.OnceFunc(func() { deps.Locker.UnlockFile(f.ID) })

	w.progress.SetLocationBeingIndexed(f.Path)

	out, err := w.compute(ctx, job)
	if err != nil {
		if out.content != nil {
			out.content.Release()
		}
		unlock()
		if ctx.Err() != nil {
			w.requeue(job)
			return ctx.Err()
		}
		w.fail(job, err)
		return nil
	}

	done := func(applyErr error, took time.Duration) {
		var loaded int64
		if out.content != nil {
			loaded = out.content.Length
			out.content.Release()
		}

		job.Set.update(func(s *Statistics) {
			s.Processed++
			s.BytesLoaded += loaded
			s.LoadTime += out.loadTime
			s.IndexTime += out.indexTime
			s.ApplyTime += took
			if out.resurrected {
				s.Resurrected++
			}
			switch {
			case applyErr != nil:
				s.Errored++
			case out.removal:
				s.Removed++
			default:
				s.Indexed++
			}
		})
		w.progress.OneMoreFileProcessed()
		unlock()

		if applyErr != nil {
			slog.Error("index_apply_failed",
				slog.String("run_id", w.runID),
				slog.String("path", f.Path),
				slog.String("error", applyErr.Error()),
				slog.String("hint", "index may be inconsistent; a full reindex will run on next start"))
			w.reportCorruption(fmt.Sprintf("apply failed for %s: %v", f.Path, applyErr))
		}
	}

	if err := w.writer.Apply(ctx, out.result, f, done); err != nil {
		if out.content != nil {
			out.content.Release()
		}
		unlock()
		w.requeue(job)
		return err
	}
	return nil
}

// compute produces the ApplyResult for a job. The stamp is taken before any
// other work so that changes made while the job runs show up as a newer
// stamp on the next pass. A delete whose file has come back is indexed as an
// update. Panics from collaborators become errors.
func (w *worker) compute(ctx context.Context, job Job) (out outcome, err error) {
	f := job.Request.File
	deps := w.engine.deps

	defer func() {
		if r := recover(); r != nil {
			err = panicError("indexing "+f.Path, r)
		}
	}()

	stamp := deps.Stamps.IndexingStamp(f)

	switch job.Request.Kind {
	case indexer.KindDelete:
		start := time.Now()
		result, err := deps.Remover.ComputeRemoval(ctx, f, stamp)
		out.indexTime = time.Since(start)
		if err != nil {
			return out, err
		}
		if result != nil {
			out.result = result
			out.removal = true
			return out, nil
		}
		out.resurrected = true
		slog.Debug("index_file_resurrected",
			slog.String("run_id", w.runID),
			slog.String("path", f.Path))
	case indexer.KindUpdate:
	default:
		return out, fmt.Errorf("unknown request kind %s for %s", job.Request.Kind, f.Path)
	}

	start := time.Now()
	content, err := w.engine.loader.Load(ctx, f)
	out.loadTime = time.Since(start)
	if err != nil {
		return out, err
	}
	out.content = content

	start = time.Now()
	result, err := deps.Indexer.IndexContent(ctx, f, content.Data, stamp)
	out.indexTime += time.Since(start)
	if err != nil {
		return out, err
	}
	if result == nil {
		return out, errors.New("content indexer returned no result for " + f.Path)
	}
	out.result = result
	return out, nil
}

// fail records a job that ended without a result.
func (w *worker) fail(job Job, err error) {
	f := job.Request.File
	attrs := []any{
		slog.String("run_id", w.runID),
		slog.String("path", f.Path),
		slog.String("kind", job.Request.Kind.String()),
		slog.String("file_set", job.Set.Name()),
		slog.String("error", err.Error()),
	}

	kind := Classify(err)
	switch kind {
	case ErrorKindTooLarge:
		slog.Debug("index_skip_too_large", attrs...)
	case ErrorKindLoadFailed:
		slog.Log(context.Background(), loadFailureLevel(err), "index_load_failed", attrs...)
	case ErrorKindCancelled:
		// A collaborator gave up on its own deadline while the run goes on.
		slog.Warn("index_file_timeout", attrs...)
	case ErrorKindNone, ErrorKindUnclassified:
		slog.Error("index_file_failed", append(attrs,
			slog.String("hint", "index may be inconsistent; restart to trigger a full reindex"))...)
		w.reportCorruption(fmt.Sprintf("indexing %s failed: %v", f.Path, err))
	}

	job.Set.update(func(s *Statistics) {
		s.Processed++
		switch kind {
		case ErrorKindTooLarge:
			s.TooLarge++
		case ErrorKindLoadFailed:
			s.LoadFailed++
		case ErrorKindNone, ErrorKindCancelled, ErrorKindUnclassified:
			s.Errored++
		}
	})
	w.progress.OneMoreFileProcessed()
}

func (w *worker) requeue(job Job) {
	if err := w.queue.Requeue(job); err != nil {
		slog.Error("index_requeue_failed",
			slog.String("run_id", w.runID),
			slog.String("path", job.Request.File.Path),
			slog.String("error", err.Error()))
	}
}

func (w *worker) reportCorruption(reason string) {
	if c := w.engine.deps.Corruption; c != nil {
		c.RequestFullReindex(reason)
	}
}
