package engine

import (
	"context"
	"sync"
	"time"

	"github.com/Aman-CERP/contentidx/pkg/indexer"
)

// ApplyDone is called once a result has been applied, successfully or not.
type ApplyDone func(err error, took time.Duration)

type writeTask struct {
	result indexer.ApplyResult
	file   indexer.File
	done   ApplyDone
}

// Writer applies results on its own goroutines so workers never wait on
// storage I/O, only on a full backlog.
type Writer struct {
	ctx   context.Context
	tasks chan writeTask
	wg    sync.WaitGroup
	once  sync.Once
}

// NewWriter starts workers goroutines draining a backlog of the given size.
// Results are applied with ctx, which should outlive cancellation of the
// run: a computed result is always applied.
func NewWriter(ctx context.Context, workers, backlog int) *Writer {
	w := &Writer{
		ctx:   ctx,
		tasks: make(chan writeTask, max(backlog, 0)),
	}
	for range max(workers, 1) {
		w.wg.Add(1)
		go w.loop()
	}
	return w
}

// Apply queues result for application and calls done afterwards. A result
// is always queued when the backlog has room, even if ctx has ended. It
// blocks while the backlog is full; if ctx ends first, the result is not
// queued, done is never called and ctx.Err() is returned.
func (w *Writer) Apply(ctx context.Context, result indexer.ApplyResult, f indexer.File, done ApplyDone) error {
	task := writeTask{result: result, file: f, done: done}
	select {
	case w.tasks <- task:
		return nil
	default:
	}

	select {
	case w.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close waits for every queued result to be applied. Apply must not be
// called after Close.
func (w *Writer) Close() {
	w.once.Do(func() { close(w.tasks) })
	w.wg.Wait()
}

func (w *Writer) loop() {
	defer w.wg.Done()
	for task := range w.tasks {
		start := time.Now()
		err := w.apply(task.result)
		task.done(err, time.Since(start))
	}
}

func (w *Writer) apply(result indexer.ApplyResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError("applying "+result.File().Path, r)
		}
	}()
	return result.Apply(w.ctx)
}
