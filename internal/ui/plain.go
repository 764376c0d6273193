package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// plainStep is the minimum progress change, in percent, between two
// indexing lines.
const plainStep = 10

// PlainRenderer writes line-oriented progress for CI and pipes.
type PlainRenderer struct {
	mu          sync.Mutex
	out         io.Writer
	stage       Stage
	lastPercent int
	paused      bool
	errors      int
}

func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output, lastPercent: -1}
}

func (r *PlainRenderer) Start(context.Context) error { return nil }

// UpdateProgress prints stage changes, pause transitions and every tenth
// percent of indexing progress.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Stage != r.stage {
		r.stage = event.Stage
		r.lastPercent = -1
	}
	if event.Paused != r.paused {
		r.paused = event.Paused
		state := "resumed"
		if event.Paused {
			state = "paused"
		}
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), state)
	}

	msg := event.Message
	if msg == "" {
		msg = event.CurrentFile
	}

	if event.Total <= 0 {
		if msg != "" {
			_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
		}
		return
	}

	percent := event.Current * 100 / event.Total
	if r.lastPercent >= 0 && percent < r.lastPercent+plainStep && event.Current < event.Total {
		return
	}
	r.lastPercent = percent
	_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, msg)
}

func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors++

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.File != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.File, event.Err)
		return
	}
	_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
}

func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	verb := "Complete"
	if stats.Interrupted {
		verb = "Interrupted"
	}
	_, _ = fmt.Fprintf(r.out, "%s: %d files processed in %s (%d indexed, %d removed, %s read)\n",
		verb, stats.Files, stats.Duration.Round(100*time.Millisecond),
		stats.Indexed, stats.Removed, humanize.IBytes(uint64(max(stats.Bytes, 0))))

	errs := max(stats.Errors, r.errors)
	if skipped := stats.TooLarge + stats.LoadFailed; skipped > 0 || errs > 0 {
		_, _ = fmt.Fprintf(r.out, "  skipped: %d too large, %d unreadable; errors: %d\n",
			stats.TooLarge, stats.LoadFailed, errs)
	}

	if stats.Stages.Scan > 0 || stats.Stages.Index > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "Stage Breakdown:")
		_, _ = fmt.Fprintf(r.out, "  Scan:  %s\n", stats.Stages.Scan.Round(time.Millisecond))
		_, _ = fmt.Fprintf(r.out, "  Index: %s (%.1fx parallel)\n", stats.Stages.Index.Round(time.Millisecond), stats.Speedup)
	}
}

func (r *PlainRenderer) Stop() error { return nil }

var _ Renderer = (*PlainRenderer)(nil)
