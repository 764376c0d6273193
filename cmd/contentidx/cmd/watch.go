package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/contentidx/internal/config"
	"github.com/Aman-CERP/contentidx/internal/engine"
	"github.com/Aman-CERP/contentidx/internal/index"
	"github.com/Aman-CERP/contentidx/internal/ui"
	"github.com/Aman-CERP/contentidx/internal/watcher"
)

type watchOptions struct {
	noTUI        bool
	forcePolling bool
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Index a directory and keep the index in sync",
		Long: `Run a full index, then watch the directory and index changes as
they happen. Bursts of changes are debounced into batches; a batch
interrupted by shutdown is picked up again by the next run. Changes
made during the initial index are picked up as the first batch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			root, cfg, err := loadProject(args)
			if err != nil {
				return err
			}
			return runWatch(ctx, cmd.OutOrStdout(), root, cfg, opts, watchHooks{})
		},
	}

	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable TUI mode for the initial index")
	cmd.Flags().BoolVar(&opts.forcePolling, "poll", false, "Poll for changes instead of using file system notifications")

	return cmd
}

// watchHooks observe a watch session. Both are optional.
type watchHooks struct {
	// progress sees every progress event of the initial index.
	progress func(ui.ProgressEvent)
	// ready is called once the initial index is done and batches flow.
	ready func()
}

// runWatch indexes root and then follows changes until ctx ends. The
// watcher starts before the initial index, so edits made while it runs
// arrive as the first batch.
func runWatch(ctx context.Context, out io.Writer, root string, cfg *config.Config, opts watchOptions, hooks watchHooks) error {
	w, err := index.OpenWorkspace(root, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	debounce, err := cfg.Debounce()
	if err != nil {
		return err
	}
	wopts := watcher.DefaultOptions()
	wopts.DebounceWindow = debounce
	wopts.EventBufferSize = cfg.Watch.EventBuffer
	wopts.ForcePolling = opts.forcePolling

	h, err := watcher.NewHybridWatcher(wopts, w.Scanner)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.Start(gctx, root) })
	stopped := func() error {
		cancel()
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	select {
	case <-h.Ready():
	case <-gctx.Done():
		return stopped()
	}

	var renderer ui.Renderer = newRenderer(out, root, opts.noTUI, w, cancel)
	if hooks.progress != nil {
		renderer = progressHook{Renderer: renderer, fn: hooks.progress}
	}
	runner, err := index.NewWorkspaceRunner(w, renderer)
	if err != nil {
		_ = stopped()
		return err
	}
	if _, err := runner.Run(gctx); err != nil {
		// Stopped before the watch began.
		if gctx.Err() != nil {
			return stopped()
		}
		_ = stopped()
		return err
	}

	var outMu sync.Mutex
	coord, err := index.NewCoordinator(index.CoordinatorConfig{
		Engine: w.Engine,
		Paths:  w.Store,
		Files:  w.Scanner,
		OnBatch: func(name string, stats engine.Statistics, err error) {
			outMu.Lock()
			defer outMu.Unlock()
			printBatch(out, name, stats, err)
		},
	})
	if err != nil {
		_ = stopped()
		return err
	}

	outMu.Lock()
	_, _ = fmt.Fprintf(out, "Watching %s (%s). Press Ctrl+C to stop.\n", root, h.Mode())
	outMu.Unlock()
	g.Go(func() error { return coord.Run(gctx, h.Events(), h.Errors()) })
	if hooks.ready != nil {
		hooks.ready()
	}

	err = g.Wait()
	slog.Info("watch_stopped", slog.String("root", root))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// progressHook passes progress events to fn as well as the renderer.
type progressHook struct {
	ui.Renderer
	fn func(ui.ProgressEvent)
}

func (p progressHook) UpdateProgress(event ui.ProgressEvent) {
	p.Renderer.UpdateProgress(event)
	p.fn(event)
}

func printBatch(out io.Writer, name string, stats engine.Statistics, err error) {
	var interrupted *engine.InterruptedError
	switch {
	case errors.As(err, &interrupted):
		_, _ = fmt.Fprintf(out, "%s: interrupted after %d files, will retry\n", name, stats.Processed)
	case err != nil:
		_, _ = fmt.Fprintf(out, "%s: %v\n", name, err)
	default:
		_, _ = fmt.Fprintf(out, "%s: %d indexed, %d removed", name, stats.Indexed, stats.Removed)
		if skipped := stats.TooLarge + stats.LoadFailed + stats.Errored; skipped > 0 {
			_, _ = fmt.Fprintf(out, ", %d skipped", skipped)
		}
		_, _ = fmt.Fprintln(out)
	}
}
