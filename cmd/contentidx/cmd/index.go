package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/contentidx/internal/config"
	"github.com/Aman-CERP/contentidx/internal/index"
	"github.com/Aman-CERP/contentidx/internal/ui"
)

type indexOptions struct {
	noTUI       bool
	writeConfig bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a directory",
		Long: `Index every file of a project directory.

Files are scanned, loaded and indexed in parallel; files deleted since the
last run are removed from the index. Press p to pause and q to stop. An
interrupted run keeps everything indexed so far.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			root, cfg, err := loadProject(args)
			if err != nil {
				return err
			}
			return runIndex(ctx, cmd.OutOrStdout(), root, cfg, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&opts.writeConfig, "write-config", false, "Write the effective configuration to .contentidx.yaml")

	return cmd
}

func runIndex(ctx context.Context, out io.Writer, root string, cfg *config.Config, opts indexOptions) error {
	if opts.writeConfig {
		path := filepath.Join(root, config.ProjectFiles[0])
		if err := cfg.WriteYAML(path); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Wrote %s\n", path)
	}

	w, err := index.OpenWorkspace(root, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	renderer := newRenderer(out, root, opts.noTUI, w, cancel)
	runner, err := index.NewWorkspaceRunner(w, renderer)
	if err != nil {
		return err
	}
	_, err = runner.Run(ctx)
	return err
}

func newRenderer(out io.Writer, root string, plain bool, w *index.Workspace, cancel func()) ui.Renderer {
	return ui.NewRenderer(ui.NewConfig(out,
		ui.WithForcePlain(plain),
		ui.WithNoColor(noColor || ui.DetectNoColor()),
		ui.WithProjectDir(root),
		ui.WithPauser(w.Pause),
		ui.WithCancel(cancel),
	))
}
