package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/contentidx/internal/config"
	"github.com/Aman-CERP/contentidx/internal/index"
	"github.com/Aman-CERP/contentidx/internal/lock"
	"github.com/Aman-CERP/contentidx/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status [path]",
		Short: "Show index status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, cfg, err := loadProject(args)
			if err != nil {
				return err
			}
			return runStatus(cmd.Context(), cmd.OutOrStdout(), root, cfg, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output status as JSON")

	return cmd
}

func runStatus(ctx context.Context, out io.Writer, root string, cfg *config.Config, jsonOut bool) error {
	info, err := collectStatus(ctx, root, cfg)
	if err != nil {
		return err
	}

	r := ui.NewStatusRenderer(out, noColor || ui.DetectNoColor())
	if jsonOut {
		return r.RenderJSON(info)
	}
	return r.Render(info)
}

func collectStatus(ctx context.Context, root string, cfg *config.Config) (ui.StatusInfo, error) {
	dataDir := cfg.ResolveDataDir(root)
	info := ui.StatusInfo{
		ProjectDir: root,
		DataDir:    dataDir,
		Locked:     lock.HeldElsewhere(dataDir),
	}

	st, err := openIndex(root, cfg)
	if err != nil {
		return info, err
	}
	defer func() { _ = st.Close() }()

	stats, err := st.Stats(ctx)
	if err != nil {
		return info, err
	}
	info.Files = stats.Files
	info.Bytes = stats.Bytes
	info.BinaryFiles = stats.Binary
	info.LastIndexed = stats.LastIndexed
	info.DatabaseSize = index.DatabaseSize(st.Path())

	if info.ReindexReason, info.ReindexPending, err = st.ReindexRequested(ctx); err != nil {
		return info, err
	}

	run, err := st.LastRun(ctx)
	if err != nil {
		return info, err
	}
	if run != nil {
		info.LastRun = &ui.RunInfo{
			ID:          run.RunID,
			StartedAt:   run.StartedAt,
			Duration:    run.FinishedAt.Sub(run.StartedAt),
			Processed:   run.Processed,
			Indexed:     run.Indexed,
			Removed:     run.Removed,
			Skipped:     run.Skipped,
			Errored:     run.Errored,
			Interrupted: run.Interrupted,
		}
	}
	return info, nil
}
