// Package cmd provides the CLI commands for contentidx.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/contentidx/internal/config"
	cerrors "github.com/Aman-CERP/contentidx/internal/errors"
	"github.com/Aman-CERP/contentidx/internal/logging"
	"github.com/Aman-CERP/contentidx/internal/profiling"
	"github.com/Aman-CERP/contentidx/pkg/version"
)

// Persistent flags
var (
	debugMode bool
	noColor   bool
	profile   profiling.Options
)

var (
	profileSession *profiling.Session
	loggingCleanup func()
)

// NewRootCmd creates the root command for the contentidx CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contentidx",
		Short: "Concurrent content indexer for project directories",
		Long: `contentidx keeps a full-text index of a project directory up to date.

Files are loaded and indexed in parallel under a memory ceiling, results
are applied to a local SQLite index, and watch mode keeps the index in
sync as files change.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("contentidx version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.contentidx/logs/")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringVar(&profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}
	if err := installLogging(cfg); err != nil {
		return err
	}

	if profile.Enabled() {
		s, err := profiling.Start(profile)
		if err != nil {
			return err
		}
		profileSession = s
		profiling.LogMemStats("profile_started")
	}
	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	if profileSession != nil {
		profiling.LogMemStats("profile_stopped")
		err = profileSession.Stop()
		profileSession = nil
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// installLogging replaces the default logger, closing the previous one.
func installLogging(cfg logging.Config) error {
	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	if loggingCleanup != nil {
		loggingCleanup()
	}
	loggingCleanup = cleanup
	return nil
}

// loadProject resolves the project root and loads its config. An explicit
// path argument is the root; otherwise the root is searched for upwards
// from the working directory. The logger is reconfigured from the config
// unless --debug is set.
func loadProject(args []string) (string, *config.Config, error) {
	root, err := projectRoot(args)
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, err
	}

	if !debugMode && loggingCleanup != nil {
		lc := logging.DefaultConfig()
		lc.Level = cfg.Logging.Level
		lc.MaxSizeMB = cfg.Logging.MaxSizeMB
		lc.MaxFiles = cfg.Logging.MaxFiles
		if err := installLogging(lc); err != nil {
			return "", nil, err
		}
	}
	slog.Debug("project_loaded", slog.String("root", root))
	return root, cfg, nil
}

func projectRoot(args []string) (string, error) {
	if len(args) == 0 {
		return config.FindProjectRoot(".")
	}
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return "", cerrors.New(cerrors.ErrCodeInvalidPath, "resolve project path", err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", cerrors.ValidationError("project path is not a directory", err).
			WithDetail("path", abs)
	}
	return abs, nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
