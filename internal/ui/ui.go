// Package ui renders indexing progress and index status in the terminal.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is a phase of an index run.
type Stage int

const (
	StageScanning Stage = iota
	StageIndexing
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageScanning:
		return "Scanning"
	case StageIndexing:
		return "Indexing"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon is the short tag used by the plain renderer.
func (s Stage) Icon() string {
	switch s {
	case StageScanning:
		return "SCAN"
	case StageIndexing:
		return "INDEX"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent is one progress update.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentFile string
	Message     string
	Paused      bool
}

// ErrorEvent is a per-file problem worth showing to the user.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// StageTimings records how long each stage took.
type StageTimings struct {
	Scan  time.Duration
	Index time.Duration
}

// CompletionStats summarizes a finished run.
type CompletionStats struct {
	Files       int
	Indexed     int
	Removed     int
	TooLarge    int
	LoadFailed  int
	Errors      int
	Bytes       int64
	Duration    time.Duration
	Speedup     float64
	Interrupted bool
	Stages      StageTimings
}

// Renderer displays progress for one run.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Pauser is toggled by the interactive renderer. It reports the new state.
type Pauser interface {
	Toggle() bool
}

// Config configures a Renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	ProjectDir string

	// Pause is toggled with "p" in the TUI. Optional.
	Pause Pauser
	// Cancel is called when the user quits the TUI. Optional.
	Cancel func()
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

func WithProjectDir(dir string) ConfigOption {
	return func(c *Config) { c.ProjectDir = dir }
}

// WithPauser lets the TUI pause and resume the run.
func WithPauser(p Pauser) ConfigOption {
	return func(c *Config) { c.Pause = p }
}

// WithCancel lets the TUI stop the run.
func WithCancel(cancel func()) ConfigOption {
	return func(c *Config) { c.Cancel = cancel }
}

func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks the TUI for interactive terminals and plain text for
// pipes, CI and --no-tui.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor honors the NO_COLOR convention.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI reports whether a well-known CI variable is set.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
