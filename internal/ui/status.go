package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

// StatusInfo describes the state of an index on disk.
type StatusInfo struct {
	ProjectDir     string    `json:"project_dir"`
	DataDir        string    `json:"data_dir"`
	Files          int       `json:"files"`
	Bytes          int64     `json:"bytes"`
	BinaryFiles    int       `json:"binary_files"`
	LastIndexed    time.Time `json:"last_indexed,omitzero"`
	DatabaseSize   int64     `json:"database_size"`
	ReindexPending bool      `json:"reindex_pending"`
	ReindexReason  string    `json:"reindex_reason,omitempty"`
	Locked         bool      `json:"locked"`
	LastRun        *RunInfo  `json:"last_run,omitempty"`
}

// RunInfo summarizes the most recent index run.
type RunInfo struct {
	ID          string        `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Processed   int           `json:"processed"`
	Indexed     int           `json:"indexed"`
	Removed     int           `json:"removed"`
	Skipped     int           `json:"skipped"`
	Errored     int           `json:"errored"`
	Interrupted bool          `json:"interrupted"`
}

// StatusRenderer prints StatusInfo.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status: "+info.ProjectDir))

	_, _ = fmt.Fprintf(r.out, "  Files:        %d (%d binary)\n", info.Files, info.BinaryFiles)
	_, _ = fmt.Fprintf(r.out, "  Content:      %s\n", humanize.IBytes(uint64(max(info.Bytes, 0))))
	_, _ = fmt.Fprintf(r.out, "  Database:     %s\n", humanize.IBytes(uint64(max(info.DatabaseSize, 0))))
	if !info.LastIndexed.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last indexed: %s\n", humanize.Time(info.LastIndexed))
	}
	_, _ = fmt.Fprintln(r.out)

	if run := info.LastRun; run != nil {
		state := r.styles.Success.Render("complete")
		if run.Interrupted {
			state = r.styles.Warning.Render("interrupted")
		}
		_, _ = fmt.Fprintf(r.out, "  Last run:     %s, %s in %s\n", humanize.Time(run.StartedAt), state, run.Duration.Round(time.Millisecond))
		_, _ = fmt.Fprintf(r.out, "                %d processed, %d indexed, %d removed, %d skipped, %d errors\n",
			run.Processed, run.Indexed, run.Removed, run.Skipped, run.Errored)
		_, _ = fmt.Fprintln(r.out)
	}

	if info.ReindexPending {
		_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.styles.Warning.Render("Full reindex pending:"), info.ReindexReason)
	}
	if info.Locked {
		_, _ = fmt.Fprintf(r.out, "  %s\n", r.styles.Label.Render("Another contentidx process holds the index lock."))
	}
	return nil
}

func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
