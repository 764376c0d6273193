package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStatus() StatusInfo {
	return StatusInfo{
		ProjectDir:   "/src/app",
		DataDir:      "/src/app/.contentidx",
		Files:        120,
		Bytes:        3 << 20,
		BinaryFiles:  4,
		LastIndexed:  time.Now().Add(-2 * time.Hour),
		DatabaseSize: 5 << 20,
		LastRun: &RunInfo{
			ID:        "run-1",
			StartedAt: time.Now().Add(-2 * time.Hour),
			Duration:  1500 * time.Millisecond,
			Processed: 120,
			Indexed:   118,
			Skipped:   2,
		},
	}
}

func TestStatusRenderer_Render(t *testing.T) {
	// Given: a populated status
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	// When: rendering it
	require.NoError(t, r.Render(sampleStatus()))

	// Then: the counts, sizes and last run are shown
	out := buf.String()
	assert.Contains(t, out, "Index Status: /src/app")
	assert.Contains(t, out, "Files:        120 (4 binary)")
	assert.Contains(t, out, "Content:      3.0 MiB")
	assert.Contains(t, out, "Database:     5.0 MiB")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "complete in 1.5s")
	assert.Contains(t, out, "120 processed, 118 indexed, 0 removed, 2 skipped, 0 errors")
	assert.NotContains(t, out, "reindex pending")
}

func TestStatusRenderer_Render_PendingAndLocked(t *testing.T) {
	// Given: an index waiting for a rebuild while another process runs
	info := sampleStatus()
	info.LastRun.Interrupted = true
	info.ReindexPending = true
	info.ReindexReason = "apply failed: disk I/O error"
	info.Locked = true

	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	// When: rendering it
	require.NoError(t, r.Render(info))

	// Then: both conditions are reported
	out := buf.String()
	assert.Contains(t, out, "interrupted")
	assert.Contains(t, out, "Full reindex pending: apply failed: disk I/O error")
	assert.Contains(t, out, "holds the index lock")
}

func TestStatusRenderer_Render_EmptyIndex(t *testing.T) {
	// Given: an index that was never built
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	// When: rendering it
	require.NoError(t, r.Render(StatusInfo{ProjectDir: "/src/app"}))

	// Then: there is no last run section
	out := buf.String()
	assert.Contains(t, out, "Files:        0 (0 binary)")
	assert.NotContains(t, out, "Last run")
	assert.NotContains(t, out, "Last indexed")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	// Given: a populated status
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, false)

	// When: rendering JSON
	require.NoError(t, r.RenderJSON(sampleStatus()))

	// Then: it decodes with snake_case keys
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "/src/app", parsed["project_dir"])
	assert.Equal(t, float64(120), parsed["files"])
	assert.Equal(t, false, parsed["reindex_pending"])
	assert.Equal(t, "run-1", parsed["last_run"].(map[string]any)["id"])
}
