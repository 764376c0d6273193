package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/contentidx/internal/config"
	"github.com/Aman-CERP/contentidx/internal/ui"
	"github.com/Aman-CERP/contentidx/pkg/indexer"
)

// recordingRenderer captures what a run shows to the user.
type recordingRenderer struct {
	mu         sync.Mutex
	started    bool
	stopped    bool
	events     []ui.ProgressEvent
	errors     []ui.ErrorEvent
	completed  *ui.CompletionStats
	onProgress func(ui.ProgressEvent)
}

func (r *recordingRenderer) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	return nil
}

func (r *recordingRenderer) UpdateProgress(event ui.ProgressEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	hook := r.onProgress
	r.mu.Unlock()

	if hook != nil {
		hook(event)
	}
}

func (r *recordingRenderer) AddError(event ui.ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, event)
}

func (r *recordingRenderer) Complete(stats ui.CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = &stats
}

func (r *recordingRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	return nil
}

func (r *recordingRenderer) lastEvent(stage ui.Stage) (ui.ProgressEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Stage == stage {
			return r.events[i], true
		}
	}
	return ui.ProgressEvent{}, false
}

// writeProject creates files under a new project root.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, body := range files {
		writeFile(t, root, rel, body)
	}
	return root
}

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Engine.Workers = 2
	cfg.Engine.PollInterval = "10ms"
	return cfg
}

func openWorkspace(t *testing.T, root string) *Workspace {
	t.Helper()
	w, err := OpenWorkspace(root, testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func searchPaths(t *testing.T, w *Workspace, query string) []string {
	t.Helper()
	results, err := w.Store.Search(context.Background(), query, 50)
	require.NoError(t, err)
	paths := make([]string, 0, len(results))
	for _, r := range results {
		paths = append(paths, r.Path)
	}
	return paths
}

type failingLister struct{}

func (failingLister) Scan(context.Context) ([]indexer.File, error) {
	return nil, errors.New("disk on fire")
}
