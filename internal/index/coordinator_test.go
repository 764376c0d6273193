package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/contentidx/internal/engine"
	"github.com/Aman-CERP/contentidx/internal/watcher"
)

func newTestCoordinator(t *testing.T, w *Workspace) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(CoordinatorConfig{Engine: w.Engine, Paths: w.Store})
	require.NoError(t, err)
	return c
}

func event(op watcher.Operation, path string) watcher.FileEvent {
	return watcher.FileEvent{Path: path, Operation: op, Timestamp: time.Now()}
}

func indexedPaths(t *testing.T, w *Workspace) []string {
	t.Helper()
	paths, err := w.Store.Paths(context.Background())
	require.NoError(t, err)
	return paths
}

func TestNewCoordinator_RequiresDependencies(t *testing.T) {
	w := openWorkspace(t, writeProject(t, nil))

	_, err := NewCoordinator(CoordinatorConfig{Paths: w.Store})
	assert.EqualError(t, err, "engine is required")

	_, err = NewCoordinator(CoordinatorConfig{Engine: w.Engine})
	assert.EqualError(t, err, "path lister is required")
}

func TestCoordinator_HandleEvents_CreateModifyDelete(t *testing.T) {
	// Given: an empty index over a project with two files
	root := writeProject(t, map[string]string{
		"a.go": "package a // alpha",
		"b.go": "package b // bravo",
	})
	w := openWorkspace(t, root)
	c := newTestCoordinator(t, w)
	ctx := context.Background()

	// When: both files are reported as created
	stats, err := c.HandleEvents(ctx, []watcher.FileEvent{event(watcher.OpCreate, "a.go"), event(watcher.OpCreate, "b.go")})

	// Then: both are indexed in one set
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Indexed)
	assert.Equal(t, []string{"a.go", "b.go"}, indexedPaths(t, w))

	// When: a.go changes and b.go is deleted
	writeFile(t, root, "a.go", "package a // alpha gamma")
	require.NoError(t, os.Remove(filepath.Join(root, "b.go")))
	stats, err = c.HandleEvents(ctx, []watcher.FileEvent{event(watcher.OpModify, "a.go"), event(watcher.OpDelete, "b.go")})

	// Then: the index follows
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, []string{"a.go"}, indexedPaths(t, w))
	assert.Equal(t, []string{"a.go"}, searchPaths(t, w, "gamma"))
}

func TestCoordinator_HandleEvents_DirectoryDelete(t *testing.T) {
	// Given: an indexed project with a nested directory
	root := writeProject(t, map[string]string{
		"pkg/a.go":      "package pkg",
		"pkg/sub/b.go":  "package sub",
		"pkgextra/c.go": "package pkgextra",
		"main.go":       "package main",
	})
	w := openWorkspace(t, root)
	runner, _ := newTestRunner(t, w)
	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	// When: the directory is removed and reported as one event
	require.NoError(t, os.RemoveAll(filepath.Join(root, "pkg")))
	stats, err := newTestCoordinator(t, w).HandleEvents(context.Background(), []watcher.FileEvent{event(watcher.OpDelete, "pkg")})

	// Then: every file below it is removed, siblings sharing the prefix are not
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Removed)
	assert.Equal(t, []string{"main.go", "pkgextra/c.go"}, indexedPaths(t, w))
}

func TestCoordinator_HandleEvents_SkipsDirectoryCreate(t *testing.T) {
	w := openWorkspace(t, writeProject(t, map[string]string{"dir/a.go": "package dir"}))
	c := newTestCoordinator(t, w)

	ev := event(watcher.OpCreate, "dir")
	ev.IsDir = true
	stats, err := c.HandleEvents(context.Background(), []watcher.FileEvent{ev})

	require.NoError(t, err)
	assert.Zero(t, stats.Processed)
	assert.Empty(t, indexedPaths(t, w))
}

func TestCoordinator_HandleEvents_RawRename(t *testing.T) {
	// Given: an indexed file that is renamed on disk
	root := writeProject(t, map[string]string{"old.go": "package renamed"})
	w := openWorkspace(t, root)
	c := newTestCoordinator(t, w)
	_, err := c.HandleEvents(context.Background(), []watcher.FileEvent{event(watcher.OpCreate, "old.go")})
	require.NoError(t, err)
	require.NoError(t, os.Rename(filepath.Join(root, "old.go"), filepath.Join(root, "new.go")))

	// When: a rename event arrives undebounced
	ev := event(watcher.OpRename, "new.go")
	ev.OldPath = "old.go"
	_, err = c.HandleEvents(context.Background(), []watcher.FileEvent{ev})

	// Then: the old path is removed and the new one indexed
	require.NoError(t, err)
	assert.Equal(t, []string{"new.go"}, indexedPaths(t, w))
}

func TestCoordinator_HandleEvents_GitignoreChangeReconciles(t *testing.T) {
	// Given: an indexed project whose .gitignore hides generated/
	root := writeProject(t, map[string]string{
		".gitignore":       "generated/\n",
		"main.go":          "package main",
		"app.log":          "request served",
		"generated/gen.go": "package generated // mirrored",
	})
	w := openWorkspace(t, root)
	runner, _ := newTestRunner(t, w)
	_, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{".gitignore", "app.log", "main.go"}, indexedPaths(t, w))

	c, err := NewCoordinator(CoordinatorConfig{Engine: w.Engine, Paths: w.Store, Files: w.Scanner})
	require.NoError(t, err)

	// When: the rules switch to ignoring logs and only .gitignore is reported
	writeFile(t, root, ".gitignore", "*.log\n")
	stats, err := c.HandleEvents(context.Background(), []watcher.FileEvent{event(watcher.OpModify, ".gitignore")})

	// Then: the newly ignored file leaves and the unignored one arrives
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, []string{".gitignore", "generated/gen.go", "main.go"}, indexedPaths(t, w))
	assert.Equal(t, []string{"generated/gen.go"}, searchPaths(t, w, "mirrored"))
	assert.Empty(t, searchPaths(t, w, "served"))
}

func TestCoordinator_HandleEvents_GitignoreWithoutFileListerOnlyIndexesEvent(t *testing.T) {
	// Given: a coordinator without a file lister
	root := writeProject(t, map[string]string{
		".gitignore": "generated/\n",
		"app.log":    "request served",
	})
	w := openWorkspace(t, root)
	runner, _ := newTestRunner(t, w)
	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	// When: .gitignore changes
	writeFile(t, root, ".gitignore", "*.log\n")
	stats, err := newTestCoordinator(t, w).HandleEvents(context.Background(), []watcher.FileEvent{event(watcher.OpModify, ".gitignore")})

	// Then: only the reported file is touched
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, []string{".gitignore", "app.log"}, indexedPaths(t, w))
}

func TestCoordinator_HandleEvents_InterruptedBatchIsRetried(t *testing.T) {
	// Given: a paused engine so the first batch cannot finish
	w := openWorkspace(t, writeProject(t, map[string]string{
		"a.go": "package a",
		"b.go": "package b",
	}))
	var batches []string
	c, err := NewCoordinator(CoordinatorConfig{
		Engine: w.Engine,
		Paths:  w.Store,
		OnBatch: func(name string, _ engine.Statistics, _ error) {
			batches = append(batches, name)
		},
	})
	require.NoError(t, err)
	w.Pause.Pause()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// When: the first batch times out
	_, err = c.HandleEvents(ctx, []watcher.FileEvent{event(watcher.OpCreate, "a.go")})

	// Then: it reports the interruption
	var interrupted *engine.InterruptedError
	require.True(t, errors.As(err, &interrupted))
	assert.Empty(t, indexedPaths(t, w))

	// When: the next batch runs unpaused
	w.Pause.Resume()
	stats, err := c.HandleEvents(context.Background(), []watcher.FileEvent{event(watcher.OpCreate, "b.go")})

	// Then: the carried request runs with it
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Indexed)
	assert.Equal(t, []string{"a.go", "b.go"}, indexedPaths(t, w))
	assert.Equal(t, []string{"watch-1", "watch-2"}, batches)

	// And: nothing is carried further
	stats, err = c.HandleEvents(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Processed)
}

func TestCoordinator_HandleEvents_NewerEventOverridesCarried(t *testing.T) {
	// Given: an interrupted batch that wanted to index a.go
	root := writeProject(t, map[string]string{"a.go": "package a"})
	w := openWorkspace(t, root)
	c := newTestCoordinator(t, w)
	w.Pause.Pause()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.HandleEvents(ctx, []watcher.FileEvent{event(watcher.OpCreate, "a.go")})
	require.Error(t, err)
	w.Pause.Resume()

	// When: a.go is deleted before the next batch
	require.NoError(t, os.Remove(filepath.Join(root, "a.go")))
	stats, err := c.HandleEvents(context.Background(), []watcher.FileEvent{event(watcher.OpDelete, "a.go")})

	// Then: only the delete runs
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Zero(t, stats.Indexed)
	assert.Empty(t, indexedPaths(t, w))
}

func TestCoordinator_Run(t *testing.T) {
	// Given: a coordinator fed by channels
	w := openWorkspace(t, writeProject(t, map[string]string{"a.go": "package a // watched"}))
	c := newTestCoordinator(t, w)

	events := make(chan []watcher.FileEvent, 1)
	errs := make(chan error, 1)
	events <- []watcher.FileEvent{event(watcher.OpCreate, "a.go")}
	errs <- errors.New("watch limit reached")
	close(errs)
	close(events)

	// When: running until the events channel closes
	err := c.Run(context.Background(), events, errs)

	// Then: the batch was indexed
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go"}, searchPaths(t, w, "watched"))
}

func TestCoordinator_RunStopsOnCancel(t *testing.T) {
	w := openWorkspace(t, writeProject(t, nil))
	c := newTestCoordinator(t, w)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, c.Run(ctx, make(chan []watcher.FileEvent), nil))
}

func TestPathsUnder(t *testing.T) {
	sorted := []string{"a.go", "pkg.go", "pkg/a.go", "pkg/sub/b.go", "pkgextra/c.go"}

	tests := []struct {
		dir  string
		want []string
	}{
		{"pkg", []string{"pkg/a.go", "pkg/sub/b.go"}},
		{"pkg/sub", []string{"pkg/sub/b.go"}},
		{"pkgextra", []string{"pkgextra/c.go"}},
		{"a.go", nil},
		{"missing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			assert.Equal(t, tt.want, pathsUnder(sorted, tt.dir))
		})
	}
}
