package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/contentidx/internal/config"
	"github.com/Aman-CERP/contentidx/internal/engine"
	"github.com/Aman-CERP/contentidx/internal/ui"
)

func TestRunWatch_IndexesChanges(t *testing.T) {
	// Given: a project being watched
	root := sampleProject(t)
	cfg := testConfig()
	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- runWatch(ctx, out, root, cfg, watchOptions{noTUI: true}, watchHooks{
			ready: func() { close(ready) },
		})
	}()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("watch exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not start")
	}
	assert.Contains(t, out.String(), "Complete: 4 files processed")

	// When: a file is added and another removed
	writeFile(t, root, "notes/todo.md", "buy more lighthouse bulbs\n")
	require.NoError(t, os.Remove(filepath.Join(root, "pkg", "util.go")))

	// Then: the index follows the tree
	want := []string{".gitignore", "docs/guide.md", "main.go", "notes/todo.md"}
	assert.Eventually(t, func() bool {
		return slices.Equal(indexedPaths(root, cfg), want)
	}, 10*time.Second, 50*time.Millisecond)
	assert.Contains(t, out.String(), "watch-1:")

	// And: cancelling stops the watch cleanly
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestRunWatch_PicksUpChangesMadeDuringInitialIndex(t *testing.T) {
	// Given: a project whose initial index sees a new file appear after
	// the scan has finished
	root := sampleProject(t)
	cfg := testConfig()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var once sync.Once
	hooks := watchHooks{
		progress: func(event ui.ProgressEvent) {
			if event.Stage != ui.StageIndexing {
				return
			}
			once.Do(func() {
				path := filepath.Join(root, "docs", "added.md")
				if err := os.WriteFile(path, []byte("quartermaster ledger\n"), 0o644); err != nil {
					t.Errorf("write during index: %v", err)
				}
			})
		},
	}

	// When: watching
	done := make(chan error, 1)
	go func() {
		done <- runWatch(ctx, &syncBuffer{}, root, cfg, watchOptions{noTUI: true}, hooks)
	}()

	// Then: the file is indexed without any further change
	assert.Eventually(t, func() bool {
		return slices.Contains(indexedPaths(root, cfg), "docs/added.md")
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestRunWatch_CancelledDuringInitialIndex(t *testing.T) {
	// Given: a context cancelled before the watch starts
	root := sampleProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// When: watching
	err := runWatch(ctx, &syncBuffer{}, root, testConfig(), watchOptions{noTUI: true}, watchHooks{
		ready: func() { t.Error("watcher must not start") },
	})

	// Then: it stops cleanly
	assert.NoError(t, err)
}

// indexedPaths reads the index from a separate connection. It is polled
// off the test goroutine, so errors yield nil instead of failing.
func indexedPaths(root string, cfg *config.Config) []string {
	st, err := openIndex(root, cfg)
	if err != nil {
		return nil
	}
	defer func() { _ = st.Close() }()
	paths, err := st.Paths(context.Background())
	if err != nil {
		return nil
	}
	return paths
}

func TestPrintBatch(t *testing.T) {
	tests := []struct {
		name  string
		stats engine.Statistics
		err   error
		want  string
	}{
		{
			name:  "success",
			stats: engine.Statistics{Indexed: 2, Removed: 1},
			want:  "watch-1: 2 indexed, 1 removed\n",
		},
		{
			name:  "skips",
			stats: engine.Statistics{Indexed: 1, TooLarge: 1, LoadFailed: 1},
			want:  "watch-1: 1 indexed, 0 removed, 2 skipped\n",
		},
		{
			name:  "interrupted",
			stats: engine.Statistics{Processed: 3},
			err:   &engine.InterruptedError{Cause: context.Canceled},
			want:  "watch-1: interrupted after 3 files, will retry\n",
		},
		{
			name: "failed",
			err:  errors.New("disk full"),
			want: "watch-1: disk full\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &syncBuffer{}
			printBatch(out, "watch-1", tt.stats, tt.err)
			assert.Equal(t, tt.want, out.String())
		})
	}
}
