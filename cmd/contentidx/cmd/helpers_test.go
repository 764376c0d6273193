package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/contentidx/internal/config"
)

// syncBuffer is a bytes.Buffer safe for a writer and a reader in different
// goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// isolateHome keeps user config and log files inside the test.
func isolateHome(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("NO_COLOR", "1")
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		writeFile(t, root, name, content)
	}
	return root
}

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Engine.Workers = 2
	cfg.Engine.PollInterval = "10ms"
	cfg.Watch.Debounce = "50ms"
	return cfg
}

func sampleProject(t *testing.T) string {
	return writeProject(t, map[string]string{
		"main.go":       "package main\n\nfunc main() { println(\"hello lighthouse\") }\n",
		"docs/guide.md": "# Guide\n\nThe lighthouse keeper writes docs.\n",
		"pkg/util.go":   "package pkg\n\n// Helper does nothing useful.\nfunc Helper() {}\n",
		".gitignore":    "*.log\n",
		"debug.log":     "lighthouse noise\n",
	})
}

// indexProject runs a full plain-text index of root.
func indexProject(t *testing.T, root string, cfg *config.Config) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, runIndex(context.Background(), &out, root, cfg, indexOptions{noTUI: true}))
	return out.String()
}
