package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/contentidx/internal/errors"
)

// isolate points the user config at an empty directory.
func isolate(t *testing.T) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	return xdg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, runtime.NumCPU(), cfg.Engine.Workers)
	assert.Equal(t, 1, cfg.Engine.WriterWorkers)
	assert.Equal(t, 64, cfg.Engine.WriterBacklog)
	assert.Equal(t, "500ms", cfg.Watch.Debounce)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, DefaultDataDir, cfg.DataDir)
	assert.Contains(t, cfg.Paths.Exclude, "**/.git/**")
	require.NoError(t, cfg.Validate())

	ceiling, err := cfg.MemoryCeilingBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(64<<20), ceiling)

	poll, err := cfg.PollInterval()
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, poll)
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_ProjectOverridesUser(t *testing.T) {
	// Given: a user config and a project config that disagree
	xdg := isolate(t)
	writeFile(t, filepath.Join(xdg, "contentidx", "config.yaml"), `
engine:
  workers: 2
  memory_ceiling: 32MB
logging:
  level: debug
`)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".contentidx.yaml"), `
engine:
  workers: 6
paths:
  exclude:
    - "**/testdata/**"
`)

	// When: loading
	cfg, err := Load(dir)

	// Then: the project wins where set, the user file fills the rest
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Engine.Workers)
	assert.Equal(t, "32MB", cfg.Engine.MemoryCeiling)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Contains(t, cfg.Paths.Exclude, "**/testdata/**")
	assert.Contains(t, cfg.Paths.Exclude, "**/.git/**")
}

func TestLoad_YmlFallback(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".contentidx.yml"), "store:\n  cache_size: 10\n")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Store.CacheSize)
}

func TestLoad_EnvOverridesFiles(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".contentidx.yaml"), "engine:\n  workers: 6\n")
	t.Setenv("CONTENTIDX_WORKERS", "3")
	t.Setenv("CONTENTIDX_MEMORY_CEILING", "1GiB")
	t.Setenv("CONTENTIDX_MAX_FILE_SIZE", "2MB")
	t.Setenv("CONTENTIDX_LOG_LEVEL", "warn")
	t.Setenv("CONTENTIDX_DATA_DIR", "/var/lib/contentidx")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Engine.Workers)
	ceiling, _ := cfg.MemoryCeilingBytes()
	assert.Equal(t, int64(1<<30), ceiling)
	maxSize, _ := cfg.MaxFileSizeBytes()
	assert.Equal(t, int64(2_000_000), maxSize)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/var/lib/contentidx", cfg.ResolveDataDir(dir))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		project string
		env     map[string]string
		code    string
	}{
		{name: "bad yaml", project: "engine: [", code: cerrors.ErrCodeConfigInvalid},
		{name: "bad size", project: "engine:\n  memory_ceiling: lots\n", code: cerrors.ErrCodeConfigInvalid},
		{name: "bad duration", project: "watch:\n  debounce: soon\n", code: cerrors.ErrCodeConfigInvalid},
		{name: "bad level", project: "logging:\n  level: loud\n", code: cerrors.ErrCodeConfigInvalid},
		{name: "negative workers", project: "engine:\n  workers: -1\n", code: cerrors.ErrCodeConfigInvalid},
		{name: "size beyond int64", project: "engine:\n  max_file_size: 8EiB\n", code: cerrors.ErrCodeConfigInvalid},
		{name: "env size beyond int64", env: map[string]string{"CONTENTIDX_MEMORY_CEILING": "9EiB"}, code: cerrors.ErrCodeConfigInvalid},
		{name: "bad env workers", env: map[string]string{"CONTENTIDX_WORKERS": "many"}, code: cerrors.ErrCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			dir := t.TempDir()
			if tt.project != "" {
				writeFile(t, filepath.Join(dir, ".contentidx.yaml"), tt.project)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(dir)

			require.Error(t, err)
			assert.True(t, cerrors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestMaxFileSizeBytes_RejectsOverflow(t *testing.T) {
	// Given: a size that fits uint64 but not int64
	cfg := NewConfig()
	cfg.Engine.MaxFileSize = "8EiB"

	// When: parsing it
	n, err := cfg.MaxFileSizeBytes()

	// Then: it is refused instead of wrapping to a negative limit
	require.Error(t, err)
	assert.True(t, cerrors.HasCode(err, cerrors.ErrCodeConfigInvalid))
	assert.Zero(t, n)

	cfg.Engine.MaxFileSize = "7EiB"
	n, err = cfg.MaxFileSizeBytes()
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestResolveDataDir_Relative(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, filepath.Join("/repo", ".contentidx"), cfg.ResolveDataDir("/repo"))
}

func TestWriteYAML_RoundTripsAndBacksUp(t *testing.T) {
	// Given: an existing project config
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".contentidx.yaml")
	writeFile(t, path, "engine:\n  workers: 1\n")

	// When: a modified config is written over it
	cfg := NewConfig()
	cfg.Engine.Workers = 9
	require.NoError(t, cfg.WriteYAML(path))

	// Then: it loads back and the old file was kept
	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.Engine.Workers)

	backups, err := ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	old, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Contains(t, string(old), "workers: 1")
}

func TestBackup_KeepsNewest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "version: 1\n")

	for range MaxBackups + 2 {
		_, err := Backup(path)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	backups, err := ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, MaxBackups)
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindProjectRoot(nested)

	require.NoError(t, err)
	assert.Equal(t, root, found)
}
