package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/contentidx/internal/errors"
	"github.com/Aman-CERP/contentidx/pkg/indexer"
)

func createTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func paths(files []indexer.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func projectTree(t *testing.T) string {
	return createTree(t, map[string]string{
		"main.go":                 "package main",
		"README.md":               "# readme",
		"docs/guide.md":           "guide",
		".env":                    "SECRET=1",
		"certs/server.pem":        "pem",
		"node_modules/x/index.js": "js",
		".gitignore":              "build/\n*.log\n!keep.log\n# comment\n",
		"build/out.txt":           "out",
		"logs/app.log":            "log",
		"keep.log":                "kept",
		"local.txt":               "root local",
		"sub/.gitignore":          "local.txt\n",
		"sub/local.txt":           "sub local",
		"sub/code.go":             "package sub",
		".contentidx/index.db":    "db",
		".git/HEAD":               "ref: refs/heads/main",
	})
}

func TestScanner_Scan(t *testing.T) {
	// Given: a project with ignored, sensitive and excluded files
	root := projectTree(t)
	s, err := New(Options{
		Root:             root,
		Exclude:          []string{"**/node_modules/**"},
		RespectGitignore: true,
		SkipDirs:         []string{filepath.Join(root, ".contentidx")},
	})
	require.NoError(t, err)

	// When: scanning
	files, err := s.Scan(context.Background())

	// Then: only indexable files are listed, as relative slash paths
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		".gitignore",
		"README.md",
		"docs/guide.md",
		"keep.log",
		"local.txt",
		"main.go",
		"sub/.gitignore",
		"sub/code.go",
	}, paths(files))
	for _, f := range files {
		assert.Equal(t, indexer.FileIDFor(f.Path), f.ID)
	}
}

func TestScanner_Include(t *testing.T) {
	root := projectTree(t)
	s, err := New(Options{Root: root, Include: []string{"**/*.go"}, RespectGitignore: true})
	require.NoError(t, err)

	files, err := s.Scan(context.Background())

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go", "sub/code.go"}, paths(files))
}

func TestScanner_WithoutGitignore(t *testing.T) {
	root := projectTree(t)
	s, err := New(Options{Root: root})
	require.NoError(t, err)

	files, err := s.Scan(context.Background())

	require.NoError(t, err)
	got := paths(files)
	assert.Contains(t, got, "build/out.txt")
	assert.Contains(t, got, "logs/app.log")
	assert.NotContains(t, got, ".git/HEAD")
	assert.NotContains(t, got, ".env")
}

func TestScanner_Excluded(t *testing.T) {
	root := projectTree(t)
	s, err := New(Options{
		Root:             root,
		Exclude:          []string{"**/node_modules/**"},
		RespectGitignore: true,
		SkipDirs:         []string{filepath.Join(root, ".contentidx")},
	})
	require.NoError(t, err)

	tests := []struct {
		rel   string
		isDir bool
		want  bool
	}{
		{rel: "main.go", want: false},
		{rel: "node_modules/pkg/a.js", want: true},
		{rel: "node_modules", isDir: true, want: true},
		{rel: "build/new.txt", want: true},
		{rel: "build", isDir: true, want: true},
		{rel: "debug.log", want: true},
		{rel: "keep.log", want: false},
		{rel: "sub/local.txt", want: true},
		{rel: "local.txt", want: false},
		{rel: ".contentidx/index.db-wal", want: true},
		{rel: ".git/index", want: true},
		{rel: "config/.env.local", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Excluded(tt.rel, tt.isDir))
		})
	}
}

func TestScanner_Rel(t *testing.T) {
	root := t.TempDir()
	s, err := New(Options{Root: root})
	require.NoError(t, err)

	rel, ok := s.Rel(filepath.Join(root, "a", "b.go"))
	assert.True(t, ok)
	assert.Equal(t, "a/b.go", rel)

	_, ok = s.Rel(filepath.Dir(root))
	assert.False(t, ok)
	_, ok = s.Rel(root)
	assert.False(t, ok)
}

func TestScanner_GitignoreEditsNeedInvalidation(t *testing.T) {
	root := createTree(t, map[string]string{"a.txt": "a", "b.txt": "b"})
	s, err := New(Options{Root: root, RespectGitignore: true})
	require.NoError(t, err)
	assert.False(t, s.Excluded("a.txt", false))

	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("a.txt\n"), 0o644))
	assert.False(t, s.Excluded("a.txt", false))

	s.InvalidateGitignoreCache()
	assert.True(t, s.Excluded("a.txt", false))
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Options{Root: filepath.Join(t.TempDir(), "missing")})
	assert.True(t, cerrors.HasCode(err, cerrors.ErrCodeFileNotFound))

	_, err = New(Options{Root: t.TempDir(), Exclude: []string{"[unclosed"}})
	assert.True(t, cerrors.HasCode(err, cerrors.ErrCodeConfigInvalid))

	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = New(Options{Root: file})
	assert.True(t, cerrors.HasCode(err, cerrors.ErrCodeInvalidPath))
}

func TestScanner_ScanCancelled(t *testing.T) {
	root := projectTree(t)
	s, err := New(Options{Root: root})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompileIgnoreLine(t *testing.T) {
	tests := []struct {
		line string
		base string
		want ignoreRule
		ok   bool
	}{
		{line: "", ok: false},
		{line: "# comment", ok: false},
		{line: "*.log", want: ignoreRule{pattern: "**/*.log"}, ok: true},
		{line: "/build", want: ignoreRule{pattern: "build"}, ok: true},
		{line: "build/", want: ignoreRule{pattern: "**/build", dirOnly: true}, ok: true},
		{line: "docs/*.md", want: ignoreRule{pattern: "docs/*.md"}, ok: true},
		{line: "!keep.log", want: ignoreRule{pattern: "**/keep.log", negate: true}, ok: true},
		{line: `\#literal`, want: ignoreRule{pattern: "**/#literal"}, ok: true},
		{line: "tmp", base: "sub", want: ignoreRule{pattern: "sub/**/tmp"}, ok: true},
		{line: "/out/", base: "sub", want: ignoreRule{pattern: "sub/out", dirOnly: true}, ok: true},
		{line: "trailing.txt   ", want: ignoreRule{pattern: "**/trailing.txt"}, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := compileIgnoreLine(tt.line, tt.base)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
