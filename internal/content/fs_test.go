package content

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/contentidx/pkg/indexer"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFS_LoadAndLength(t *testing.T) {
	// Given: a file larger than one read chunk
	root := t.TempDir()
	body := strings.Repeat("x", readChunk*2+17)
	writeFile(t, root, "pkg/big.txt", body)
	s := NewFS(root, 0)
	f := indexer.NewFile("pkg/big.txt")

	// When: reading it
	n, err := s.Length(context.Background(), f)
	require.NoError(t, err)
	data, err := s.Load(context.Background(), f)
	require.NoError(t, err)

	// Then: length and content agree
	assert.Equal(t, int64(len(body)), n)
	assert.Equal(t, body, string(data))
	assert.True(t, s.Exists(f))
}

func TestFS_EmptyFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "empty", "")
	s := NewFS(root, 0)

	data, err := s.Load(context.Background(), indexer.NewFile("empty"))
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestFS_MissingFile(t *testing.T) {
	s := NewFS(t.TempDir(), 0)
	f := indexer.NewFile("nope.go")

	_, err := s.Length(context.Background(), f)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	_, err = s.Load(context.Background(), f)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Zero(t, s.IndexingStamp(f))
	assert.False(t, s.Exists(f))
	assert.False(t, s.IsTooLarge(f))
}

func TestFS_DirectoryIsInvalidHandle(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0o755))
	s := NewFS(root, 0)

	_, err := s.Length(context.Background(), indexer.NewFile("dir"))
	assert.ErrorIs(t, err, indexer.ErrInvalidHandle)
}

func TestFS_IsTooLarge(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small", "12345")
	writeFile(t, root, "large", "1234567890")
	s := NewFS(root, 8)

	assert.False(t, s.IsTooLarge(indexer.NewFile("small")))
	assert.True(t, s.IsTooLarge(indexer.NewFile("large")))
}

func TestFS_LoadHonorsCancellation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a", "content")
	s := NewFS(root, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Load(ctx, indexer.NewFile("a"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFS_StampFollowsModTime(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a", "v1")
	s := NewFS(root, 0)
	f := indexer.NewFile("a")

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(s.Abs(f), past, past))
	before := s.IndexingStamp(f)
	require.NoError(t, os.Chtimes(s.Abs(f), time.Now(), time.Now()))

	assert.Greater(t, s.IndexingStamp(f), before)
}
