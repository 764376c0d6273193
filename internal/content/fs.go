// Package content serves project files to the indexing engine from disk.
package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/contentidx/pkg/indexer"
)

// FS implements indexer.SizePolicy, indexer.ContentSource and
// indexer.StampSource for files under a project root.
type FS struct {
	root        string
	maxFileSize int64
}

var (
	_ indexer.SizePolicy    = (*FS)(nil)
	_ indexer.ContentSource = (*FS)(nil)
	_ indexer.StampSource   = (*FS)(nil)
)

// NewFS serves files under root. Files larger than maxFileSize are rejected
// by IsTooLarge; zero or less accepts every size.
func NewFS(root string, maxFileSize int64) *FS {
	return &FS{root: root, maxFileSize: maxFileSize}
}

func (s *FS) Root() string { return s.root }

// Abs returns the absolute path of f.
func (s *FS) Abs(f indexer.File) string {
	return filepath.Join(s.root, filepath.FromSlash(f.Path))
}

// IsTooLarge reports whether f exceeds the size limit. Files that cannot be
// stat'ed are let through so the load reports why.
func (s *FS) IsTooLarge(f indexer.File) bool {
	if s.maxFileSize <= 0 {
		return false
	}
	info, err := os.Stat(s.Abs(f))
	if err != nil {
		return false
	}
	return info.Size() > s.maxFileSize
}

func (s *FS) Length(ctx context.Context, f indexer.File) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	info, err := os.Stat(s.Abs(f))
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is no longer a regular file: %w", f.Path, indexer.ErrInvalidHandle)
	}
	return info.Size(), nil
}

// Load reads f, checking ctx between chunks.
func (s *FS) Load(ctx context.Context, f indexer.File) ([]byte, error) {
	file, err := os.Open(s.Abs(f))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is no longer a regular file: %w", f.Path, indexer.ErrInvalidHandle)
	}

	buf := make([]byte, 0, info.Size())
	data, err := readAll(ctx, file, buf)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// IndexingStamp is the file's modification time in nanoseconds, or zero if
// it cannot be stat'ed.
func (s *FS) IndexingStamp(f indexer.File) indexer.Stamp {
	info, err := os.Stat(s.Abs(f))
	if err != nil {
		return 0
	}
	return indexer.Stamp(info.ModTime().UnixNano())
}

// Exists reports whether f is currently a regular file.
func (s *FS) Exists(f indexer.File) bool {
	info, err := os.Stat(s.Abs(f))
	return err == nil && info.Mode().IsRegular()
}

const readChunk = 64 << 10

func readAll(ctx context.Context, r io.Reader, buf []byte) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(buf) == cap(buf) {
			buf = append(buf, 0)[:len(buf)]
		}
		n, err := r.Read(buf[len(buf):min(cap(buf), len(buf)+readChunk)])
		buf = buf[:len(buf)+n]
		if errors.Is(err, io.EOF) {
			return buf, nil
		}
		if err != nil {
			return nil, &fs.PathError{Op: "read", Path: nameOf(r), Err: err}
		}
	}
}

func nameOf(r io.Reader) string {
	if f, ok := r.(*os.File); ok {
		return f.Name()
	}
	return ""
}
