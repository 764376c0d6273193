// Package lock guards a data directory against concurrent writers from
// other processes.
package lock

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	cerrors "github.com/Aman-CERP/contentidx/internal/errors"
)

// FileName is the lock file created inside the data directory.
const FileName = "index.lock"

// retryDelay is how often Acquire polls a held lock.
const retryDelay = 200 * time.Millisecond

// DirLock is an exclusive cross-process lock on a data directory.
type DirLock struct {
	path  string
	flock *flock.Flock

	mu     sync.Mutex
	locked bool
}

// New returns the lock for dir. Nothing is created until it is acquired.
func New(dir string) *DirLock {
	path := filepath.Join(dir, FileName)
	return &DirLock{path: path, flock: flock.New(path)}
}

// TryAcquire takes the lock without waiting. A lock held elsewhere is
// reported as ErrCodeLockHeld.
func (l *DirLock) TryAcquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureDir(); err != nil {
		return err
	}
	ok, err := l.flock.TryLock()
	if err != nil {
		return cerrors.New(cerrors.ErrCodeFilePermission, "acquire index lock", err).WithDetail("path", l.path)
	}
	if !ok {
		return heldError(l.path)
	}
	l.locked = true
	return nil
}

// Acquire waits for the lock until ctx ends.
func (l *DirLock) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureDir(); err != nil {
		return err
	}
	ok, err := l.flock.TryLockContext(ctx, retryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return heldError(l.path).WithDetail("waited", "true")
		}
		return cerrors.New(cerrors.ErrCodeFilePermission, "acquire index lock", err).WithDetail("path", l.path)
	}
	if !ok {
		return heldError(l.path)
	}
	l.locked = true
	return nil
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (l *DirLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return cerrors.New(cerrors.ErrCodeFilePermission, "release index lock", err).WithDetail("path", l.path)
	}
	return nil
}

// Held reports whether this DirLock holds the lock.
func (l *DirLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}

// Path returns the lock file path.
func (l *DirLock) Path() string { return l.path }

func (l *DirLock) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return cerrors.New(cerrors.ErrCodeFilePermission, "create lock directory", err).WithDetail("path", l.path)
	}
	return nil
}

// HeldElsewhere reports whether another process holds the lock for dir.
// A missing data directory means no lock.
func HeldElsewhere(dir string) bool {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		return false
	}
	probe := flock.New(path)
	ok, err := probe.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = probe.Unlock()
		return false
	}
	return true
}

func heldError(path string) *cerrors.Error {
	return cerrors.New(cerrors.ErrCodeLockHeld, "index is locked by another contentidx process", nil).
		WithDetail("path", path).
		WithSuggestion("wait for the other run to finish, or stop the running watch")
}
