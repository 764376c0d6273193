package engine

import (
	"context"
	"sync"

	"github.com/Aman-CERP/contentidx/pkg/indexer"
)

// FileLocks is an in-process indexer.FileLocker. Share one instance between
// engines that may touch the same files.
type FileLocks struct {
	mu   sync.Mutex
	held map[indexer.FileID]chan struct{}
}

func NewFileLocks() *FileLocks {
	return &FileLocks{held: make(map[indexer.FileID]chan struct{})}
}

// LockFile blocks until f is unlocked or ctx ends.
func (l *FileLocks) LockFile(ctx context.Context, f indexer.File) error {
	for {
		l.mu.Lock()
		released, busy := l.held[f.ID]
		if !busy {
			l.held[f.ID] = make(chan struct{})
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		select {
		case <-released:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// UnlockFile releases id. Unlocking a file that is not locked does nothing.
func (l *FileLocks) UnlockFile(id indexer.FileID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if released, ok := l.held[id]; ok {
		close(released)
		delete(l.held, id)
	}
}

func (l *FileLocks) IsLocked(id indexer.FileID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[id]
	return ok
}
