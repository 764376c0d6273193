package lock

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/contentidx/internal/errors"
)

func TestDirLock_AcquireRelease(t *testing.T) {
	// Given: a data directory that does not exist yet
	dir := filepath.Join(t.TempDir(), "data")
	l := New(dir)

	// When: the lock is taken
	require.NoError(t, l.TryAcquire())

	// Then: the lock file exists and the lock is held
	_, err := os.Stat(l.Path())
	require.NoError(t, err)
	assert.True(t, l.Held())

	require.NoError(t, l.Release())
	require.NoError(t, l.Release())
	assert.False(t, l.Held())
}

func TestDirLock_SecondHolderIsRejected(t *testing.T) {
	dir := t.TempDir()
	first := New(dir)
	require.NoError(t, first.TryAcquire())
	defer func() { _ = first.Release() }()

	err := New(dir).TryAcquire()

	require.Error(t, err)
	assert.True(t, cerrors.HasCode(err, cerrors.ErrCodeLockHeld))
	assert.True(t, cerrors.IsRetryable(err))
	assert.True(t, HeldElsewhere(dir))
}

func TestDirLock_AcquireWaitsForRelease(t *testing.T) {
	dir := t.TempDir()
	first := New(dir)
	require.NoError(t, first.TryAcquire())

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = first.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	second := New(dir)
	require.NoError(t, second.Acquire(ctx))
	assert.NoError(t, second.Release())
}

func TestDirLock_AcquireGivesUpWithContext(t *testing.T) {
	dir := t.TempDir()
	first := New(dir)
	require.NoError(t, first.TryAcquire())
	defer func() { _ = first.Release() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := New(dir).Acquire(ctx)
	assert.True(t, cerrors.HasCode(err, cerrors.ErrCodeLockHeld))
}

func TestHeldElsewhere_NoLockFile(t *testing.T) {
	assert.False(t, HeldElsewhere(filepath.Join(t.TempDir(), "missing")))

	dir := t.TempDir()
	l := New(dir)
	require.NoError(t, l.TryAcquire())
	require.NoError(t, l.Release())
	assert.False(t, HeldElsewhere(dir))
}
