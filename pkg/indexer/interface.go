package indexer

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidHandle is returned by a ContentSource when the file it was
	// asked about changed identity, for example because it was replaced.
	ErrInvalidHandle = errors.New("invalid file handle")

	// ErrOutOfBounds is returned when a read ran past the content the source
	// reported, typically because the file was truncated mid-read.
	ErrOutOfBounds = errors.New("read out of bounds")
)

// ApplyResult is the computed index values for one file. The engine never
// looks inside it.
type ApplyResult interface {
	// Apply writes the values to persistent storage. It is called exactly
	// once, from a writer goroutine.
	Apply(ctx context.Context) error

	// File is the file the result belongs to.
	File() File

	// IndexingTime is the time spent computing the values.
	IndexingTime() time.Duration
}

// SizePolicy rejects files that must never be loaded.
type SizePolicy interface {
	IsTooLarge(f File) bool
}

// ContentSource reads file content.
//
// Implementations should return errors that wrap fs.ErrNotExist when the
// file is gone, and ErrInvalidHandle when the file changed identity.
type ContentSource interface {
	// Length reports the content size in bytes without reading it.
	Length(ctx context.Context, f File) (int64, error)

	// Load reads the full content.
	Load(ctx context.Context, f File) ([]byte, error)
}

// ContentIndexer computes index values for loaded content.
type ContentIndexer interface {
	// IndexContent computes values for content captured at stamp. The
	// returned result must not reference content after Apply returns.
	IndexContent(ctx context.Context, f File, content []byte, stamp Stamp) (ApplyResult, error)
}

// RemovalComputer computes the removal of a file's values.
type RemovalComputer interface {
	// ComputeRemoval returns (nil, nil) when the file has been re-created
	// since the delete was requested. The engine then indexes it instead.
	ComputeRemoval(ctx context.Context, f File, stamp Stamp) (ApplyResult, error)
}

// StampSource produces the current indexing stamp of a file.
type StampSource interface {
	IndexingStamp(f File) Stamp
}

// FileLocker keeps one file from being processed by two workers at once,
// including workers belonging to different runs.
type FileLocker interface {
	// LockFile blocks until the file is free or ctx ends.
	LockFile(ctx context.Context, f File) error
	UnlockFile(id FileID)
}

// PauseSignal is polled before a worker takes on new work.
type PauseSignal interface {
	Paused() bool
}

// CorruptionReporter is told when a failure leaves the index in a state that
// only a full reindex can repair.
type CorruptionReporter interface {
	RequestFullReindex(reason string)
}
