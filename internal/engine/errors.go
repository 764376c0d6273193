package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"syscall"

	cerrors "github.com/Aman-CERP/contentidx/internal/errors"
	"github.com/Aman-CERP/contentidx/pkg/indexer"
)

// ErrorKind is the closed set of ways a job can fail.
type ErrorKind uint8

const (
	ErrorKindNone ErrorKind = iota
	// ErrorKindTooLarge means the size policy rejected the file.
	ErrorKindTooLarge
	// ErrorKindLoadFailed means the content could not be read.
	ErrorKindLoadFailed
	// ErrorKindCancelled means the work was cancelled.
	ErrorKindCancelled
	// ErrorKindUnclassified is anything else raised while indexing.
	ErrorKindUnclassified
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindTooLarge:
		return "too_large"
	case ErrorKindLoadFailed:
		return "load_failed"
	case ErrorKindCancelled:
		return "cancelled"
	case ErrorKindUnclassified:
		return "unclassified"
	default:
		return fmt.Sprintf("error_kind(%d)", uint8(k))
	}
}

// Classify maps an error returned while processing a job to its kind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindCancelled
	case cerrors.HasCode(err, cerrors.ErrCodeFileTooLarge):
		return ErrorKindTooLarge
	case cerrors.HasCode(err, cerrors.ErrCodeLoadFailed):
		return ErrorKindLoadFailed
	default:
		return ErrorKindUnclassified
	}
}

func errTooLarge(f indexer.File) error {
	return cerrors.New(cerrors.ErrCodeFileTooLarge, "content too large: "+f.Path, nil).
		WithDetail("path", f.Path)
}

func errLoadFailed(f indexer.File, cause error) error {
	return cerrors.New(cerrors.ErrCodeLoadFailed, "failed to load "+f.Path, cause).
		WithDetail("path", f.Path)
}

// loadFailureLevel picks the log level for a load failure. Files vanishing
// under a running index are routine; unknown causes are not.
func loadFailureLevel(err error) slog.Level {
	var pathErr *fs.PathError
	var errno syscall.Errno

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return slog.LevelDebug
	case errors.Is(err, indexer.ErrInvalidHandle),
		errors.Is(err, indexer.ErrOutOfBounds),
		errors.Is(err, fs.ErrClosed),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.As(err, &pathErr),
		errors.As(err, &errno):
		return slog.LevelInfo
	default:
		return slog.LevelError
	}
}

// InterruptedError is returned by IndexFiles when a run does not complete.
// It carries the statistics every FileSet had accumulated when the run
// stopped.
type InterruptedError struct {
	RunID string
	Cause error
	stats map[string]Statistics
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("indexing run %s interrupted: %v", e.RunID, e.Cause)
}

func (e *InterruptedError) Unwrap() error {
	return e.Cause
}

// Stats returns partial statistics keyed by FileSet name.
func (e *InterruptedError) Stats() map[string]Statistics {
	out := make(map[string]Statistics, len(e.stats))
	for k, v := range e.stats {
		out[k] = v
	}
	return out
}

// Processed sums the processed count over all sets.
func (e *InterruptedError) Processed() int {
	n := 0
	for _, s := range e.stats {
		n += s.Processed
	}
	return n
}

func panicError(what string, r any) error {
	msg := fmt.Sprint(r)
	if strings.Contains(msg, "index out of range") {
		return fmt.Errorf("panic %s: %s: %w", what, msg, indexer.ErrOutOfBounds)
	}
	return fmt.Errorf("panic %s: %s", what, msg)
}
