package watcher

import "time"

// Operation is the kind of change reported for a path.
type Operation int

const (
	// OpCreate indicates a new file.
	OpCreate Operation = iota
	// OpModify indicates an existing file changed.
	OpModify
	// OpDelete indicates a file is gone.
	OpDelete
	// OpRename indicates a file moved from OldPath to Path. The debouncer
	// splits it into a delete and a create.
	OpRename
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one change. Paths are slash-separated and relative to the
// watched root.
type FileEvent struct {
	Path      string
	OldPath   string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Filter decides which paths are watched. *scanner.Scanner implements it.
type Filter interface {
	Excluded(rel string, isDir bool) bool
	InvalidateGitignoreCache()
}

// Options configures the watcher.
type Options struct {
	// DebounceWindow is how long a path must be quiet before its events
	// are emitted.
	DebounceWindow time.Duration

	// PollInterval is the scan interval of the polling fallback.
	PollInterval time.Duration

	// EventBufferSize is the capacity of the batch channel.
	EventBufferSize int

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 1000,
	}
}

// WithDefaults fills zero fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}

// noFilter excludes nothing.
type noFilter struct{}

func (noFilter) Excluded(string, bool) bool { return false }
func (noFilter) InvalidateGitignoreCache()  {}
