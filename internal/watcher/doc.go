// Package watcher reports file changes under a project as debounced
// batches.
//
// fsnotify is used when available, with a polling fallback for file
// systems where it is not (network mounts, some container volumes). Paths
// rejected by the Filter are never reported. Events for the same path
// within the debounce window are coalesced:
//
//	CREATE + MODIFY = CREATE
//	CREATE + DELETE = (nothing)
//	MODIFY + DELETE = DELETE
//	DELETE + CREATE = MODIFY
//	RENAME a -> b   = DELETE a, CREATE b
//
// Usage:
//
//	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions(), scanner)
//	if err != nil {
//	    return err
//	}
//	go func() { _ = w.Start(ctx, root) }()
//	for batch := range w.Events() {
//	    ...
//	}
package watcher
