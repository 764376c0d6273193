// Package indexer defines the contract between the contentidx indexing
// engine and the collaborators it drives.
//
// The engine owns scheduling: which file is processed when, how much file
// content may be resident at once, and what happens on failure. Everything
// else is supplied from outside through the small interfaces in this
// package:
//
//	┌──────────────┐  Request   ┌──────────────┐  ApplyResult  ┌──────────┐
//	│ scanner /    │───────────▶│    engine    │──────────────▶│  writer  │
//	│ watcher      │            │ (N workers)  │               │          │
//	└──────────────┘            └──────┬───────┘               └──────────┘
//	                                   │
//	       SizePolicy, ContentSource, ContentIndexer, RemovalComputer,
//	       StampSource, FileLocker, PauseSignal
//
// # Usage
//
//	req := indexer.Request{File: indexer.NewFile("internal/a.go"), Kind: indexer.KindUpdate}
//
// Index values are opaque to the engine. An [ApplyResult] is computed by a
// [ContentIndexer] or [RemovalComputer] and applied exactly once.
package indexer
