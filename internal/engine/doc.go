// Package engine runs indexing jobs over a bounded pool of workers.
//
// A run takes one or more FileSets, deduplicates their requests into a
// WorkQueue and lets N workers drain it. Each worker loads file content
// through a ContentLoader gated by a shared MemoryBudget, asks the content
// indexer (or removal computer) for an ApplyResult and hands that result to
// a Writer, which applies it on its own goroutines. Every job ends in exactly
// one terminal outcome that counts towards the run's progress, so the run
// finishes once the queue is empty and the writer has drained.
//
// Cancellation is cooperative. A worker that observes cancellation puts its
// job back on the queue and returns, and IndexFiles reports the run as an
// *InterruptedError carrying the statistics gathered so far.
package engine
