package engine

import (
	"errors"
	"sync"

	"github.com/Aman-CERP/contentidx/pkg/indexer"
)

var errQueueFull = errors.New("work queue full")

// Job is one request paired with the set it came from.
type Job struct {
	Request indexer.Request
	Set     *FileSet
}

// DedupFilter decides whether a request is admitted to the queue.
type DedupFilter interface {
	Admit(req indexer.Request, set *FileSet) bool
}

type dedupKey struct {
	id   indexer.FileID
	kind indexer.Kind
}

// KeyedDedup admits each (file, kind) pair once. The first set to submit a
// pair owns the job.
type KeyedDedup struct {
	mu   sync.Mutex
	seen map[dedupKey]struct{}
}

func NewKeyedDedup() *KeyedDedup {
	return &KeyedDedup{seen: make(map[dedupKey]struct{})}
}

func (d *KeyedDedup) Admit(req indexer.Request, _ *FileSet) bool {
	key := dedupKey{id: req.File.ID, kind: req.Kind}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.seen[key]; dup {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// WorkQueue is a fixed-capacity FIFO of jobs. Pop never blocks: an empty
// queue means the caller has no more work.
type WorkQueue struct {
	mu     sync.Mutex
	jobs   []Job
	head   int
	size   int
	filter DedupFilter
}

// NewWorkQueue creates an empty queue. A nil filter admits everything.
func NewWorkQueue(filter DedupFilter) *WorkQueue {
	return &WorkQueue{filter: filter}
}

// EnqueueAll admits the requests of sets in order and returns the number of
// jobs queued. Rejected requests are counted on their set as duplicates.
func (q *WorkQueue) EnqueueAll(sets []*FileSet) int {
	incoming := 0
	for _, s := range sets {
		incoming += s.Len()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.resize(q.size + incoming)

	admitted := 0
	for _, s := range sets {
		skipped := 0
		for _, req := range s.requests {
			if q.filter != nil && !q.filter.Admit(req, s) {
				skipped++
				continue
			}
			q.push(Job{Request: req, Set: s})
			admitted++
		}
		if skipped > 0 {
			s.update(func(st *Statistics) { st.DuplicatesSkipped += skipped })
		}
	}
	return admitted
}

// Pop removes the oldest job. ok is false when the queue is empty.
func (q *WorkQueue) Pop() (job Job, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return Job{}, false
	}
	job = q.jobs[q.head]
	q.jobs[q.head] = Job{}
	q.head = (q.head + 1) % len(q.jobs)
	q.size--
	return job, true
}

// Requeue puts a popped job back. It bypasses the dedup filter, which has
// already admitted the job once.
func (q *WorkQueue) Requeue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == len(q.jobs) {
		return errQueueFull
	}
	q.push(job)
	return nil
}

func (q *WorkQueue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// resize grows the ring to capacity n, keeping queued jobs in order.
func (q *WorkQueue) resize(n int) {
	if n <= len(q.jobs) {
		return
	}
	jobs := make([]Job, n)
	for i := 0; i < q.size; i++ {
		jobs[i] = q.jobs[(q.head+i)%len(q.jobs)]
	}
	q.jobs = jobs
	q.head = 0
}

func (q *WorkQueue) push(job Job) {
	q.jobs[(q.head+q.size)%len(q.jobs)] = job
	q.size++
}
