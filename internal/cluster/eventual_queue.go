package cluster

import "chordkv/internal/hashid"

// eventualQueueWorkers is the number of FIFO lanes backing the eventual
// propagation queue. A key always hashes to the same lane, so per-key order
// is preserved (spec design notes §9) even though keys hashing to different
// lanes may be forwarded out of order relative to each other — which is
// fine, since spec §5 guarantees no cross-key ordering.
const eventualQueueWorkers = 8

// eventualQueue is the "spawn-and-forget task with a bounded work queue"
// spec §9 calls for: propagation work is handed to a fixed set of
// single-goroutine lanes instead of an unbounded goroutine-per-forward,
// and each lane drains its jobs strictly in submission order.
type eventualQueue struct {
	lanes []chan func()
}

func newEventualQueue(n int) *eventualQueue {
	q := &eventualQueue{lanes: make([]chan func(), n)}
	for i := range q.lanes {
		ch := make(chan func(), 256)
		q.lanes[i] = ch
		go func(jobs <-chan func()) {
			for job := range jobs {
				job()
			}
		}(ch)
	}
	return q
}

// enqueue schedules job on the lane owned by key, so all background
// propagations for the same key run strictly in the order they were
// enqueued.
func (q *eventualQueue) enqueue(key string, job func()) {
	lane := q.lanes[hashid.Of(key)%uint64(len(q.lanes))]
	lane <- job
}
