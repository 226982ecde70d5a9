package streaming

import (
	"fmt"
	"sync/atomic"

	"voxel-stream/internal/world"
)

// TaskQueue is a bounded queue of tasks shared by the main thread and the
// workers. Enqueueing marks the target coordinate pending in the store; the
// mark is cleared when the task is dropped or finishes.
type TaskQueue struct {
	tasks  chan Task
	store  *world.ChunkStore
	strict bool

	dropped    atomic.Uint64
	duplicates atomic.Uint64
}

// NewTaskQueue creates a queue holding at most capacity tasks.
func NewTaskQueue(store *world.ChunkStore, capacity int, strict bool) *TaskQueue {
	return &TaskQueue{
		tasks:  make(chan Task, capacity),
		store:  store,
		strict: strict,
	}
}

// Enqueue adds t unless its coordinate is already pending for that kind or
// the queue is full. A duplicate is an invariant violation: strict queues
// panic, others ignore it.
func (q *TaskQueue) Enqueue(t Task) bool {
	ok, dup := q.push(t)
	if dup && q.strict {
		panic(fmt.Sprintf("streaming: %s task for chunk %d,%d enqueued twice", t.Kind, t.Coord().X, t.Coord().Z))
	}
	return ok
}

// Offer is Enqueue for tasks that may legitimately race with an identical
// pending task, such as a Mesh requested both by a worker and the dirty scan.
// A duplicate is never a violation.
func (q *TaskQueue) Offer(t Task) bool {
	ok, _ := q.push(t)
	return ok
}

func (q *TaskQueue) push(t Task) (ok, dup bool) {
	coord := t.Coord()
	if !q.store.MarkPending(t.Kind, coord) {
		q.duplicates.Add(1)
		return false, true
	}
	select {
	case q.tasks <- t:
		return true, false
	default:
		// queue full: rollback
		q.store.ClearPending(t.Kind, coord)
		q.dropped.Add(1)
		return false, false
	}
}

// Full reports whether the queue is at capacity.
func (q *TaskQueue) Full() bool { return len(q.tasks) >= cap(q.tasks) }

// Len returns the number of queued tasks.
func (q *TaskQueue) Len() int { return len(q.tasks) }

// Cap returns the capacity.
func (q *TaskQueue) Cap() int { return cap(q.tasks) }

// Dropped returns how many tasks were refused because the queue was full.
func (q *TaskQueue) Dropped() uint64 { return q.dropped.Load() }

// Duplicates returns how many tasks were refused as already pending.
func (q *TaskQueue) Duplicates() uint64 { return q.duplicates.Load() }

// discard empties the queue without running anything and clears the pending
// marks of the discarded tasks. It returns the number discarded.
func (q *TaskQueue) discard() int {
	n := 0
	for {
		select {
		case t := <-q.tasks:
			q.store.ClearPending(t.Kind, t.Coord())
			n++
		default:
			return n
		}
	}
}
