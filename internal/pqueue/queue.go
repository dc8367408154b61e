// Package pqueue implements the bounded, thread-safe, multi-producer
// multi-consumer priority queue described in SPEC_FULL.md §4.C, grounded
// on original_source/processing/include/task_queue.h (TaskQueue): a single
// mutex guarding a binary heap, a not_empty and a not_full condition
// signal, and a latched shutdown flag that unblocks every waiter.
package pqueue

import (
	"container/heap"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"telemetryhub/internal/errs"
	"telemetryhub/internal/task"
)

// DefaultCapacity matches the original's documented default.
const DefaultCapacity = 10000

// Stats reports a snapshot of queue occupancy, resolving the "priority
// breakdown reports zero" limitation named in SPEC_FULL.md §9.
type Stats struct {
	Size            int
	Capacity        int
	UtilizationPct  float64
	HighCount       int
	MediumCount     int
	LowCount        int
}

// Queue is a bounded priority queue. Capacity of 0 means unbounded. All
// mutating operations take the single mutex; no operation holds it across
// a blocking call other than a condition wait (SPEC_FULL.md §5).
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	h        heapSlice
	counts   priorityCounts
	capacity int
	shutdown bool
	nextSeq  uint64

	log *logrus.Entry
}

// New constructs a queue with the given capacity (0 = unbounded).
func New(capacity int) *Queue {
	q := &Queue{capacity: capacity, log: logrus.WithField("component", "pqueue")}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// waitWithDeadline blocks on c until woken or deadline passes, arming a
// timer that broadcasts c so the waiter's Wait() returns promptly even
// with no producer/consumer activity. The caller always re-checks its
// predicate after this returns, per the spurious-wake contract in
// SPEC_FULL.md §4.C.
func (q *Queue) waitWithDeadline(c *sync.Cond, deadline time.Time) bool {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false
	}
	timer := time.AfterFunc(remaining, func() {
		q.mu.Lock()
		c.Broadcast()
		q.mu.Unlock()
	})
	defer timer.Stop()
	c.Wait()
	return true
}

// Enqueue inserts task with the current time as its enqueue_time tiebreak.
// It returns false if the queue stayed full for the whole timeout, or if
// the queue has shut down. timeout=0 means "do not wait".
func (q *Queue) Enqueue(t task.Task, timeout time.Duration) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	hasDeadline := timeout > 0
	deadline := time.Now().Add(timeout)

	for {
		if q.shutdown {
			q.log.WithError(errs.ErrQueueShutdown).Debug("enqueue rejected")
			return false
		}
		if q.capacity == 0 || len(q.h) < q.capacity {
			break
		}
		if !hasDeadline {
			q.log.WithError(errs.ErrQueueFull).Debug("enqueue rejected, not waiting")
			return false
		}
		if !time.Now().Before(deadline) {
			q.log.WithError(errs.ErrQueueFull).Debug("enqueue timed out")
			return false
		}
		if !q.waitWithDeadline(q.notFull, deadline) {
			q.log.WithError(errs.ErrQueueFull).Debug("enqueue timed out waiting for a slot")
			return false
		}
	}

	e := &entry{t: t, enqueuedAt: time.Now(), seq: q.nextSeq}
	q.nextSeq++
	heap.Push(&q.h, e)
	q.counts.inc(t.Priority())
	q.notEmpty.Signal()
	return true
}

// Dequeue removes and returns the strictly-highest-ordered task, waiting
// up to timeout for one to arrive. It returns (_, false) if the timeout
// expires empty, or the queue has shut down and is empty.
func (q *Queue) Dequeue(timeout time.Duration) (task.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	hasDeadline := timeout > 0
	deadline := time.Now().Add(timeout)

	for {
		if len(q.h) > 0 {
			break
		}
		if q.shutdown {
			q.log.WithError(errs.ErrQueueShutdown).Debug("dequeue rejected")
			return task.Task{}, false
		}
		if !hasDeadline {
			q.log.WithError(errs.ErrQueueEmpty).Debug("dequeue rejected, not waiting")
			return task.Task{}, false
		}
		if !time.Now().Before(deadline) {
			q.log.WithError(errs.ErrQueueEmpty).Debug("dequeue timed out")
			return task.Task{}, false
		}
		if !q.waitWithDeadline(q.notEmpty, deadline) {
			q.log.WithError(errs.ErrQueueEmpty).Debug("dequeue timed out waiting for a task")
			return task.Task{}, false
		}
	}

	e := heap.Pop(&q.h).(*entry)
	q.counts.dec(e.t.Priority())
	q.notFull.Signal()
	return e.t, true
}

// Peek returns a read-only snapshot of the next-to-pop task without
// removing it. The caller treats the result as advisory — concurrent
// dequeues may race it.
func (q *Queue) Peek() (task.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return task.Task{}, false
	}
	return q.h[0].t, true
}

func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

func (q *Queue) Empty() bool {
	return q.Size() == 0
}

func (q *Queue) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.capacity == 0 {
		return false
	}
	return len(q.h) >= q.capacity
}

func (q *Queue) Capacity() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity
}

// Clear removes all tasks and wakes any waiting producers.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.h = nil
	q.counts = priorityCounts{}
	q.notFull.Broadcast()
}

// Stats returns current size, capacity, utilization, and an accurate
// per-priority breakdown.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	var util float64
	if q.capacity > 0 {
		util = float64(len(q.h)) / float64(q.capacity) * 100
	}
	return Stats{
		Size:           len(q.h),
		Capacity:       q.capacity,
		UtilizationPct: util,
		HighCount:      q.counts[0],
		MediumCount:    q.counts[1],
		LowCount:       q.counts[2],
	}
}

// Shutdown latches the shutdown flag and wakes every blocked caller, which
// return promptly with their conservative result (enqueue false, dequeue
// absent). Shutdown is idempotent.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shutdown = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// IsShutdown reports whether Shutdown has been called.
func (q *Queue) IsShutdown() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shutdown
}
