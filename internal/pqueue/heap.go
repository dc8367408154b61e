package pqueue

import (
	"container/heap"
	"time"

	"telemetryhub/internal/priority"
	"telemetryhub/internal/task"
)

// entry pairs a task with the queue-assigned enqueue time used as the
// FIFO-within-priority tiebreaker (SPEC_FULL.md §3, "priority-queue
// entry").
type entry struct {
	t          task.Task
	enqueuedAt time.Time
	seq        uint64 // monotonic tiebreaker for equal enqueuedAt values
}

// heapSlice implements container/heap.Interface, ordering by (priority
// ascending, enqueuedAt ascending, seq ascending) — HIGH first, FIFO
// within a priority level. This is the Go translation of the original
// TaskComparator in original_source/processing/include/task_queue.h.
type heapSlice []*entry

func (h heapSlice) Len() int { return len(h) }

func (h heapSlice) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.t.Priority() != b.t.Priority() {
		return a.t.Priority() < b.t.Priority()
	}
	if !a.enqueuedAt.Equal(b.enqueuedAt) {
		return a.enqueuedAt.Before(b.enqueuedAt)
	}
	return a.seq < b.seq
}

func (h heapSlice) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *heapSlice) Push(x any) {
	*h = append(*h, x.(*entry))
}

func (h *heapSlice) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

var _ = heap.Interface(&heapSlice{})

// priorityCounts tallies live entries per priority level, resolving the
// "priority breakdown reports zero" limitation the original leaves in
// place (SPEC_FULL.md §9, open question 2).
type priorityCounts [3]int

func (c *priorityCounts) inc(p priority.Level) {
	if i := int(p); i >= 0 && i < len(*c) {
		c[i]++
	}
}

func (c *priorityCounts) dec(p priority.Level) {
	if i := int(p); i >= 0 && i < len(*c) {
		c[i]--
	}
}
