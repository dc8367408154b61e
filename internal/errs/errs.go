// Package errs collects the sentinel errors shared across the scheduler's
// components, checked with errors.Is at call sites per SPEC_FULL.md §7.
package errs

import "errors"

var (
	// ErrBrokerUnavailable marks a transport or timeout failure from the
	// broker client. Broker methods themselves return conservative zero
	// values rather than errors (SPEC_FULL.md §4.B); RedisClient attaches
	// this sentinel as a log field on every such failure so the logs can
	// be searched for it.
	ErrBrokerUnavailable = errors.New("errs: broker unavailable")

	// ErrBadEnvelope mirrors task.ErrBadEnvelope for callers that only
	// import internal/errs.
	ErrBadEnvelope = errors.New("errs: bad envelope")

	// ErrNoHandler is logged by the worker when a task's type has no
	// registered handler. Per SPEC_FULL.md §4.E this fails the task with
	// no retries.
	ErrNoHandler = errors.New("errs: no handler registered for task type")

	// ErrQueueShutdown is logged when an operation is refused because the
	// in-process priority queue has shut down; the operation itself
	// returns its conservative result (false or absent).
	ErrQueueShutdown = errors.New("errs: queue is shut down")

	// ErrQueueFull is logged when an enqueue against a full queue gives up
	// (immediately or after its timeout); Enqueue itself returns false.
	ErrQueueFull = errors.New("errs: queue is full")

	// ErrQueueEmpty is logged when a dequeue against an empty queue gives
	// up (immediately or after its timeout); Dequeue itself returns absent.
	ErrQueueEmpty = errors.New("errs: queue is empty")

	// ErrDuplicateTask is returned by the dedup layer when a fingerprint
	// is already present in the broker's dedup set.
	ErrDuplicateTask = errors.New("errs: duplicate task fingerprint")
)
