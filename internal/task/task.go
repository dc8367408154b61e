// Package task defines the canonical in-process task representation, its
// status state machine, and the JSON envelope used to move tasks through
// the broker. See SPEC_FULL.md §4.A.
package task

import (
	"time"

	"github.com/google/uuid"

	"telemetryhub/internal/priority"
)

// DefaultMaxRetries is applied when a producer does not specify one,
// matching the documented wire default for a missing max_retries field.
const DefaultMaxRetries = 3

// Task is the unit of work moved between producer, broker, and worker.
// After a dequeue the consumer owns the value outright; nothing shares it
// in-process beyond the priority queue entry that wrapped it.
type Task struct {
	id         string
	typ        string
	payload    Payload
	prio       priority.Level
	status     Status
	retryCount int
	maxRetries int
	createdAt  time.Time
	updatedAt  time.Time
	workerID   string
}

// New constructs a task in the Pending state with a fresh UUID v4 id and
// microsecond-precision creation timestamp. id, type, priority, and
// max_retries are immutable for the lifetime of the value; retryCount,
// status, workerID, and updatedAt mutate through Transition and the
// setters below.
func New(typ string, payload Payload, prio priority.Level, maxRetries int) Task {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	if payload == nil {
		payload = EmptyPayload
	}
	return Task{
		id:         uuid.New().String(),
		typ:        typ,
		payload:    payload,
		prio:       prio,
		status:     Pending,
		retryCount: 0,
		maxRetries: maxRetries,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (t Task) ID() string              { return t.id }
func (t Task) Type() string            { return t.typ }
func (t Task) Payload() Payload        { return t.payload }
func (t Task) Priority() priority.Level { return t.prio }
func (t Task) Status() Status          { return t.status }
func (t Task) RetryCount() int         { return t.retryCount }
func (t Task) MaxRetries() int         { return t.maxRetries }
func (t Task) CreatedAt() time.Time    { return t.createdAt }
func (t Task) UpdatedAt() time.Time    { return t.updatedAt }
func (t Task) WorkerID() string        { return t.workerID }

// CanRetry reports whether another RUNNING→PENDING retry cycle is allowed.
func (t Task) CanRetry() bool {
	return t.retryCount < t.maxRetries
}

// touch bumps updatedAt to now, never letting it move backwards relative
// to createdAt or a prior updatedAt.
func (t *Task) touch() {
	now := time.Now().UTC().Truncate(time.Microsecond)
	if now.Before(t.updatedAt) {
		now = t.updatedAt
	}
	t.updatedAt = now
}

// Transition moves the task along the legal status graph. Moving into
// Running requires a non-empty workerID (the worker_id non-empty ⇔
// status=RUNNING invariant); moving out of Running clears it.
func (t *Task) Transition(to Status, workerID string) error {
	if !CanTransition(t.status, to) {
		return ErrIllegalTransition
	}
	if to == Running && workerID == "" {
		return ErrIllegalTransition
	}
	if to == Running {
		t.workerID = workerID
	} else {
		t.workerID = ""
	}
	if to == Pending && t.status == Running {
		t.retryCount++
	}
	t.status = to
	t.touch()
	return nil
}

// Clone returns an independent copy; Task is already copied by value on
// assignment, Clone exists for readability at call sites that move
// ownership across a queue boundary.
func (t Task) Clone() Task {
	dup := t
	payloadCopy := make(Payload, len(t.payload))
	copy(payloadCopy, t.payload)
	dup.payload = payloadCopy
	return dup
}
