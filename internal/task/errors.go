package task

import "errors"

// ErrBadEnvelope is returned when a JSON envelope is malformed or missing a
// required field on deserialize. Callers drop the task without retry.
var ErrBadEnvelope = errors.New("task: bad envelope")

// ErrIllegalTransition is returned by Task.Transition when the requested
// status move is not on the legal graph.
var ErrIllegalTransition = errors.New("task: illegal status transition")
