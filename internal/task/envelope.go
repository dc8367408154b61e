package task

import (
	"encoding/json"
	"time"

	"telemetryhub/internal/priority"
)

// envelope is the wire shape described in SPEC_FULL.md §6: priority and
// status as integers, timestamps as whole seconds since epoch (truncated
// toward zero), missing fields taking documented defaults.
type envelope struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Payload     Payload `json:"payload"`
	Priority    int     `json:"priority"`
	Status      int     `json:"status"`
	RetryCount  int     `json:"retry_count"`
	MaxRetries  int     `json:"max_retries"`
	CreatedAt   int64   `json:"created_at"`
	UpdatedAt   int64   `json:"updated_at"`
	WorkerID    string  `json:"worker_id"`
}

// ToJSON serializes the task to its canonical envelope. Internal
// microsecond timestamps are truncated to whole seconds on the wire.
func (t Task) ToJSON() ([]byte, error) {
	e := envelope{
		ID:         t.id,
		Type:       t.typ,
		Payload:    t.payload,
		Priority:   int(t.prio),
		Status:     int(t.status),
		RetryCount: t.retryCount,
		MaxRetries: t.maxRetries,
		CreatedAt:  t.createdAt.Unix(),
		UpdatedAt:  t.updatedAt.Unix(),
		WorkerID:   t.workerID,
	}
	return json.Marshal(e)
}

// FromJSON deserializes a task envelope. Malformed JSON or a missing or
// empty id returns ErrBadEnvelope; other missing fields take their
// documented defaults (empty string, 0, DefaultMaxRetries for
// max_retries) and unknown fields are ignored. Deserialization of a
// well-formed envelope with an id never fails.
func FromJSON(data []byte) (Task, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Task{}, ErrBadEnvelope
	}
	if e.ID == "" {
		return Task{}, ErrBadEnvelope
	}
	maxRetries := e.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	payload := e.Payload
	if payload == nil {
		payload = EmptyPayload
	}
	created := time.Unix(e.CreatedAt, 0).UTC()
	updated := time.Unix(e.UpdatedAt, 0).UTC()
	if updated.Before(created) {
		updated = created
	}
	return Task{
		id:         e.ID,
		typ:        e.Type,
		payload:    payload,
		prio:       priority.FromInt(e.Priority),
		status:     StatusFromInt(e.Status),
		retryCount: e.RetryCount,
		maxRetries: maxRetries,
		createdAt:  created,
		updatedAt:  updated,
		workerID:   e.WorkerID,
	}, nil
}
