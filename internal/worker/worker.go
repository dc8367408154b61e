// Package worker implements the worker path of SPEC_FULL.md §4.E: pop an
// envelope, dispatch it to a registered handler by task type, and drive the
// status state machine through to a terminal state with retry/backoff.
// Grounded on the teacher's internal/worker/processor.go Run loop and
// backoffWithJitter, generalized from a Postgres-backed job record to the
// broker-mirrored task:<id> record of SPEC_FULL.md §3.
package worker

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"telemetryhub/internal/broker"
	"telemetryhub/internal/dedup"
	"telemetryhub/internal/errs"
	"telemetryhub/internal/producer"
	"telemetryhub/internal/task"
	"telemetryhub/internal/telemetry"
)

// Outcome classifies how a handler's execution should advance the task
// status state machine, per SPEC_FULL.md §4.E step 5.
type Outcome int

const (
	// Success transitions RUNNING→COMPLETED.
	Success Outcome = iota
	// Recoverable transitions RUNNING→PENDING and re-queues while
	// retry_count < max_retries, or RUNNING→FAILED once exhausted.
	Recoverable
	// Fatal transitions RUNNING→FAILED immediately, no retries.
	Fatal
)

// Handler executes one task and classifies the result. err is attached to
// the worker's log entry and, for Recoverable/Fatal outcomes, surfaced in
// logs for operators; the status record itself does not carry it, matching
// spec.md's task attribute set.
type Handler func(ctx context.Context, t task.Task) (Outcome, error)

// AuditRecorder persists a durable record of a terminal transition,
// independent of the broker's task:<id> mirror (SPEC_FULL.md §4.H). A nil
// AuditRecorder on a Worker disables auditing entirely.
type AuditRecorder interface {
	Record(ctx context.Context, taskID, queueName, event, detail string) error
}

// Archiver copies a terminal task's envelope to external storage at the
// terminal transition (SPEC_FULL.md §4.I). A nil
// Archiver on a Worker disables archival entirely.
type Archiver interface {
	Store(ctx context.Context, queue string, t task.Task) (string, error)
}

// Config tunes the worker loop's polling and backoff behavior.
type Config struct {
	// PollTimeout bounds each broker pop (brpop's timeout, or the sleep
	// between zpopmax attempts for a priority queue). Zero defaults to
	// one second.
	PollTimeout time.Duration
	// BackoffInitial and BackoffMax bound backoffWithJitter, mirroring
	// the teacher's config.BackoffInitial/BackoffMax fields.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollTimeout <= 0 {
		c.PollTimeout = time.Second
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = 500 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Second
	}
	return c
}

// Worker drains one named queue, dispatching by task type.
type Worker struct {
	client   broker.Client
	name     string
	mode     producer.Mode
	prod     *producer.Producer
	dedup    *dedup.Guard
	workerID string
	cfg      Config

	audit    AuditRecorder
	archiver Archiver

	handlers map[string]Handler
	log      *logrus.Entry
}

// New returns a worker bound to queue/topic name, draining it in mode and
// dispatching with workerID stamped onto every task it runs. guard may be
// nil when the queue does not use dedup.
func New(client broker.Client, name string, mode producer.Mode, workerID string, guard *dedup.Guard, cfg Config) *Worker {
	return &Worker{
		client:   client,
		name:     name,
		mode:     mode,
		prod:     producer.New(client, name, mode, guard),
		dedup:    guard,
		workerID: workerID,
		cfg:      cfg.withDefaults(),
		handlers: make(map[string]Handler),
		log: logrus.WithField("component", "worker").
			WithField("queue", name).WithField("worker_id", workerID),
	}
}

// RegisterHandler binds a handler to a task type. An empty type or nil
// handler is ignored, matching the teacher's RegisterHandler guard.
func (w *Worker) RegisterHandler(taskType string, h Handler) {
	if taskType == "" || h == nil {
		return
	}
	w.handlers[taskType] = h
}

// WithAudit attaches an AuditRecorder, enabling SPEC_FULL.md §4.H's
// terminal-transition log. Returns w for chaining at construction time.
func (w *Worker) WithAudit(a AuditRecorder) *Worker {
	w.audit = a
	return w
}

// WithArchiver attaches an Archiver, enabling SPEC_FULL.md §4.I's
// terminal-envelope copy to object storage. Returns w for chaining.
func (w *Worker) WithArchiver(a Archiver) *Worker {
	w.archiver = a
	return w
}

// Run drains the queue until ctx is cancelled, returning ctx.Err().
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		body, ok := w.pop(ctx)
		if !ok {
			continue
		}

		t, err := task.FromJSON([]byte(body))
		if err != nil {
			telemetry.BadEnvelopes.Inc()
			w.log.WithError(errs.ErrBadEnvelope).Warn("dropping malformed envelope")
			continue
		}
		w.runOne(ctx, t)
	}
}

// pop fetches one envelope body from the backing broker structure,
// blocking up to cfg.PollTimeout. A false ok is a normal idle poll, not an
// error — the caller just loops (SPEC_FULL.md §4.E step 2).
func (w *Worker) pop(ctx context.Context) (string, bool) {
	start := time.Now()
	defer func() { telemetry.DequeueLatency.Observe(time.Since(start).Seconds()) }()

	switch w.mode {
	case producer.FIFO:
		return w.client.BRPop(ctx, "queue:"+w.name, w.cfg.PollTimeout)
	case producer.PrioritySorted:
		body, _, ok := w.client.ZPopMax(ctx, "priq:"+w.name)
		if !ok {
			select {
			case <-ctx.Done():
			case <-time.After(w.cfg.PollTimeout):
			}
			return "", false
		}
		return body, true
	default:
		return "", false
	}
}

// runOne drives one task from PENDING through dispatch to a terminal or
// re-queued state.
func (w *Worker) runOne(ctx context.Context, t task.Task) {
	log := w.log.WithField("task_id", t.ID()).WithField("task_type", t.Type())

	if err := t.Transition(task.Running, w.workerID); err != nil {
		log.WithError(err).Warn("cannot start task, not in a runnable state")
		return
	}
	w.mirror(ctx, t)
	telemetry.InFlightGauge.Inc()
	defer telemetry.InFlightGauge.Dec()

	handler, ok := w.handlers[t.Type()]
	if !ok {
		log.WithError(errs.ErrNoHandler).Warn("no handler registered, failing task")
		w.fail(ctx, t, log)
		return
	}

	outcome, err := handler(ctx, t)
	switch outcome {
	case Success:
		w.succeed(ctx, t, log)
	case Fatal:
		if err != nil {
			log = log.WithError(err)
		}
		log.Info("handler reported fatal failure")
		w.fail(ctx, t, log)
	case Recoverable:
		if err != nil {
			log = log.WithError(err)
		}
		if t.CanRetry() {
			w.retry(ctx, t, log)
		} else {
			log.Info("retries exhausted, failing task")
			w.fail(ctx, t, log)
		}
	default:
		log.Warn("handler returned unknown outcome, treating as fatal")
		w.fail(ctx, t, log)
	}
}

func (w *Worker) succeed(ctx context.Context, t task.Task, log *logrus.Entry) {
	if err := t.Transition(task.Completed, ""); err != nil {
		log.WithError(err).Error("illegal transition to completed")
		return
	}
	w.mirror(ctx, t)
	w.dedupRelease(ctx, t)
	telemetry.TasksCompleted.Inc()
	w.recordTerminal(ctx, t, log, "completed")
	log.Debug("task completed")
}

func (w *Worker) fail(ctx context.Context, t task.Task, log *logrus.Entry) {
	if err := t.Transition(task.Failed, ""); err != nil {
		log.WithError(err).Error("illegal transition to failed")
		return
	}
	w.mirror(ctx, t)
	w.deadLetter(ctx, t, log)
	w.dedupRelease(ctx, t)
	telemetry.TasksFailed.Inc()
	w.recordTerminal(ctx, t, log, "failed")
}

// retry transitions back to PENDING (bumping retry_count) and re-pushes
// after an exponential, jittered delay so a hot failure loop does not
// starve other tasks on the same queue.
func (w *Worker) retry(ctx context.Context, t task.Task, log *logrus.Entry) {
	if err := t.Transition(task.Pending, ""); err != nil {
		log.WithError(err).Error("illegal transition to pending")
		return
	}
	w.mirror(ctx, t)
	telemetry.TasksRetried.Inc()

	delay := backoffWithJitter(w.cfg.BackoffInitial, w.cfg.BackoffMax, t.RetryCount())
	log.WithField("retry_count", t.RetryCount()).WithField("backoff", delay).Debug("scheduling retry")

	go func(t task.Task, delay time.Duration) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if err := w.prod.Requeue(context.Background(), t); err != nil {
			w.log.WithField("task_id", t.ID()).WithError(err).Error("failed to requeue task after backoff")
		}
	}(t, delay)
}

// Cancel transitions a pending or running task to CANCELLED, per
// SPEC_FULL.md §4.E step 9. It reads the current task:<id> mirror, applies
// the transition, and writes it back; it returns false if the task is
// absent or already in a state that cannot transition to CANCELLED.
func (w *Worker) Cancel(ctx context.Context, taskID string) bool {
	body, ok := w.client.Get(ctx, "task:"+taskID)
	if !ok {
		return false
	}
	t, err := task.FromJSON([]byte(body))
	if err != nil {
		return false
	}
	if err := t.Transition(task.Cancelled, ""); err != nil {
		return false
	}
	w.mirror(ctx, t)
	w.dedupRelease(ctx, t)
	telemetry.TasksCancelled.Inc()
	w.recordTerminal(ctx, t, w.log.WithField("task_id", t.ID()), "cancelled")
	return true
}

// mirror writes t's envelope to task:<id> with no TTL; the configured
// queue task TTL is not applied, so the record persists until deleted.
func (w *Worker) mirror(ctx context.Context, t task.Task) {
	body, err := t.ToJSON()
	if err != nil {
		return
	}
	w.client.Set(ctx, "task:"+t.ID(), string(body), 0)
}

// deadLetter pushes a permanently-failed task's envelope onto the named
// queue's dead-letter list, so an operator can peek at what the queue
// gave up on without looking up each task:<id> mirror.
func (w *Worker) deadLetter(ctx context.Context, t task.Task, log *logrus.Entry) {
	body, err := t.ToJSON()
	if err != nil {
		return
	}
	w.client.LPush(ctx, "dlq:"+w.name, string(body))
	log.Debug("pushed to dead-letter queue")
}

// recordTerminal writes an audit row and archives t's envelope after a
// terminal transition has already been written to the broker mirror.
// Both are best-effort per SPEC_FULL.md §4.H/§4.I: a failure here is
// logged and never undoes or blocks the transition that already
// happened.
func (w *Worker) recordTerminal(ctx context.Context, t task.Task, log *logrus.Entry, event string) {
	if w.audit != nil {
		if err := w.audit.Record(ctx, t.ID(), w.name, event, t.Status().String()); err != nil {
			log.WithError(err).Warn("failed to write audit row")
		}
	}
	if w.archiver != nil {
		if _, err := w.archiver.Store(ctx, w.name, t); err != nil {
			log.WithError(err).Warn("failed to archive terminal task")
		}
	}
}

// dedupRelease clears the fingerprint on a terminal transition
// (SPEC_FULL.md §4.E step 6 / §4.F). It recomputes the fingerprint with
// the same type+payload convention dedup.FingerprintTask implements as the
// typical case; a caller that dedups on some other derived key is
// responsible for releasing it itself.
func (w *Worker) dedupRelease(ctx context.Context, t task.Task) {
	if w.dedup == nil {
		return
	}
	w.dedup.Release(ctx, dedup.FingerprintTask(t.Type(), t.Payload().Bytes()))
}

// backoffWithJitter is the Go translation of the teacher's
// backoffWithJitter in internal/worker/processor.go: exponential growth
// capped at max, with half-jitter so concurrent retries of the same task
// type don't thunder back in lockstep.
func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return base
	}
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	wait := time.Duration(exp)
	if wait > max {
		wait = max
	}
	if wait <= 0 {
		return base
	}
	jitter := time.Duration(rand.Int63n(int64(wait/2) + 1))
	return wait/2 + jitter
}
