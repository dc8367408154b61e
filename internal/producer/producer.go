// Package producer implements the producer path of SPEC_FULL.md §4.D:
// build a task, serialize it, and push it onto either a FIFO list queue or
// a priority sorted set, with optional dedup-set idempotency.
package producer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"telemetryhub/internal/broker"
	"telemetryhub/internal/dedup"
	"telemetryhub/internal/priority"
	"telemetryhub/internal/task"
	"telemetryhub/internal/telemetry"
)

// Mode selects which broker structure a queue name is backed by.
type Mode int

const (
	// FIFO pushes onto `queue:<name>` with LPush, popped with BRPop.
	FIFO Mode = iota
	// PrioritySorted pushes onto `priq:<name>` with ZAdd, popped with
	// ZPopMax.
	PrioritySorted
)

// Producer builds and submits tasks against one named queue.
type Producer struct {
	client broker.Client
	name   string
	mode   Mode
	dedup  *dedup.Guard // nil when dedup is not enabled for this queue
	log    *logrus.Entry
}

// New returns a producer bound to queue/topic name and a push mode. Pass a
// non-nil dedup guard to opt into the idempotency contract of SPEC_FULL.md
// §4.F; pass nil to skip it entirely.
func New(client broker.Client, name string, mode Mode, guard *dedup.Guard) *Producer {
	return &Producer{
		client: client,
		name:   name,
		mode:   mode,
		dedup:  guard,
		log:    logrus.WithField("component", "producer").WithField("queue", name),
	}
}

// Submission describes a task to submit; Fingerprint is optional — when
// empty, dedup is skipped even if the producer has a guard configured.
type Submission struct {
	Type        string
	Payload     task.Payload
	Priority    priority.Level
	MaxRetries  int
	Fingerprint string
}

// Submit constructs a task from sub, optionally dedups it, and pushes the
// serialized envelope onto the backing broker structure. It returns the
// constructed task (even on a rejected duplicate, so callers can report
// its id) and errs.ErrDuplicateTask when the fingerprint was already
// in-flight.
func (p *Producer) Submit(ctx context.Context, sub Submission) (task.Task, error) {
	t := task.New(sub.Type, sub.Payload, sub.Priority, sub.MaxRetries)

	if p.dedup != nil && sub.Fingerprint != "" {
		ok, err := p.dedup.TryAcquire(ctx, sub.Fingerprint)
		if !ok {
			telemetry.TasksDuplicate.Inc()
			p.log.WithField("task_id", t.ID()).WithField("fingerprint", sub.Fingerprint).
				Info("duplicate submission, aborting enqueue")
			return t, err
		}
	}

	if err := p.push(ctx, t); err != nil {
		return t, err
	}

	telemetry.TasksSubmitted.Inc()
	p.log.WithField("task_id", t.ID()).WithField("priority", t.Priority().String()).
		Debug("task submitted")
	return t, nil
}

// Requeue re-pushes an already-existing task (preserving its id and
// retry_count) onto the backing broker structure and refreshes its
// task:<id> mirror. Workers use this for the RUNNING→PENDING retry path
// of SPEC_FULL.md §4.E step 7, where the resubmitted envelope must be the
// same task, not a freshly minted one.
func (p *Producer) Requeue(ctx context.Context, t task.Task) error {
	return p.push(ctx, t)
}

func (p *Producer) push(ctx context.Context, t task.Task) error {
	body, err := t.ToJSON()
	if err != nil {
		return fmt.Errorf("producer: serialize task %s: %w", t.ID(), err)
	}

	switch p.mode {
	case FIFO:
		p.client.LPush(ctx, "queue:"+p.name, string(body))
	case PrioritySorted:
		score := p.arrivalScore(ctx, t.Priority())
		p.client.ZAdd(ctx, "priq:"+p.name, score, string(body))
	}

	p.client.Set(ctx, "task:"+t.ID(), string(body), 0)
	return nil
}

// arrivalScore computes priority_weight*1e9 + (1e9 - arrival_seq), the
// tie-break encoding described in SPEC_FULL.md §4.F: later arrivals get a
// strictly lower score within the same priority, so ZPopMax drains FIFO
// within a priority level. arrival_seq wraps the broker's monotonic
// counter:<name>; once it exceeds 1e9 the jitter term saturates at 0
// rather than going negative, which only degrades FIFO ordering among an
// implausibly large in-flight backlog rather than corrupting priority
// ordering itself.
func (p *Producer) arrivalScore(ctx context.Context, lvl priority.Level) float64 {
	seq := p.client.Incr(ctx, "counter:"+p.name)
	const jitterSpace = 1e9
	jitter := jitterSpace - float64(seq)
	if jitter < 0 {
		jitter = 0
	}
	return lvl.Weight()*jitterSpace + jitter
}

// MarkTerminal clears the dedup fingerprint for a task that has reached a
// terminal status (SPEC_FULL.md §4.E step 6), a no-op when dedup is not
// configured or fingerprint is empty.
func (p *Producer) MarkTerminal(ctx context.Context, fingerprint string) {
	if p.dedup == nil || fingerprint == "" {
		return
	}
	p.dedup.Release(ctx, fingerprint)
}
