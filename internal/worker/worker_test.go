package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetryhub/internal/broker"
	"telemetryhub/internal/dedup"
	"telemetryhub/internal/priority"
	"telemetryhub/internal/producer"
	"telemetryhub/internal/task"
)

func runForAWhile(t *testing.T, w *Worker, d time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	_ = w.Run(ctx)
}

func TestSuccessfulTaskTransitionsToCompleted(t *testing.T) {
	c := broker.NewMockClient()
	ctx := context.Background()
	prod := producer.New(c, "q", producer.FIFO, nil)
	tk, err := prod.Submit(ctx, producer.Submission{Type: "echo", Priority: priority.Medium})
	require.NoError(t, err)

	w := New(c, "q", producer.FIFO, "worker-1", nil, Config{PollTimeout: 50 * time.Millisecond})
	var seen atomic.Bool
	w.RegisterHandler("echo", func(ctx context.Context, t task.Task) (Outcome, error) {
		seen.Store(true)
		return Success, nil
	})

	runForAWhile(t, w, 300*time.Millisecond)
	assert.True(t, seen.Load())

	body, ok := c.Get(ctx, "task:"+tk.ID())
	require.True(t, ok)
	got, err := task.FromJSON([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, task.Completed, got.Status())
	assert.Equal(t, "", got.WorkerID())
}

func TestUnregisteredTypeFailsWithNoRetry(t *testing.T) {
	c := broker.NewMockClient()
	ctx := context.Background()
	prod := producer.New(c, "q", producer.FIFO, nil)
	tk, err := prod.Submit(ctx, producer.Submission{Type: "mystery", Priority: priority.Medium})
	require.NoError(t, err)

	w := New(c, "q", producer.FIFO, "worker-1", nil, Config{PollTimeout: 50 * time.Millisecond})
	runForAWhile(t, w, 300*time.Millisecond)

	body, ok := c.Get(ctx, "task:"+tk.ID())
	require.True(t, ok)
	got, err := task.FromJSON([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, task.Failed, got.Status())
	assert.Equal(t, 0, got.RetryCount())
}

func TestFatalOutcomeFailsImmediately(t *testing.T) {
	c := broker.NewMockClient()
	ctx := context.Background()
	prod := producer.New(c, "q", producer.FIFO, nil)
	tk, err := prod.Submit(ctx, producer.Submission{Type: "boom", Priority: priority.Medium, MaxRetries: 5})
	require.NoError(t, err)

	w := New(c, "q", producer.FIFO, "worker-1", nil, Config{PollTimeout: 50 * time.Millisecond})
	w.RegisterHandler("boom", func(ctx context.Context, t task.Task) (Outcome, error) {
		return Fatal, errors.New("unrecoverable")
	})
	runForAWhile(t, w, 300*time.Millisecond)

	body, _ := c.Get(ctx, "task:"+tk.ID())
	got, err := task.FromJSON([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, task.Failed, got.Status())
	assert.Equal(t, 0, got.RetryCount())
}

func TestRecoverableOutcomeRetriesThenSucceeds(t *testing.T) {
	c := broker.NewMockClient()
	ctx := context.Background()
	prod := producer.New(c, "q", producer.FIFO, nil)
	tk, err := prod.Submit(ctx, producer.Submission{Type: "flaky", Priority: priority.Medium, MaxRetries: 3})
	require.NoError(t, err)

	w := New(c, "q", producer.FIFO, "worker-1", nil, Config{
		PollTimeout:    50 * time.Millisecond,
		BackoffInitial: 10 * time.Millisecond,
		BackoffMax:     50 * time.Millisecond,
	})

	var attempts atomic.Int32
	w.RegisterHandler("flaky", func(ctx context.Context, t task.Task) (Outcome, error) {
		n := attempts.Add(1)
		if n < 2 {
			return Recoverable, errors.New("transient")
		}
		return Success, nil
	})

	runForAWhile(t, w, 2*time.Second)

	body, ok := c.Get(ctx, "task:"+tk.ID())
	require.True(t, ok)
	got, err := task.FromJSON([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, task.Completed, got.Status())
	assert.GreaterOrEqual(t, attempts.Load(), int32(2))
}

func TestRecoverableExhaustionFails(t *testing.T) {
	c := broker.NewMockClient()
	ctx := context.Background()
	prod := producer.New(c, "q", producer.FIFO, nil)
	tk, err := prod.Submit(ctx, producer.Submission{Type: "alwaysfail", Priority: priority.Medium, MaxRetries: 1})
	require.NoError(t, err)

	w := New(c, "q", producer.FIFO, "worker-1", nil, Config{
		PollTimeout:    50 * time.Millisecond,
		BackoffInitial: 10 * time.Millisecond,
		BackoffMax:     30 * time.Millisecond,
	})
	w.RegisterHandler("alwaysfail", func(ctx context.Context, t task.Task) (Outcome, error) {
		return Recoverable, errors.New("transient")
	})

	runForAWhile(t, w, 2*time.Second)

	body, ok := c.Get(ctx, "task:"+tk.ID())
	require.True(t, ok)
	got, err := task.FromJSON([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, task.Failed, got.Status())
	assert.Equal(t, 1, got.RetryCount())
}

func TestPrioritySortedDispatchesHighestFirst(t *testing.T) {
	c := broker.NewMockClient()
	ctx := context.Background()
	prod := producer.New(c, "work", producer.PrioritySorted, nil)
	prod.Submit(ctx, producer.Submission{Type: "t", Priority: priority.Low})
	prod.Submit(ctx, producer.Submission{Type: "t", Priority: priority.High})

	w := New(c, "work", producer.PrioritySorted, "worker-1", nil, Config{PollTimeout: 30 * time.Millisecond})
	var mu sync.Mutex
	var order []string
	w.RegisterHandler("t", func(ctx context.Context, t task.Task) (Outcome, error) {
		mu.Lock()
		order = append(order, t.Priority().String())
		mu.Unlock()
		return Success, nil
	})

	runForAWhile(t, w, 300*time.Millisecond)
	require.Len(t, order, 2)
	assert.Equal(t, "HIGH", order[0])
	assert.Equal(t, "LOW", order[1])
}

func TestCancelPendingTask(t *testing.T) {
	c := broker.NewMockClient()
	ctx := context.Background()
	prod := producer.New(c, "q", producer.FIFO, nil)
	tk, err := prod.Submit(ctx, producer.Submission{Type: "t", Priority: priority.Medium})
	require.NoError(t, err)

	w := New(c, "q", producer.FIFO, "worker-1", nil, Config{})
	assert.True(t, w.Cancel(ctx, tk.ID()))

	body, _ := c.Get(ctx, "task:"+tk.ID())
	got, err := task.FromJSON([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, task.Cancelled, got.Status())
}

func TestMalformedEnvelopeIsDropped(t *testing.T) {
	c := broker.NewMockClient()
	ctx := context.Background()
	c.LPush(ctx, "queue:q", "not json")

	w := New(c, "q", producer.FIFO, "worker-1", nil, Config{PollTimeout: 30 * time.Millisecond})
	var called atomic.Bool
	w.RegisterHandler("t", func(ctx context.Context, t task.Task) (Outcome, error) {
		called.Store(true)
		return Success, nil
	})
	runForAWhile(t, w, 150*time.Millisecond)
	assert.False(t, called.Load())
	assert.Equal(t, int64(0), c.LLen(ctx, "queue:q"))
}

func TestSuccessReleasesDedupFingerprint(t *testing.T) {
	c := broker.NewMockClient()
	ctx := context.Background()
	guard := dedup.New(c, "q")
	prod := producer.New(c, "q", producer.FIFO, guard)
	fp := dedup.FingerprintTask("t", []byte("{}"))
	_, err := prod.Submit(ctx, producer.Submission{Type: "t", Priority: priority.Medium, Fingerprint: fp})
	require.NoError(t, err)
	require.True(t, guard.IsPending(ctx, fp))

	w := New(c, "q", producer.FIFO, "worker-1", guard, Config{PollTimeout: 30 * time.Millisecond})
	w.RegisterHandler("t", func(ctx context.Context, t task.Task) (Outcome, error) {
		return Success, nil
	})
	runForAWhile(t, w, 200*time.Millisecond)

	assert.False(t, guard.IsPending(ctx, fp))
}

func TestFailPushesDeadLetterEntry(t *testing.T) {
	c := broker.NewMockClient()
	ctx := context.Background()
	prod := producer.New(c, "q", producer.FIFO, nil)
	tk, err := prod.Submit(ctx, producer.Submission{Type: "mystery", Priority: priority.Medium})
	require.NoError(t, err)

	w := New(c, "q", producer.FIFO, "worker-1", nil, Config{PollTimeout: 50 * time.Millisecond})
	runForAWhile(t, w, 300*time.Millisecond)

	entries := c.LRange(ctx, "dlq:q", 0, -1)
	require.Len(t, entries, 1)
	got, err := task.FromJSON([]byte(entries[0]))
	require.NoError(t, err)
	assert.Equal(t, tk.ID(), got.ID())
	assert.Equal(t, task.Failed, got.Status())
}

func TestSucceedDoesNotPushDeadLetterEntry(t *testing.T) {
	c := broker.NewMockClient()
	ctx := context.Background()
	prod := producer.New(c, "q", producer.FIFO, nil)
	_, err := prod.Submit(ctx, producer.Submission{Type: "echo", Priority: priority.Medium})
	require.NoError(t, err)

	w := New(c, "q", producer.FIFO, "worker-1", nil, Config{PollTimeout: 50 * time.Millisecond})
	w.RegisterHandler("echo", func(ctx context.Context, t task.Task) (Outcome, error) {
		return Success, nil
	})
	runForAWhile(t, w, 300*time.Millisecond)

	assert.Equal(t, int64(0), c.LLen(ctx, "dlq:q"))
}

type stubAuditRecorder struct {
	mu      sync.Mutex
	calls   int
	lastErr error
}

func (s *stubAuditRecorder) Record(ctx context.Context, taskID, queueName, event, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.lastErr
}

func (s *stubAuditRecorder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubArchiver struct {
	mu    sync.Mutex
	calls int
}

func (s *stubArchiver) Store(ctx context.Context, queue string, t task.Task) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return "s3://bucket/" + t.ID(), nil
}

func (s *stubArchiver) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestTerminalTransitionRecordsAuditAndArchive(t *testing.T) {
	c := broker.NewMockClient()
	ctx := context.Background()
	prod := producer.New(c, "q", producer.FIFO, nil)
	_, err := prod.Submit(ctx, producer.Submission{Type: "echo", Priority: priority.Medium})
	require.NoError(t, err)

	rec := &stubAuditRecorder{}
	arc := &stubArchiver{}
	w := New(c, "q", producer.FIFO, "worker-1", nil, Config{PollTimeout: 50 * time.Millisecond}).
		WithAudit(rec).WithArchiver(arc)
	w.RegisterHandler("echo", func(ctx context.Context, t task.Task) (Outcome, error) {
		return Success, nil
	})
	runForAWhile(t, w, 300*time.Millisecond)

	assert.Equal(t, 1, rec.callCount())
	assert.Equal(t, 1, arc.callCount())
}

func TestAuditFailureDoesNotBlockTransition(t *testing.T) {
	c := broker.NewMockClient()
	ctx := context.Background()
	prod := producer.New(c, "q", producer.FIFO, nil)
	tk, err := prod.Submit(ctx, producer.Submission{Type: "echo", Priority: priority.Medium})
	require.NoError(t, err)

	rec := &stubAuditRecorder{lastErr: errors.New("connection refused")}
	w := New(c, "q", producer.FIFO, "worker-1", nil, Config{PollTimeout: 50 * time.Millisecond}).WithAudit(rec)
	w.RegisterHandler("echo", func(ctx context.Context, t task.Task) (Outcome, error) {
		return Success, nil
	})
	runForAWhile(t, w, 300*time.Millisecond)

	body, ok := c.Get(ctx, "task:"+tk.ID())
	require.True(t, ok)
	got, err := task.FromJSON([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, task.Completed, got.Status())
}

func TestBackoffWithJitter(t *testing.T) {
	base := 100 * time.Millisecond
	max := 2 * time.Second

	d0 := backoffWithJitter(base, max, 0)
	assert.Equal(t, base, d0)

	for attempt := 1; attempt <= 6; attempt++ {
		d := backoffWithJitter(base, max, attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, max)
	}
}
