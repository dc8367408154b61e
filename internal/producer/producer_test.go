package producer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetryhub/internal/broker"
	"telemetryhub/internal/dedup"
	"telemetryhub/internal/errs"
	"telemetryhub/internal/priority"
	"telemetryhub/internal/task"
)

func TestSubmitFIFOPushesEnvelope(t *testing.T) {
	c := broker.NewMockClient()
	p := New(c, "ingest", FIFO, nil)
	ctx := context.Background()

	tk, err := p.Submit(ctx, Submission{Type: "sample.ingest", Priority: priority.Medium})
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.LLen(ctx, "queue:ingest"))

	body, ok := c.RPop(ctx, "queue:ingest")
	require.True(t, ok)
	got, err := task.FromJSON([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, tk.ID(), got.ID())
	assert.Equal(t, "sample.ingest", got.Type())
}

func TestSubmitPrioritySortedOrdersByWeightThenArrival(t *testing.T) {
	c := broker.NewMockClient()
	p := New(c, "work", PrioritySorted, nil)
	ctx := context.Background()

	low, _ := p.Submit(ctx, Submission{Type: "t", Priority: priority.Low})
	high1, _ := p.Submit(ctx, Submission{Type: "t", Priority: priority.High})
	medium, _ := p.Submit(ctx, Submission{Type: "t", Priority: priority.Medium})
	high2, _ := p.Submit(ctx, Submission{Type: "t", Priority: priority.High})

	var order []string
	for i := 0; i < 4; i++ {
		body, _, ok := c.ZPopMax(ctx, "priq:work")
		require.True(t, ok)
		tk, err := task.FromJSON([]byte(body))
		require.NoError(t, err)
		order = append(order, tk.ID())
	}
	assert.Equal(t, []string{high1.ID(), high2.ID(), medium.ID(), low.ID()}, order)
}

func TestSubmitWithDedupRejectsDuplicate(t *testing.T) {
	c := broker.NewMockClient()
	guard := dedup.New(c, "ingest")
	p := New(c, "ingest", FIFO, guard)
	ctx := context.Background()

	_, err := p.Submit(ctx, Submission{Type: "t", Priority: priority.Medium, Fingerprint: "F"})
	require.NoError(t, err)

	_, err = p.Submit(ctx, Submission{Type: "t", Priority: priority.Medium, Fingerprint: "F"})
	assert.ErrorIs(t, err, errs.ErrDuplicateTask)

	assert.Equal(t, int64(1), c.LLen(ctx, "queue:ingest"))
}

func TestSubmitWithoutFingerprintSkipsDedupEvenIfConfigured(t *testing.T) {
	c := broker.NewMockClient()
	guard := dedup.New(c, "ingest")
	p := New(c, "ingest", FIFO, guard)
	ctx := context.Background()

	_, err := p.Submit(ctx, Submission{Type: "t", Priority: priority.Medium})
	require.NoError(t, err)
	_, err = p.Submit(ctx, Submission{Type: "t", Priority: priority.Medium})
	require.NoError(t, err)

	assert.Equal(t, int64(2), c.LLen(ctx, "queue:ingest"))
}

func TestSubmitMirrorsTaskRecord(t *testing.T) {
	c := broker.NewMockClient()
	p := New(c, "ingest", FIFO, nil)
	ctx := context.Background()

	tk, err := p.Submit(ctx, Submission{Type: "t", Priority: priority.Medium})
	require.NoError(t, err)

	body, ok := c.Get(ctx, "task:"+tk.ID())
	require.True(t, ok)
	mirrored, err := task.FromJSON([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, tk.ID(), mirrored.ID())
}

func TestMarkTerminalReleasesFingerprint(t *testing.T) {
	c := broker.NewMockClient()
	guard := dedup.New(c, "ingest")
	p := New(c, "ingest", FIFO, guard)
	ctx := context.Background()

	_, err := p.Submit(ctx, Submission{Type: "t", Priority: priority.Medium, Fingerprint: "F"})
	require.NoError(t, err)
	assert.True(t, guard.IsPending(ctx, "F"))

	p.MarkTerminal(ctx, "F")
	assert.False(t, guard.IsPending(ctx, "F"))
}
