package pqueue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetryhub/internal/priority"
	"telemetryhub/internal/task"
)

func newTask(id string, prio priority.Level) task.Task {
	t := task.New("t", nil, prio, 1)
	_ = id // ids are generated internally; tests track order via slice position
	return t
}

func TestPriorityOrdering(t *testing.T) {
	q := New(0)
	labels := []string{"l1", "h1", "m1", "h2", "l2"}
	prios := []priority.Level{priority.Low, priority.High, priority.Medium, priority.High, priority.Low}

	idByTask := map[string]string{}
	for i, lbl := range labels {
		tk := newTask(lbl, prios[i])
		idByTask[tk.ID()] = lbl
		require.True(t, q.Enqueue(tk, 0))
	}

	var order []string
	for i := 0; i < 5; i++ {
		tk, ok := q.Dequeue(0)
		require.True(t, ok)
		order = append(order, idByTask[tk.ID()])
	}
	assert.Equal(t, []string{"h1", "h2", "m1", "l1", "l2"}, order)
}

func TestFIFOWithinPriority(t *testing.T) {
	q := New(0)
	var ids []string
	for i := 0; i < 3; i++ {
		tk := task.New("t", nil, priority.High, 1)
		ids = append(ids, tk.ID())
		require.True(t, q.Enqueue(tk, 0))
		time.Sleep(time.Millisecond)
	}

	for i := 0; i < 3; i++ {
		tk, ok := q.Dequeue(0)
		require.True(t, ok)
		assert.Equal(t, ids[i], tk.ID())
	}
}

func TestBoundedBackpressure(t *testing.T) {
	q := New(3)
	for i := 0; i < 3; i++ {
		require.True(t, q.Enqueue(task.New("t", nil, priority.Medium, 1), 0))
	}
	assert.False(t, q.Enqueue(task.New("t", nil, priority.Medium, 1), 0))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(100 * time.Millisecond)
		_, ok := q.Dequeue(0)
		assert.True(t, ok)
	}()

	start := time.Now()
	ok := q.Enqueue(task.New("t", nil, priority.Medium, 1), 500*time.Millisecond)
	elapsed := time.Since(start)
	wg.Wait()

	assert.True(t, ok)
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestDequeueEmptyZeroTimeout(t *testing.T) {
	q := New(0)
	start := time.Now()
	_, ok := q.Dequeue(0)
	elapsed := time.Since(start)
	assert.False(t, ok)
	assert.Less(t, elapsed, time.Millisecond*50)
}

func TestEnqueueFullZeroTimeout(t *testing.T) {
	q := New(1)
	require.True(t, q.Enqueue(task.New("t", nil, priority.Medium, 1), 0))
	ok := q.Enqueue(task.New("t", nil, priority.Medium, 1), 0)
	assert.False(t, ok)
}

func TestSizeNeverExceedsCapacity(t *testing.T) {
	q := New(5)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(task.New("t", nil, priority.Medium, 1), 20*time.Millisecond)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, q.Size(), q.Capacity())
}

func TestShutdownUnblocksWaiters(t *testing.T) {
	q := New(1)
	require.True(t, q.Enqueue(task.New("t", nil, priority.Medium, 1), 0))

	var wg sync.WaitGroup
	wg.Add(2)
	var enqueueResult, dequeueOK bool

	go func() {
		defer wg.Done()
		enqueueResult = q.Enqueue(task.New("t", nil, priority.Medium, 1), 5*time.Second)
	}()
	go func() {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond)
		q.Shutdown()
	}()

	wg.Wait()
	assert.False(t, enqueueResult)

	_, dequeueOK = q.Dequeue(0)
	assert.True(t, dequeueOK) // the one pre-shutdown task is still drainable

	_, dequeueOK = q.Dequeue(5 * time.Second)
	assert.False(t, dequeueOK) // empty and shut down: returns promptly
}

func TestClearBroadcastsNotFull(t *testing.T) {
	q := New(1)
	require.True(t, q.Enqueue(task.New("t", nil, priority.Medium, 1), 0))

	done := make(chan bool, 1)
	go func() {
		done <- q.Enqueue(task.New("t", nil, priority.Medium, 1), 2*time.Second)
	}()
	time.Sleep(20 * time.Millisecond)
	q.Clear()

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue did not wake after clear")
	}
}

func TestStatsPriorityBreakdown(t *testing.T) {
	q := New(10)
	q.Enqueue(task.New("t", nil, priority.High, 1), 0)
	q.Enqueue(task.New("t", nil, priority.High, 1), 0)
	q.Enqueue(task.New("t", nil, priority.Medium, 1), 0)
	q.Enqueue(task.New("t", nil, priority.Low, 1), 0)

	stats := q.Stats()
	assert.Equal(t, 4, stats.Size)
	assert.Equal(t, 10, stats.Capacity)
	assert.Equal(t, 2, stats.HighCount)
	assert.Equal(t, 1, stats.MediumCount)
	assert.Equal(t, 1, stats.LowCount)
	assert.InDelta(t, 40.0, stats.UtilizationPct, 0.01)

	q.Dequeue(0)
	stats = q.Stats()
	assert.Equal(t, 1, stats.HighCount)
}

func TestPeekDoesNotRemove(t *testing.T) {
	q := New(0)
	tk := task.New("t", nil, priority.High, 1)
	q.Enqueue(tk, 0)

	peeked, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, tk.ID(), peeked.ID())
	assert.Equal(t, 1, q.Size())
}

func TestUnboundedCapacityNeverFull(t *testing.T) {
	q := New(0)
	for i := 0; i < 1000; i++ {
		require.True(t, q.Enqueue(task.New("t", nil, priority.Medium, 1), 0))
	}
	assert.False(t, q.Full())
}
