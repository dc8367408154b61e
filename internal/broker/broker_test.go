package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clients returns both concrete implementations so every behavioral test
// below runs against RedisClient (via miniredis) and MockClient with
// identical expectations, per SPEC_FULL.md §4.B's "same visible ordering,
// same absent/present results" contract.
func clients(t *testing.T) map[string]Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return map[string]Client{
		"redis": FromExisting(rdb),
		"mock":  NewMockClient(),
	}
}

func TestSetGetTTL(t *testing.T) {
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.Equal(t, TTLAbsent, c.TTL(ctx, "missing"))

			assert.True(t, c.Set(ctx, "k", "v", 0))
			v, ok := c.Get(ctx, "k")
			assert.True(t, ok)
			assert.Equal(t, "v", v)
			assert.Equal(t, TTLNoExpiry, c.TTL(ctx, "k"))

			assert.True(t, c.Set(ctx, "k2", "v2", time.Minute))
			ttl := c.TTL(ctx, "k2")
			assert.True(t, ttl > 0 && ttl <= 60)
		})
	}
}

func TestDelExistsExpire(t *testing.T) {
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c.Set(ctx, "a", "1", 0)
			c.Set(ctx, "b", "2", 0)
			assert.True(t, c.Exists(ctx, "a"))
			assert.Equal(t, int64(2), c.Del(ctx, "a", "b"))
			assert.False(t, c.Exists(ctx, "a"))

			c.Set(ctx, "c", "3", 0)
			assert.True(t, c.Expire(ctx, "c", time.Hour))
			assert.True(t, c.TTL(ctx, "c") > 0)
		})
	}
}

func TestListFIFO(t *testing.T) {
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c.LPush(ctx, "q", "h1")
			c.LPush(ctx, "q", "h2")
			c.LPush(ctx, "q", "h3")
			assert.Equal(t, int64(3), c.LLen(ctx, "q"))

			v, ok := c.RPop(ctx, "q")
			assert.True(t, ok)
			assert.Equal(t, "h1", v)

			v, ok = c.RPop(ctx, "q")
			assert.True(t, ok)
			assert.Equal(t, "h2", v)
		})
	}
}

func TestBRPopOnMissingListTimesOut(t *testing.T) {
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			start := time.Now()
			_, ok := c.BRPop(ctx, "nonexistent", time.Second)
			elapsed := time.Since(start)
			assert.False(t, ok)
			assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond)
			assert.Less(t, elapsed, 2*time.Second)
		})
	}
}

func TestBRPopWakesOnPush(t *testing.T) {
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			done := make(chan string, 1)
			go func() {
				v, ok := c.BRPop(ctx, "wake", 5*time.Second)
				if ok {
					done <- v
				} else {
					done <- ""
				}
			}()
			time.Sleep(50 * time.Millisecond)
			c.LPush(ctx, "wake", "payload")

			select {
			case v := <-done:
				assert.Equal(t, "payload", v)
			case <-time.After(2 * time.Second):
				t.Fatal("brpop did not wake on push")
			}
		})
	}
}

func TestSetOperationsDedup(t *testing.T) {
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.Equal(t, int64(1), c.SAdd(ctx, "dedup:q", "F"))
			assert.Equal(t, int64(0), c.SAdd(ctx, "dedup:q", "F"))
			assert.True(t, c.SIsMember(ctx, "dedup:q", "F"))
			assert.Equal(t, int64(1), c.SCard(ctx, "dedup:q"))

			assert.Equal(t, int64(1), c.SRem(ctx, "dedup:q", "F"))
			assert.Equal(t, int64(0), c.SRem(ctx, "dedup:q", "F"))
		})
	}
}

func TestConcurrentDedupExactlyOneWinner(t *testing.T) {
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const n = 20
			var wg sync.WaitGroup
			results := make([]int64, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i] = c.SAdd(ctx, "dedup:race", "F")
				}(i)
			}
			wg.Wait()

			var winners int64
			for _, r := range results {
				winners += r
			}
			assert.Equal(t, int64(1), winners)
			assert.Equal(t, int64(1), c.SCard(ctx, "dedup:race"))
		})
	}
}

func TestZAddZPopMax(t *testing.T) {
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.True(t, c.ZAdd(ctx, "priq:q", 100, "m1"))
			member, score, ok := c.ZPopMax(ctx, "priq:q")
			assert.True(t, ok)
			assert.Equal(t, "m1", member)
			assert.Equal(t, 100.0, score)

			_, _, ok = c.ZPopMax(ctx, "priq:q")
			assert.False(t, ok)
		})
	}
}

func TestZPopMaxOrdersByScore(t *testing.T) {
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c.ZAdd(ctx, "priq:q", 10, "low")
			c.ZAdd(ctx, "priq:q", 100, "high")
			c.ZAdd(ctx, "priq:q", 50, "mid")

			member, _, _ := c.ZPopMax(ctx, "priq:q")
			assert.Equal(t, "high", member)
			member, _, _ = c.ZPopMax(ctx, "priq:q")
			assert.Equal(t, "mid", member)
			member, _, _ = c.ZPopMax(ctx, "priq:q")
			assert.Equal(t, "low", member)
		})
	}
}

func TestIncrDecr(t *testing.T) {
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.Equal(t, int64(1), c.Incr(ctx, "counter:x"))
			assert.Equal(t, int64(2), c.Incr(ctx, "counter:x"))
			assert.Equal(t, int64(1), c.Decr(ctx, "counter:x"))
		})
	}
}

func TestPing(t *testing.T) {
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			assert.True(t, c.Ping(context.Background()))
		})
	}
}
