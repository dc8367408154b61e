// Package ratelimit implements producer-facing rate limiting
// (SPEC_FULL.md §2 component M): a distributed Redis Lua token bucket for
// per-tenant limits shared across every producer process, adapted from
// the teacher's internal/ratelimit/token_bucket.go (keyed per tenant
// instead of per job, with a RetryAfter estimate httpapi uses to set a
// 429's Retry-After header), plus an in-process limiter for a single
// producer using golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBucket implements a distributed token bucket rate limiter using
// Redis, keyed per tenant/producer identity rather than per job as in the
// teacher — SPEC_FULL.md §2 scopes rate limiting to "per-tenant producer",
// not per individual task.
type TokenBucket struct {
	client   *redis.Client
	capacity int
	refill   float64 // tokens per second
	ttl      time.Duration
}

// NewTokenBucket constructs a bucket with the provided capacity/refill.
func NewTokenBucket(client *redis.Client, capacity int, refillPerSecond float64, ttl time.Duration) *TokenBucket {
	return &TokenBucket{
		client:   client,
		capacity: capacity,
		refill:   refillPerSecond,
		ttl:      ttl,
	}
}

// Allow consumes a single submission slot for tenant if one is available,
// returning the allowed flag and the slots remaining after this call.
func (b *TokenBucket) Allow(ctx context.Context, tenant string) (bool, float64, error) {
	now := time.Now().UnixMilli()
	res, err := submissionBucketScript.Run(ctx, b.client, []string{"ratelimit:" + tenant}, b.capacity, b.refill, now, b.ttl.Milliseconds()).Result()
	if err != nil {
		return false, 0, err
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) < 2 {
		return false, 0, err
	}
	allowed := arr[0].(int64) == 1
	var slotsLeft float64
	switch v := arr[1].(type) {
	case int64:
		slotsLeft = float64(v)
	case float64:
		slotsLeft = v
	default:
		slotsLeft = 0
	}
	return allowed, slotsLeft, nil
}

// RetryAfter estimates how long a rejected tenant should wait before its
// next submission has a decent chance of being allowed: the time for the
// refill rate to produce one more slot beyond whatever is already
// banked. Used to set the HTTP Retry-After header on a 429.
func (b *TokenBucket) RetryAfter(slotsLeft float64) time.Duration {
	if b.refill <= 0 {
		return b.ttl
	}
	deficit := 1 - slotsLeft
	if deficit <= 0 {
		return 0
	}
	return time.Duration(deficit/b.refill*float64(time.Second)) + time.Second
}

var submissionBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_per_sec = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])
local ttl_ms = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'slots', 'refreshed_ms')
local slots = tonumber(state[1])
local refreshed_ms = tonumber(state[2])
if slots == nil then slots = capacity end
if refreshed_ms == nil then refreshed_ms = now_ms end

local elapsed_ms = math.max(0, now_ms - refreshed_ms)
local replenished = elapsed_ms / 1000 * refill_per_sec
slots = math.min(capacity, slots + replenished)

local admitted = 0
if slots >= 1 then
  admitted = 1
  slots = slots - 1
end

redis.call('HMSET', key, 'slots', slots, 'refreshed_ms', now_ms)
if ttl_ms > 0 then redis.call('PEXPIRE', key, ttl_ms) end
return {admitted, slots}
`)
