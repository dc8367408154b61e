// Package broker defines the minimal Redis-compatible operation set the
// scheduler is written against (SPEC_FULL.md §4.B), plus a production
// implementation backed by go-redis and an in-memory mock for tests that
// want no network dependency at all.
package broker

import (
	"context"
	"time"
)

// TTLNoExpiry and TTLAbsent are the sentinel return values for TTL,
// matching the "-1 means no expiry, -2 means key absent" contract.
const (
	TTLNoExpiry int64 = -1
	TTLAbsent   int64 = -2
)

// Client is the operation set every producer, worker, dedup, and priority
// layer in this module is written against. Every method returns a
// conservative absent/zero/false default on transport failure instead of
// raising — callers treat that as a retryable failure (ErrBrokerUnavailable
// in internal/errs) and the client itself never retries. Ping exposes a
// liveness probe so higher layers can distinguish "key absent" from
// "broker down".
type Client interface {
	// Ping performs a round-trip liveness test.
	Ping(ctx context.Context) bool

	// Set upserts key to value. ttl of zero means the key never expires.
	Set(ctx context.Context, key, value string, ttl time.Duration) bool
	// Get returns the value and true, or ("", false) if absent or on
	// transport failure.
	Get(ctx context.Context, key string) (string, bool)
	// Del deletes the given keys, returning the count actually deleted.
	Del(ctx context.Context, keys ...string) int64
	Exists(ctx context.Context, key string) bool
	Expire(ctx context.Context, key string, ttl time.Duration) bool
	// TTL returns remaining seconds, TTLNoExpiry, or TTLAbsent.
	TTL(ctx context.Context, key string) int64

	// LPush left-pushes value onto the list at key, returning the new
	// length.
	LPush(ctx context.Context, key, value string) int64
	// RPop pops the rightmost element, or ("", false) if empty.
	RPop(ctx context.Context, key string) (string, bool)
	// BRPop blocks up to timeout (0 = block indefinitely) for an element
	// to become available at the rightmost end.
	BRPop(ctx context.Context, key string, timeout time.Duration) (string, bool)
	LLen(ctx context.Context, key string) int64
	// LRange returns an inclusive range; negative indices count from the
	// end, matching Redis LRANGE semantics.
	LRange(ctx context.Context, key string, start, stop int64) []string

	// SAdd adds member to the set, returning 1 if newly added, 0 if
	// already present.
	SAdd(ctx context.Context, key, member string) int64
	SIsMember(ctx context.Context, key, member string) bool
	SRem(ctx context.Context, key, member string) int64
	SCard(ctx context.Context, key string) int64

	// ZAdd upserts member at score in the sorted set at key.
	ZAdd(ctx context.Context, key string, score float64, member string) bool
	// ZPopMax pops the highest-scored member.
	ZPopMax(ctx context.Context, key string) (member string, score float64, ok bool)
	ZCard(ctx context.Context, key string) int64

	// Incr/Decr atomically adjust a counter, creating it at 0 if absent.
	Incr(ctx context.Context, key string) int64
	Decr(ctx context.Context, key string) int64

	// Close releases any underlying transport resources.
	Close() error
}
