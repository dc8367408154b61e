package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// LocalLimiter rate-limits a single producer process per tenant, cheaper
// than a round trip to the broker when a producer only needs to bound its
// own submission rate rather than coordinate across a fleet. Grounded on
// this spec's ambient-stack enrichment (SPEC_FULL.md §2 component M):
// the teacher's dependency graph doesn't carry golang.org/x/time, but the
// rest of the retrieved pack reaches for it for exactly this in-process
// limiter role.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewLocalLimiter constructs a limiter allowing rps submissions per
// second per tenant, with burst as the initial token allowance.
func NewLocalLimiter(rps float64, burst int) *LocalLimiter {
	return &LocalLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether tenant may submit now, consuming a token if so.
func (l *LocalLimiter) Allow(tenant string) bool {
	return l.limiterFor(tenant).Allow()
}

func (l *LocalLimiter) limiterFor(tenant string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[tenant]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[tenant] = lim
	}
	return lim
}
