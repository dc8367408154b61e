package broker

import (
	"context"
	"sort"
	"sync"
	"time"
)

// pollInterval bounds how promptly a blocking MockClient operation notices
// a concurrent push; it trades a small fixed latency for a simple,
// dependency-free implementation suitable for unit tests.
const pollInterval = 5 * time.Millisecond

type stringEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// MockClient is a pure in-memory Client implementation with no network
// dependency, giving the scheduler's call sites a second concrete
// implementation to depend on besides RedisClient (the dependency-inversion
// resolution named in SPEC_FULL.md §9). Same visible ordering and
// absent/present results as RedisClient against a real broker.
type MockClient struct {
	mu       sync.Mutex
	strings  map[string]stringEntry
	lists    map[string][]string
	sets     map[string]map[string]struct{}
	zsets    map[string]map[string]float64
	counters map[string]int64
}

// NewMockClient constructs an empty in-memory broker.
func NewMockClient() *MockClient {
	return &MockClient{
		strings:  make(map[string]stringEntry),
		lists:    make(map[string][]string),
		sets:     make(map[string]map[string]struct{}),
		zsets:    make(map[string]map[string]float64),
		counters: make(map[string]int64),
	}
}

func (m *MockClient) Close() error { return nil }

func (m *MockClient) Ping(ctx context.Context) bool { return true }

func (m *MockClient) expireLocked(key string) {
	e, ok := m.strings[key]
	if ok && !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(m.strings, key)
	}
}

func (m *MockClient) Set(ctx context.Context, key, value string, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	m.strings[key] = stringEntry{value: value, expiresAt: expires}
	return true
}

func (m *MockClient) Get(ctx context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	e, ok := m.strings[key]
	if !ok {
		return "", false
	}
	return e.value, true
}

func (m *MockClient) Del(ctx context.Context, keys ...string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.strings[k]; ok {
			delete(m.strings, k)
			n++
			continue
		}
		if _, ok := m.lists[k]; ok {
			delete(m.lists, k)
			n++
			continue
		}
		if _, ok := m.sets[k]; ok {
			delete(m.sets, k)
			n++
			continue
		}
		if _, ok := m.zsets[k]; ok {
			delete(m.zsets, k)
			n++
			continue
		}
		if _, ok := m.counters[k]; ok {
			delete(m.counters, k)
			n++
		}
	}
	return n
}

func (m *MockClient) Exists(ctx context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	if _, ok := m.strings[key]; ok {
		return true
	}
	if _, ok := m.counters[key]; ok {
		return true
	}
	if v, ok := m.lists[key]; ok {
		return len(v) > 0
	}
	if v, ok := m.sets[key]; ok {
		return len(v) > 0
	}
	if v, ok := m.zsets[key]; ok {
		return len(v) > 0
	}
	return false
}

func (m *MockClient) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.strings[key]
	if !ok {
		return false
	}
	e.expiresAt = time.Now().Add(ttl)
	m.strings[key] = e
	return true
}

func (m *MockClient) TTL(ctx context.Context, key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	e, ok := m.strings[key]
	if !ok {
		return TTLAbsent
	}
	if e.expiresAt.IsZero() {
		return TTLNoExpiry
	}
	remaining := time.Until(e.expiresAt)
	if remaining <= 0 {
		delete(m.strings, key)
		return TTLAbsent
	}
	secs := int64(remaining / time.Second)
	if secs == 0 {
		secs = 1
	}
	return secs
}

func (m *MockClient) LPush(ctx context.Context, key, value string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append([]string{value}, m.lists[key]...)
	return int64(len(m.lists[key]))
}

func (m *MockClient) rpopLocked(key string) (string, bool) {
	l := m.lists[key]
	if len(l) == 0 {
		return "", false
	}
	v := l[len(l)-1]
	m.lists[key] = l[:len(l)-1]
	return v, true
}

func (m *MockClient) RPop(ctx context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rpopLocked(key)
}

func (m *MockClient) BRPop(ctx context.Context, key string, timeout time.Duration) (string, bool) {
	var deadline time.Time
	hasDeadline := timeout > 0
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}
	for {
		m.mu.Lock()
		v, ok := m.rpopLocked(key)
		m.mu.Unlock()
		if ok {
			return v, true
		}
		select {
		case <-ctx.Done():
			return "", false
		default:
		}
		if hasDeadline && time.Now().After(deadline) {
			return "", false
		}
		if !hasDeadline {
			// timeout=0 means block indefinitely; still respect ctx.
			select {
			case <-ctx.Done():
				return "", false
			case <-time.After(pollInterval):
			}
			continue
		}
		time.Sleep(pollInterval)
	}
}

func (m *MockClient) LLen(ctx context.Context, key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.lists[key]))
}

func (m *MockClient) LRange(ctx context.Context, key string, start, stop int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.lists[key]
	n := int64(len(l))
	if n == 0 {
		return nil
	}
	start = normalizeIndex(start, n)
	stop = normalizeIndex(stop, n)
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil
	}
	out := make([]string, stop-start+1)
	copy(out, l[start:stop+1])
	return out
}

func normalizeIndex(i, n int64) int64 {
	if i < 0 {
		return n + i
	}
	return i
}

func (m *MockClient) SAdd(ctx context.Context, key, member string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	if _, exists := set[member]; exists {
		return 0
	}
	set[member] = struct{}{}
	return 1
}

func (m *MockClient) SIsMember(ctx context.Context, key, member string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sets[key][member]
	return ok
}

func (m *MockClient) SRem(ctx context.Context, key, member string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok {
		return 0
	}
	if _, exists := set[member]; !exists {
		return 0
	}
	delete(set, member)
	return 1
}

func (m *MockClient) SCard(ctx context.Context, key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sets[key]))
}

func (m *MockClient) ZAdd(ctx context.Context, key string, score float64, member string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zsets[key]
	if !ok {
		z = make(map[string]float64)
		m.zsets[key] = z
	}
	z[member] = score
	return true
}

func (m *MockClient) ZPopMax(ctx context.Context, key string) (string, float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	z := m.zsets[key]
	if len(z) == 0 {
		return "", 0, false
	}
	members := make([]string, 0, len(z))
	for mem := range z {
		members = append(members, mem)
	}
	sort.Slice(members, func(i, j int) bool {
		if z[members[i]] != z[members[j]] {
			return z[members[i]] > z[members[j]]
		}
		return members[i] < members[j]
	})
	best := members[0]
	score := z[best]
	delete(z, best)
	return best, score, true
}

func (m *MockClient) ZCard(ctx context.Context, key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.zsets[key]))
}

func (m *MockClient) Incr(ctx context.Context, key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key]
}

func (m *MockClient) Decr(ctx context.Context, key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]--
	return m.counters[key]
}
