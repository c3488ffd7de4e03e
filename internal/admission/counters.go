package admission

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openclassifieds/gatekeeper/internal/queue"
)

// CounterStore provides atomic increment-with-expiry window counters.
// IncrWindow returns the count after incrementing plus the time remaining in
// the window, so callers compare the returned value against the ceiling —
// no check-then-increment race can slip a request past it.
type CounterStore interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)
}

const defaultCounterPrefix = "ratelimit:"

// RedisCounterStore implements window counters with INCR + EXPIRE NX in one
// pipeline round trip. The key expires one window after its first increment.
type RedisCounterStore struct {
	client *redis.Client
	prefix string
}

// NewRedisCounterStore creates a counter store with the given key prefix
func NewRedisCounterStore(client *redis.Client, prefix string) *RedisCounterStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultCounterPrefix
	}
	return &RedisCounterStore{client: client, prefix: prefix}
}

// IncrWindow atomically increments the counter, arming the expiry on first
// increment only.
func (s *RedisCounterStore) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, s.prefix+key)
	pipe.ExpireNX(ctx, s.prefix+key, window)
	ttl := pipe.TTL(ctx, s.prefix+key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("%w: increment counter: %v", queue.ErrStoreUnavailable, err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		remaining = window
	}
	return incr.Val(), remaining, nil
}

var _ CounterStore = (*RedisCounterStore)(nil)

type windowEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounterStore is the in-process fallback counter store. Counters are
// per-process only, so limits are approximate in degraded mode.
type MemoryCounterStore struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	now     func() time.Time
}

// NewMemoryCounterStore creates an in-process counter store
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

// IncrWindow increments the counter, restarting the window if it expired
func (s *MemoryCounterStore) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || now.After(e.expiresAt) {
		e = &windowEntry{expiresAt: now.Add(window)}
		s.entries[key] = e
	}
	e.count++
	return e.count, e.expiresAt.Sub(now), nil
}

var _ CounterStore = (*MemoryCounterStore)(nil)
