// Package ratelimit bounds how many one-time codes a user may submit per
// minute.
package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter consumes one attempt for key and reports whether it was allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

const defaultIdleTTL = 10 * time.Minute

// MemoryLimiter keeps a token bucket per key in process memory and evicts
// buckets that have been idle for longer than idleTTL.
type MemoryLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu    sync.Mutex
	byKey map[string]*bucket
	hits  uint64
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter allows perMinute attempts per key, refilled evenly over
// a minute. It returns nil when perMinute is not positive; a nil
// *MemoryLimiter allows everything.
func NewMemoryLimiter(perMinute int) *MemoryLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &MemoryLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		idleTTL: defaultIdleTTL,
		now:     time.Now,
		byKey:   make(map[string]*bucket),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true, nil
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.byKey[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		l.evict(now)
	}
	return allowed, nil
}

func (l *MemoryLimiter) evict(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for k, b := range l.byKey {
		if b.lastSeen.Before(cutoff) {
			delete(l.byKey, k)
		}
	}
}
