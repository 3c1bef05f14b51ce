// Package ratelimit provides the per-player fixed-window submission limiter and
// a per-client token bucket used for HTTP flood protection.
package ratelimit

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// KeyedRateLimiter manages one token bucket per key, typically a client IP.
type KeyedRateLimiter struct {
	buckets *xsync.Map[string, *bucket]
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// New creates a keyed limiter.
// rps: requests per second allowed.
// burst: maximum burst size (tokens available immediately).
func New(rps float64, burst int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		buckets: xsync.NewMap[string, *bucket](),
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow reports whether a request for key may proceed now. Non-blocking.
func (k *KeyedRateLimiter) Allow(key string) bool {
	now := k.now()
	b, _ := k.buckets.Compute(key, func(old *bucket, loaded bool) (*bucket, xsync.ComputeOp) {
		if loaded {
			return old, xsync.CancelOp
		}
		return &bucket{limiter: rate.NewLimiter(k.limit, k.burst)}, xsync.UpdateOp
	})
	b.lastSeen.Store(now.UnixNano())
	return b.limiter.AllowN(now, 1)
}

// Limit is the sustained rate each key is allowed.
func (k *KeyedRateLimiter) Limit() rate.Limit {
	return k.limit
}

// Evict forgets buckets idle for longer than idle. A forgotten key starts over
// with a full bucket, so idle should exceed burst/rps.
func (k *KeyedRateLimiter) Evict(idle time.Duration) int {
	cutoff := k.now().Add(-idle).UnixNano()
	removed := 0
	k.buckets.Range(func(key string, b *bucket) bool {
		if b.lastSeen.Load() < cutoff {
			k.buckets.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// Len is the number of tracked keys.
func (k *KeyedRateLimiter) Len() int {
	return k.buckets.Size()
}
