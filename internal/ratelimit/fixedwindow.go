package ratelimit

import (
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/punkouter26/podropsquare-server/internal/domain"
)

// Decision is the outcome of a single Consume call.
type Decision struct {
	Allowed     bool
	Count       int           // submissions counted in the window after this call
	WindowStart time.Time     // start of the window the call landed in
	RetryAfter  time.Duration // zero when allowed, at least one second otherwise
}

// FixedWindow counts submissions per key in fixed windows of a set length.
//
// A window opens on the first submission for a key and lasts for Window. While
// it is open, submissions are accepted until Limit is reached. Updates to a
// single key are atomic; different keys never contend on a shared lock.
type FixedWindow struct {
	limit   int
	window  time.Duration
	windows *xsync.Map[string, domain.RateLimitWindow]
}

// NewFixedWindow creates a limiter admitting limit submissions per window.
func NewFixedWindow(limit int, window time.Duration) *FixedWindow {
	if limit < 1 {
		limit = 1
	}
	return &FixedWindow{
		limit:   limit,
		window:  window,
		windows: xsync.NewMap[string, domain.RateLimitWindow](),
	}
}

// Limit is the number of submissions admitted per window.
func (f *FixedWindow) Limit() int { return f.limit }

// Window is the window length.
func (f *FixedWindow) Window() time.Duration { return f.window }

// TryConsume records a submission for key at now and reports whether it is
// within the limit.
func (f *FixedWindow) TryConsume(key string, now time.Time) bool {
	return f.Consume(key, now).Allowed
}

// Consume records a submission for key at now. Rejected calls do not increment
// the counter.
func (f *FixedWindow) Consume(key string, now time.Time) Decision {
	var d Decision
	f.windows.Compute(key, func(w domain.RateLimitWindow, loaded bool) (domain.RateLimitWindow, xsync.ComputeOp) {
		if !loaded || w.Expired(now, f.window) {
			w = domain.RateLimitWindow{PlayerInitials: key, WindowStart: now, Count: 1}
			d = Decision{Allowed: true, Count: 1, WindowStart: now}
			return w, xsync.UpdateOp
		}

		if w.Count < f.limit {
			w.Count++
			d = Decision{Allowed: true, Count: w.Count, WindowStart: w.WindowStart}
			return w, xsync.UpdateOp
		}

		retry := w.WindowStart.Add(f.window).Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		d = Decision{Count: w.Count, WindowStart: w.WindowStart, RetryAfter: retry}
		return w, xsync.CancelOp
	})
	return d
}

// Lookup returns a copy of the current window for key.
func (f *FixedWindow) Lookup(key string) (domain.RateLimitWindow, bool) {
	return f.windows.Load(key)
}

// Sweep drops every window that has expired at now and returns how many were
// removed.
func (f *FixedWindow) Sweep(now time.Time) int {
	var keys []string
	f.windows.Range(func(key string, w domain.RateLimitWindow) bool {
		if w.Expired(now, f.window) {
			keys = append(keys, key)
		}
		return true
	})

	removed := 0
	for _, key := range keys {
		// Re-check under the per-key lock; a submission may have reopened it.
		f.windows.Compute(key, func(w domain.RateLimitWindow, loaded bool) (domain.RateLimitWindow, xsync.ComputeOp) {
			if !loaded || !w.Expired(now, f.window) {
				return w, xsync.CancelOp
			}
			removed++
			return w, xsync.DeleteOp
		})
	}
	return removed
}

// Len is the number of tracked windows.
func (f *FixedWindow) Len() int {
	return f.windows.Size()
}
