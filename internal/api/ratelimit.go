package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/punkouter26/podropsquare-server/internal/errors"
	"github.com/punkouter26/podropsquare-server/internal/ratelimit"
)

// RateLimiter is the per-client token bucket placed in front of submissions.
type RateLimiter = ratelimit.KeyedRateLimiter

// NewRateLimiter creates a new rate limiter.
// ratePerInterval: number of requests allowed per interval
// interval: time period for rate (e.g., time.Minute)
// burst: maximum burst size
func NewRateLimiter(ratePerInterval int, interval time.Duration, burst int) *RateLimiter {
	// 20 per minute = 20/60 = 0.333 rps
	rps := float64(ratePerInterval) / interval.Seconds()
	return ratelimit.New(rps, burst)
}

// newIPLimiter returns nil, disabling flood protection, when rps is not
// positive.
func newIPLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return ratelimit.New(rps, burst)
}

// limitByIP is a huma middleware rejecting clients that exceed their token
// bucket with 429. It runs before the body is parsed.
func (s *Server) limitByIP(ctx huma.Context, next func(huma.Context)) {
	if s.ipLimiter == nil {
		next(ctx)
		return
	}

	key := getClientIP(ctx)
	if s.ipLimiter.Allow(key) {
		next(ctx)
		return
	}

	retry := s.ipRetryAfter()
	s.logger.Warn("Rate limit exceeded",
		"ip", key,
		"path", ctx.URL().Path,
	)
	ctx.SetHeader("Retry-After", strconv.Itoa(int(retry.Seconds())))
	_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests,
		"Too many requests. Please try again later.",
		domainerrors.RateLimited("", retry),
	)
}

// ipRetryAfter is the time until one token refills, rounded up to a second.
func (s *Server) ipRetryAfter() time.Duration {
	rps := float64(s.ipLimiter.Limit())
	if rps <= 0 {
		return time.Second
	}
	return time.Duration(math.Max(1, math.Ceil(1/rps))) * time.Second
}

// getClientIP extracts the client IP from the request.
// Checks X-Forwarded-For and X-Real-IP headers before falling back to RemoteAddr.
func getClientIP(ctx huma.Context) string {
	// Check X-Forwarded-For (may contain multiple IPs, first is client).
	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}

	if xri := ctx.Header("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr (strip port).
	ip := ctx.RemoteAddr()
	for i := len(ip) - 1; i >= 0; i-- {
		if ip[i] == ':' {
			return ip[:i]
		}
	}
	return ip
}
