// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements per-client rate limiting. Two shapes are provided:
//
//   - RateLimiter: a global, in-process token bucket keyed by client IP that
//     protects the whole API from bursts.
//   - Limit: a route-scoped guard backed by a Limiter (in-memory or Redis) that
//     caps how often one address can hit a sensitive endpoint, e.g. voting.
//
// Both respond with 429 and a Retry-After header once the budget is spent.
package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Limiter decides whether another event for key fits in the current budget.
// retryAfter is a hint for clients and is only meaningful when allowed is
// false.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a token-bucket Limiter that keeps one bucket per key in
// process memory. Idle buckets are collected after ttl.
type MemoryLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	every    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryLimiter returns a limiter that admits limit events per window per
// key, refilling continuously. A burst of up to limit events is allowed.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	ttl := 2 * window
	if ttl < 3*time.Minute {
		ttl = 3 * time.Minute
	}
	return &MemoryLimiter{
		visitors: make(map[string]*visitor),
		every:    rate.Limit(float64(limit) / window.Seconds()),
		burst:    limit,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Allow consumes one token for key.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := m.now()

	m.mu.Lock()
	v := m.visitors[key]
	if v == nil {
		v = &visitor{lim: rate.NewLimiter(m.every, m.burst)}
		m.visitors[key] = v
	}
	v.lastSeen = now
	res := v.lim.ReserveN(now, 1)
	m.mu.Unlock()

	if !res.OK() {
		return false, time.Second, nil
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return false, d, nil
	}
	return true, 0, nil
}

// GC drops buckets not seen within the idle ttl.
func (m *MemoryLimiter) GC() {
	cutoff := m.now().Add(-m.ttl)
	m.mu.Lock()
	for k, v := range m.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(m.visitors, k)
		}
	}
	m.mu.Unlock()
}

// Len returns the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.visitors)
}

// RunGC collects idle buckets every interval until ctx is done.
func (m *MemoryLimiter) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.GC()
		}
	}
}

// LimitOptions configures Limit.
type LimitOptions struct {
	// Scope prefixes the limiter key so one Limiter can serve several routes.
	Scope string
	// Code and Message fill the 429 envelope.
	Code    string
	Message string
}

// Limit guards a route with l, keyed by the client address. Limiter errors
// fail open: the request proceeds and the failure is logged.
func Limit(l Limiter, opts LimitOptions) gin.HandlerFunc {
	code := opts.Code
	if code == "" {
		code = "rate_limited"
	}
	msg := opts.Message
	if msg == "" {
		msg = "too many requests"
	}

	return func(c *gin.Context) {
		key := c.ClientIP()
		if opts.Scope != "" {
			key = opts.Scope + ":" + key
		}

		ok, retry, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Str("scope", opts.Scope).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if !ok {
			setRetryAfter(c, retry)
			abortJSON(c, http.StatusTooManyRequests, code, msg)
			return
		}
		c.Next()
	}
}

// RateLimiter applies a global per-IP token bucket of rps/burst to every
// request. Requests flagged as idempotent replays skip the limiter.
func RateLimiter(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	m := &MemoryLimiter{
		visitors: make(map[string]*visitor),
		every:    rate.Limit(rps),
		burst:    burst,
		ttl:      3 * time.Minute,
		now:      time.Now,
	}
	var calls uint64

	return func(c *gin.Context) {
		if v, ok := c.Get(ctxKeyRateBypass); ok {
			if b, _ := v.(bool); b {
				c.Next()
				return
			}
		}

		ok, retry, _ := m.Allow(c.Request.Context(), c.ClientIP())

		m.mu.Lock()
		calls++
		sweep := calls%1024 == 0
		m.mu.Unlock()
		if sweep {
			m.GC()
		}

		if !ok {
			setRetryAfter(c, retry)
			abortJSON(c, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		c.Next()
	}
}

func setRetryAfter(c *gin.Context, d time.Duration) {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", strconv.Itoa(secs))
}
