// Package limiter implements the token-style policies a BoundedSenderQueue
// attaches to its pop path: named ConcurrencyLimiters (one per
// region/tenant, typically) and an optional byte-per-second RateLimiter.
package limiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ConcurrencyLimiter bounds how many items may be in ItemStatusSending at
// once for one named resource (a region, a tenant, a destination). pop is
// gated by every attached limiter having a free token; the token is
// released externally once the send completes.
type ConcurrencyLimiter struct {
	mu        sync.Mutex
	name      string
	limit     int
	inSending int
}

// New creates a concurrency limiter for name with the given maximum
// concurrent in-flight count. A non-positive limit means unlimited.
func New(name string, limit int) *ConcurrencyLimiter {
	return &ConcurrencyLimiter{name: name, limit: limit}
}

// Name returns the limiter's resource name.
func (c *ConcurrencyLimiter) Name() string { return c.name }

// HasAvailableToken reports whether a slot is currently free, without
// consuming it.
func (c *ConcurrencyLimiter) HasAvailableToken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limit <= 0 || c.inSending < c.limit
}

// Acquire consumes a token if one is free, returning whether it succeeded.
func (c *ConcurrencyLimiter) Acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.limit > 0 && c.inSending >= c.limit {
		return false
	}
	c.inSending++
	return true
}

// Release returns a token to the pool once a send completes or fails.
func (c *ConcurrencyLimiter) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inSending > 0 {
		c.inSending--
	}
}

// InSending reports the current in-flight count, for metrics.
func (c *ConcurrencyLimiter) InSending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inSending
}

// RateLimiter enforces a byte-per-second budget on a sender queue's pop
// path, backed by golang.org/x/time/rate's token bucket so bursts up to the
// configured budget are allowed and refill happens continuously rather than
// in discrete per-second windows.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a limiter allowing bytesPerSecond sustained
// throughput with a burst equal to one second's budget. A non-positive
// bytesPerSecond disables the limiter (AllowN always succeeds).
func NewRateLimiter(bytesPerSecond int) *RateLimiter {
	if bytesPerSecond <= 0 {
		return &RateLimiter{}
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond)}
}

// AllowN reports whether n bytes can be sent right now without exceeding
// the budget, consuming them from the bucket if so.
func (r *RateLimiter) AllowN(n int) bool {
	if r == nil || r.limiter == nil {
		return true
	}
	return r.limiter.AllowN(time.Now(), n)
}
