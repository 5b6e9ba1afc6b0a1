// Package ratelimit throttles deliveries per platform using token buckets.
package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket allows capacity deliveries in a burst and refills at a
// steady rate.
type TokenBucket struct {
	capacity   int
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

func newTokenBucket(capacity int, refillRate float64, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: now,
	}
}

func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill)
	if elapsed > 0 {
		tb.tokens = min(float64(tb.capacity), tb.tokens+elapsed.Seconds()*tb.refillRate)
		tb.lastRefill = now
	}
}

// allow consumes a token if one is available. When none is, it returns the
// wait until the next token.
func (tb *TokenBucket) allow(now time.Time) (bool, int, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(now)
	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true, int(tb.tokens), 0
	}

	missing := 1.0 - tb.tokens
	wait := time.Duration(missing / tb.refillRate * float64(time.Second))
	return false, 0, wait
}

// Info describes the outcome of one Allow call.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter keeps one bucket per platform.
type Limiter struct {
	config  *Config
	now     func() time.Time
	buckets map[string]*TokenBucket
	mu      sync.Mutex
}

// NewLimiter creates a limiter. A nil config disables limiting.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = &Config{}
	}
	return &Limiter{
		config:  config,
		now:     time.Now,
		buckets: make(map[string]*TokenBucket),
	}
}

// WithClock replaces the time source and returns the limiter.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	if now != nil {
		l.now = now
	}
	return l
}

// Allow reports whether a delivery to platform may proceed now and consumes
// a token if so. Platforms without a positive limit are unlimited.
func (l *Limiter) Allow(platform string) (bool, Info) {
	if l == nil || !l.config.Enabled {
		return true, Info{Allowed: true}
	}

	pc := l.config.For(platform)
	if pc.Limit <= 0 || pc.Window <= 0 {
		return true, Info{Allowed: true}
	}

	now := l.now()
	allowed, remaining, wait := l.bucket(platform, pc, now).allow(now)
	return allowed, Info{
		Allowed:    allowed,
		Limit:      pc.Limit,
		Remaining:  remaining,
		RetryAfter: wait,
	}
}

func (l *Limiter) bucket(platform string, pc PlatformConfig, now time.Time) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[platform]; ok {
		return b
	}
	capacity := pc.Burst
	if capacity <= 0 {
		capacity = pc.Limit
	}
	b := newTokenBucket(capacity, float64(pc.Limit)/pc.Window.Seconds(), now)
	l.buckets[platform] = b
	return b
}
