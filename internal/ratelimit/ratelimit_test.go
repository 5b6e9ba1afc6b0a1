package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func TestTokenBucket_Allow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bucket := newTokenBucket(10, 1.0, now)

	for i := 0; i < 10; i++ {
		allowed, _, _ := bucket.allow(now)
		assert.True(t, allowed, "request %d", i+1)
	}

	allowed, _, wait := bucket.allow(now)
	assert.False(t, allowed)
	assert.Equal(t, time.Second, wait)
}

func TestTokenBucket_Refill(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bucket := newTokenBucket(2, 0.5, now)

	bucket.allow(now)
	bucket.allow(now)

	allowed, _, _ := bucket.allow(now.Add(time.Second))
	assert.False(t, allowed)

	allowed, _, _ = bucket.allow(now.Add(2 * time.Second))
	assert.True(t, allowed)

	// refill never exceeds capacity
	allowed, remaining, _ := bucket.allow(now.Add(time.Hour))
	assert.True(t, allowed)
	assert.Equal(t, 1, remaining)
}

func TestLimiter_PerPlatformBudgets(t *testing.T) {
	clock := newClock()
	l := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Hour,
		Platforms: []PlatformConfig{
			{Platform: "twitter", Limit: 2, Window: time.Minute},
		},
	}).WithClock(clock.Now)

	ok, info := l.Allow("twitter")
	assert.True(t, ok)
	assert.Equal(t, 2, info.Limit)
	assert.Equal(t, 1, info.Remaining)

	ok, _ = l.Allow("twitter")
	assert.True(t, ok)

	ok, info = l.Allow("twitter")
	assert.False(t, ok)
	assert.InDelta(t, 30, info.RetryAfter.Seconds(), 0.001)

	// other platforms have their own bucket
	ok, info = l.Allow("linkedin")
	assert.True(t, ok)
	assert.Equal(t, 100, info.Limit)

	clock.Advance(31 * time.Second)
	ok, _ = l.Allow("twitter")
	assert.True(t, ok)
}

func TestLimiter_Disabled(t *testing.T) {
	l := NewLimiter(nil)
	for i := 0; i < 1000; i++ {
		ok, _ := l.Allow("twitter")
		require.True(t, ok)
	}

	var nilLimiter *Limiter
	ok, _ := nilLimiter.Allow("twitter")
	assert.True(t, ok)
}

func TestLimiter_Unlimited(t *testing.T) {
	l := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Hour,
		Unlimited:     map[string]bool{"blog": true},
	}).WithClock(newClock().Now)

	for i := 0; i < 5; i++ {
		ok, _ := l.Allow("blog")
		require.True(t, ok)
	}

	ok, _ := l.Allow("seo")
	assert.True(t, ok)
	ok, _ = l.Allow("seo")
	assert.False(t, ok)
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	l := NewLimiter(&Config{
		Enabled:   true,
		Platforms: []PlatformConfig{{Platform: "twitter", Limit: 50, Window: time.Hour}},
	}).WithClock(newClock().Now)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow("twitter"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestLoadConfig(t *testing.T) {
	env := map[string]string{
		EnvDefaultLimit:  "7",
		EnvDefaultWindow: "10m",
		EnvUnlimited:     "blog, seo",
	}
	cfg := loadConfig(func(k string) string { return env[k] })

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 7, cfg.DefaultLimit)
	assert.Equal(t, 10*time.Minute, cfg.DefaultWindow)
	assert.True(t, cfg.Unlimited["seo"])
	assert.Equal(t, 50, cfg.For("twitter").Limit)
	assert.Equal(t, 7, cfg.For("ad").Limit)
	assert.Zero(t, cfg.For("blog").Limit)
}

func TestLoadConfig_DisabledAndBadValues(t *testing.T) {
	cfg := loadConfig(func(k string) string {
		if k == EnvEnabled {
			return "false"
		}
		return ""
	})
	assert.False(t, cfg.Enabled)

	cfg = loadConfig(func(k string) string {
		if k == EnvDefaultLimit {
			return "lots"
		}
		return ""
	})
	assert.Equal(t, 100, cfg.DefaultLimit)
	assert.Equal(t, time.Hour, cfg.DefaultWindow)
}
