package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow_EnforcesBurst(t *testing.T) {
	limiter := New(10, 10)
	for i := 0; i < 10; i++ {
		require.True(t, limiter.Allow(), "request %d should be within burst", i)
	}
	assert.False(t, limiter.Allow())
}

func TestAllow_Unlimited(t *testing.T) {
	limiter := New(0, 0)
	for i := 0; i < 10_000; i++ {
		require.True(t, limiter.Allow())
	}
}

func TestWait_RespectsContext(t *testing.T) {
	limiter := New(1, 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Wait(ctx))
}

// fakeClock lets the tests move time without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestPerClient_Threshold(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	p := NewPerMinute(200, 0)
	p.now = clock.now

	for i := 0; i < 200; i++ {
		require.True(t, p.Allow("10.0.0.5"), "request %d", i)
	}
	assert.False(t, p.Allow("10.0.0.5"))

	// Other clients have their own budget.
	assert.True(t, p.Allow("10.0.0.6"))

	// A full minute refills the bucket.
	clock.advance(time.Minute)
	for i := 0; i < 200; i++ {
		require.True(t, p.Allow("10.0.0.5"), "request %d after refill", i)
	}
}

func TestPerClient_PartialRefill(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	p := NewPerMinute(60, 0)
	p.now = clock.now

	for i := 0; i < 60; i++ {
		require.True(t, p.Allow("a"))
	}
	require.False(t, p.Allow("a"))

	clock.advance(1100 * time.Millisecond)
	assert.True(t, p.Allow("a"))
	assert.False(t, p.Allow("a"))
}

func TestPerClient_Disabled(t *testing.T) {
	p := NewPerMinute(0, 0)
	for i := 0; i < 1000; i++ {
		require.True(t, p.Allow("x"))
	}
	assert.Zero(t, p.Len())
}

func TestPerClient_SweepsIdle(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	p := NewPerMinute(10, 0)
	p.now = clock.now

	p.Allow("a")
	p.Allow("b")
	require.Equal(t, 2, p.Len())

	clock.advance(10 * time.Minute)
	p.Allow("c")
	assert.Equal(t, 1, p.Len())
}
