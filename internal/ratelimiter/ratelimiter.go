// Package ratelimiter throttles requests with token buckets from
// golang.org/x/time/rate.
package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a single token bucket.
//
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a limiter refilling at perSecond tokens per second with room
// for burst tokens. A zero rate means unlimited.
func New(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Allow consumes a token if one is available.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// AllowAt is Allow evaluated at time t.
func (r *RateLimiter) AllowAt(t time.Time) bool {
	return r.limiter.AllowN(t, 1)
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the tokens currently available. For monitoring only.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}

// PerClient keeps one bucket per key, typically the client IP. Buckets that
// have been idle for longer than the TTL are dropped on the next sweep.
type PerClient struct {
	perSecond float64
	burst     int
	ttl       time.Duration

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
	now       func() time.Time
}

type client struct {
	limiter  *RateLimiter
	lastSeen time.Time
}

// NewPerMinute builds a PerClient allowing perMinute requests per minute
// for each key, with bursts of up to burst requests. burst defaults to
// perMinute, matching a fixed one-minute window.
func NewPerMinute(perMinute, burst int) *PerClient {
	if burst <= 0 {
		burst = perMinute
	}
	return &PerClient{
		perSecond: float64(perMinute) / 60,
		burst:     burst,
		ttl:       5 * time.Minute,
		clients:   make(map[string]*client),
		now:       time.Now,
	}
}

// Allow reports whether key may make another request now.
func (p *PerClient) Allow(key string) bool {
	if p.perSecond <= 0 {
		return true
	}
	now := p.now()

	p.mu.Lock()
	c, ok := p.clients[key]
	if !ok {
		c = &client{limiter: New(p.perSecond, p.burst)}
		p.clients[key] = c
	}
	c.lastSeen = now
	if now.Sub(p.lastSweep) > p.ttl {
		p.sweepLocked(now)
	}
	l := c.limiter
	p.mu.Unlock()

	return l.AllowAt(now)
}

// Len returns the number of tracked keys.
func (p *PerClient) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

func (p *PerClient) sweepLocked(now time.Time) {
	for k, c := range p.clients {
		if now.Sub(c.lastSeen) > p.ttl {
			delete(p.clients, k)
		}
	}
	p.lastSweep = now
}
