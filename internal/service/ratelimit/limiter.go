// Package ratelimit is a per-key token bucket limiter.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter holds one bucket per key. All buckets share capacity and refill rate.
type Limiter struct {
	capacity   float64
	refillRate float64 // tokens per second
	idleTTL    time.Duration
	now        func() time.Time

	mu        sync.Mutex
	m         map[string]*bucket
	lastSweep time.Time
}

// Option configures Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(l *Limiter) { l.now = now } }

// WithIdleTTL evicts buckets untouched for longer than ttl.
func WithIdleTTL(ttl time.Duration) Option { return func(l *Limiter) { l.idleTTL = ttl } }

func New(capacity, refillPerSec float64, opts ...Option) *Limiter {
	l := &Limiter{
		capacity:   capacity,
		refillRate: refillPerSec,
		idleTTL:    10 * time.Minute,
		now:        time.Now,
		m:          make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * l.refillRate
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Len is the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

func (l *Limiter) sweepLocked(now time.Time) {
	if l.idleTTL <= 0 || now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now
	for k, b := range l.m {
		if now.Sub(b.last) > l.idleTTL {
			delete(l.m, k)
		}
	}
}
