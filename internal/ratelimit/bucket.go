// Package ratelimit provides the token-bucket admission policy that gates
// every call to the external extraction capability.
//
// The bucket is an explicitly owned object injected into the gateway at
// construction time, never a package-level singleton, so independent
// pipelines (and tests) get independent limiters.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultCapacity is the default burst size.
	DefaultCapacity = 5
	// DefaultWindow is the period over which a full bucket's worth of
	// tokens accrues: capacity/window tokens per second.
	DefaultWindow = time.Minute
)

// Bucket is a single token bucket. Safe for concurrent use.
type Bucket struct {
	capacity float64
	rate     float64 // tokens added per second

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewBucket creates a bucket holding capacity tokens, refilling at
// capacity/window tokens per second. Zero values fall back to the defaults
// (5 tokens per minute).
func NewBucket(capacity int, window time.Duration) *Bucket {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if window <= 0 {
		window = DefaultWindow
	}
	b := &Bucket{
		capacity: float64(capacity),
		rate:     float64(capacity) / window.Seconds(),
		tokens:   float64(capacity),
		now:      time.Now,
	}
	b.lastRefill = b.now()
	return b
}

// TryTake debits one token if available.
func (b *Bucket) TryTake() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Wait blocks until a token can be debited or ctx is done. When the bucket
// is empty it computes the accrual time for one token and suspends on a
// timer rather than spinning.
func (b *Bucket) Wait(ctx context.Context) error {
	for {
		b.mu.Lock()
		b.refillLocked()
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
		b.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refillLocked accrues tokens for the time elapsed since the last refill.
// Caller holds b.mu.
func (b *Bucket) refillLocked() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}
