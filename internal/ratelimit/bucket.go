// Package ratelimit implements the scope-keyed token-bucket rate limiter
// that sits in front of the Base HTTP Transport.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

const defaultRefillInterval = 100 * time.Millisecond

// TokenBucket is a classical token bucket with lazy, on-read refill -- no
// background timer is required. Tokens accrue continuously at refillRate
// per second, clamped to maxTokens.
type TokenBucket struct {
	mu sync.Mutex

	maxTokens      float64
	refillRate     float64 // tokens per second; 0 means a static bucket
	refillInterval time.Duration

	tokens     float64
	lastRefill time.Time
}

// NewTokenBucket validates its arguments and constructs a full bucket.
// refillInterval is purely advisory (it documents the minimum refill
// granularity a caller intends); refill itself is always computed on
// demand. A zero refillInterval defaults to 100ms.
func NewTokenBucket(maxTokens, refillRate float64, refillInterval time.Duration) (*TokenBucket, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("ratelimit: maxTokens must be > 0, got %v", maxTokens)
	}
	if refillRate < 0 {
		return nil, fmt.Errorf("ratelimit: refillRate must be >= 0, got %v", refillRate)
	}
	if refillInterval == 0 {
		refillInterval = defaultRefillInterval
	}
	if refillInterval < 0 {
		return nil, fmt.Errorf("ratelimit: refillInterval must be > 0, got %v", refillInterval)
	}
	return &TokenBucket{
		maxTokens:      maxTokens,
		refillRate:     refillRate,
		refillInterval: refillInterval,
		tokens:         maxTokens,
		lastRefill:     time.Now(),
	}, nil
}

// refill recomputes tokens based on elapsed wall-clock time. Must be called
// with mu held. A negative or zero elapsed duration (clock skew, or a test
// poking lastRefill into the future) is a no-op: it never costs tokens.
func (b *TokenBucket) refill(now time.Time) {
	if b.refillRate == 0 {
		return
	}
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.maxTokens, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now
}

// Consume deducts n tokens iff n is in [0, maxTokens] and enough tokens are
// currently available. On denial, state is left unchanged.
func (b *TokenBucket) Consume(n float64) bool {
	if n < 0 || n > b.maxTokens {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(time.Now())
	if b.tokens < n {
		return false
	}
	b.tokens -= n
	return true
}

// AvailableTokens reports the token count after applying any pending
// refill, without consuming anything.
func (b *TokenBucket) AvailableTokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(time.Now())
	return b.tokens
}

// RetryAfter reports how many seconds until n tokens would be available,
// given the current refill rate. Returns 0 if n tokens are already
// available, or if the bucket never refills (static bucket).
func (b *TokenBucket) RetryAfter(n float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(time.Now())
	if b.tokens >= n || b.refillRate == 0 {
		return 0
	}
	return (n - b.tokens) / b.refillRate
}

// Reset sets tokens back to maxTokens and lastRefill to now.
func (b *TokenBucket) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = b.maxTokens
	b.lastRefill = time.Now()
}
