package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
	"golang.org/x/sync/singleflight"

	"github.com/llmbridge/transport/internal/bridge"
)

// MaxBuckets bounds the number of live scope-keyed buckets. Past this the
// cache's own W-TinyLFU admission/eviction policy reclaims the
// least-valuable entry, approximating strict LRU.
const MaxBuckets = 1000

// BucketIdleTTL is the inactivity window after which an unused bucket
// becomes eligible for eviction, in addition to the size cap above.
const BucketIdleTTL = 5 * time.Minute

// Status is the result of a non-consuming getStatus query.
type Status struct {
	ScopeKey string
	Tokens   float64
	Enabled  bool
}

// ConfigUpdate carries the fields updateConfig should overwrite; nil fields
// are left at their current value.
type ConfigUpdate struct {
	MaxRPS  *float64
	Burst   *float64
	Scope   *bridge.Scope
	Enabled *bool
}

// Limiter is the scoped token-bucket rate limiter of §4.2: a bounded,
// TTL-evicting map of buckets keyed by scope string, with lazy creation.
type Limiter struct {
	mu  sync.RWMutex
	cfg Config

	buckets *otter.Cache[string, *TokenBucket]
	group   singleflight.Group
}

// New validates cfg and constructs a Limiter. Construction fails atomically
// on an invalid config -- no partial construction.
func New(cfg Config) (*Limiter, error) {
	cfg, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	buckets, err := otter.New[string, *TokenBucket](&otter.Options[string, *TokenBucket]{
		MaximumSize:      MaxBuckets,
		ExpiryCalculator: otter.ExpiryWriting[string, *TokenBucket](BucketIdleTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("ratelimit: create bucket table: %w", err)
	}
	return &Limiter{cfg: cfg, buckets: buckets}, nil
}

func (l *Limiter) snapshotConfig() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// touch refreshes the writing-based expiry clock on an existing entry by
// re-Setting it, which is how an idle TTL is approximated on top of a
// write-expiring cache: every live touch (checkLimit, getStatus) postpones
// eviction.
func (l *Limiter) touch(key string, b *TokenBucket) {
	l.buckets.Set(key, b)
}

func (l *Limiter) getOrCreate(key string) (*TokenBucket, error) {
	if b, ok := l.buckets.GetIfPresent(key); ok {
		l.touch(key, b)
		return b, nil
	}
	v, err, _ := l.group.Do(key, func() (any, error) {
		if b, ok := l.buckets.GetIfPresent(key); ok {
			return b, nil
		}
		cfg := l.snapshotConfig()
		b, err := NewTokenBucket(cfg.Burst, cfg.MaxRPS, 0)
		if err != nil {
			return nil, err
		}
		l.buckets.Set(key, b)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*TokenBucket), nil
}

// CheckLimit derives the scope key for rc, lazily locates or creates its
// bucket, and attempts to consume one token. It never blocks and never
// returns an error for a disabled limiter -- disabled always allows.
func (l *Limiter) CheckLimit(rc bridge.RateLimitContext) bool {
	cfg := l.snapshotConfig()
	if !cfg.Enabled {
		return true
	}
	key := ScopeKey(cfg.Scope, rc)
	b, err := l.getOrCreate(key)
	if err != nil {
		return false
	}
	return b.Consume(1)
}

// GetStatus reports the scope key, current token count (defaulting to the
// configured maximum if no bucket exists yet), and whether limiting is
// enabled.
func (l *Limiter) GetStatus(rc bridge.RateLimitContext) Status {
	cfg := l.snapshotConfig()
	key := ScopeKey(cfg.Scope, rc)
	if b, ok := l.buckets.GetIfPresent(key); ok {
		l.touch(key, b)
		return Status{ScopeKey: key, Tokens: b.AvailableTokens(), Enabled: cfg.Enabled}
	}
	return Status{ScopeKey: key, Tokens: cfg.Burst, Enabled: cfg.Enabled}
}

// UpdateConfig validates the merged config and swaps it in. Existing
// buckets keep running under their prior parameters until evicted; only
// newly created buckets observe the updated config (documented
// simplification, see design notes).
func (l *Limiter) UpdateConfig(u ConfigUpdate) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	merged := l.cfg
	if u.MaxRPS != nil {
		merged.MaxRPS = *u.MaxRPS
	}
	if u.Burst != nil {
		merged.Burst = *u.Burst
	}
	if u.Scope != nil {
		merged.Scope = *u.Scope
	}
	if u.Enabled != nil {
		merged.Enabled = *u.Enabled
	}
	merged, err := merged.validate()
	if err != nil {
		return err
	}
	l.cfg = merged
	return nil
}

// BucketCount reports the number of live buckets, for observability.
func (l *Limiter) BucketCount() int {
	return l.buckets.EstimatedSize()
}
