package ratelimit

import (
	"fmt"
	"sync"
	"testing"

	"github.com/llmbridge/transport/internal/bridge"
)

func TestScopeKey_Table(t *testing.T) {
	t.Parallel()
	rc := bridge.RateLimitContext{Provider: "anthropic", Model: "claude", KeyHash: "ab12cd34", Endpoint: "/v1/messages"}

	cases := []struct {
		scope bridge.Scope
		want  string
	}{
		{bridge.ScopeGlobal, "global"},
		{bridge.ScopeProvider, "anthropic"},
		{bridge.ScopeProviderModel, "anthropic:claude"},
		{bridge.ScopeProviderModelKey, "anthropic:claude:ab12cd34"},
	}
	for _, c := range cases {
		if got := ScopeKey(c.scope, rc); got != c.want {
			t.Errorf("ScopeKey(%s) = %q, want %q", c.scope, got, c.want)
		}
	}
}

func TestScopeKey_MissingFieldsSerializeEmpty(t *testing.T) {
	t.Parallel()
	rc := bridge.RateLimitContext{Provider: "openai"}
	if got, want := ScopeKey(bridge.ScopeProviderModel, rc), "openai:"; got != want {
		t.Errorf("ScopeKey = %q, want %q", got, want)
	}
}

func TestScopeKey_IgnoresEndpoint(t *testing.T) {
	t.Parallel()
	base := bridge.RateLimitContext{Provider: "openai", Model: "gpt", KeyHash: "xyz"}
	withEndpoint := base
	withEndpoint.Endpoint = "/v1/chat/completions"

	k1 := ScopeKey(bridge.ScopeProviderModelKey, base)
	k2 := ScopeKey(bridge.ScopeProviderModelKey, withEndpoint)
	if k1 != k2 {
		t.Errorf("scope key depends on endpoint: %q vs %q", k1, k2)
	}
}

func TestLimiter_DisabledAlwaysAllows(t *testing.T) {
	t.Parallel()
	l, err := New(Config{MaxRPS: 1, Scope: bridge.ScopeGlobal, Enabled: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for range 5 {
		if !l.CheckLimit(bridge.RateLimitContext{}) {
			t.Fatal("disabled limiter should always allow")
		}
	}
}

func TestLimiter_ChecksAgainstScopedBucket(t *testing.T) {
	t.Parallel()
	l, err := New(Config{MaxRPS: 1, Burst: 1, Scope: bridge.ScopeProviderModel, Enabled: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rc := bridge.RateLimitContext{Provider: "openai", Model: "gpt-4"}
	if !l.CheckLimit(rc) {
		t.Fatal("first request in scope should be allowed")
	}
	if l.CheckLimit(rc) {
		t.Fatal("second request in same scope should be denied (burst exhausted)")
	}

	other := bridge.RateLimitContext{Provider: "openai", Model: "gpt-3.5"}
	if !l.CheckLimit(other) {
		t.Error("a different scope key should have its own bucket")
	}
}

func TestLimiter_GetStatus_NoBucketYet(t *testing.T) {
	t.Parallel()
	l, _ := New(Config{MaxRPS: 5, Burst: 9, Scope: bridge.ScopeGlobal, Enabled: true})
	s := l.GetStatus(bridge.RateLimitContext{})
	if s.ScopeKey != "global" {
		t.Errorf("scope key = %q, want global", s.ScopeKey)
	}
	if s.Tokens != 9 {
		t.Errorf("tokens = %v, want configured maximum 9", s.Tokens)
	}
}

func TestLimiter_GetStatus_ScopeKeyStableAcrossEndpoint(t *testing.T) {
	t.Parallel()
	l, _ := New(Config{MaxRPS: 5, Scope: bridge.ScopeProviderModelKey, Enabled: true})
	rc1 := bridge.RateLimitContext{Provider: "a", Model: "m", KeyHash: "k", Endpoint: "/one"}
	rc2 := bridge.RateLimitContext{Provider: "a", Model: "m", KeyHash: "k", Endpoint: "/two"}
	if l.GetStatus(rc1).ScopeKey != l.GetStatus(rc2).ScopeKey {
		t.Error("getStatus scope key must not depend on endpoint")
	}
}

func TestLimiter_UpdateConfig_ExistingBucketsKeepOldParams(t *testing.T) {
	t.Parallel()
	l, _ := New(Config{MaxRPS: 1, Burst: 1, Scope: bridge.ScopeGlobal, Enabled: true})
	rc := bridge.RateLimitContext{}
	l.CheckLimit(rc) // creates the global bucket with burst=1, exhausts it

	newBurst := 100.0
	if err := l.UpdateConfig(ConfigUpdate{Burst: &newBurst}); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}

	// The existing bucket is still exhausted -- it was created under the old config.
	if l.CheckLimit(rc) {
		t.Error("existing bucket should keep running under its original burst until evicted")
	}
}

func TestLimiter_UpdateConfig_RejectsInvalid(t *testing.T) {
	t.Parallel()
	l, _ := New(Config{MaxRPS: 1, Scope: bridge.ScopeGlobal, Enabled: true})
	zero := 0.0
	if err := l.UpdateConfig(ConfigUpdate{MaxRPS: &zero}); err == nil {
		t.Error("maxRps=0 should be rejected")
	}
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	l, _ := New(Config{MaxRPS: 1_000_000, Burst: 1_000_000, Scope: bridge.ScopeProviderModel, Enabled: true})

	var wg sync.WaitGroup
	for i := range 100 {
		rc := bridge.RateLimitContext{Provider: "p", Model: "m"}
		_ = i
		wg.Go(func() {
			l.CheckLimit(rc)
			l.GetStatus(rc)
		})
	}
	wg.Wait()
}

func TestLimiter_New_InvalidConfig(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{MaxRPS: 0}); err == nil {
		t.Error("maxRps<=0 should fail construction")
	}
	if _, err := New(Config{MaxRPS: 10, Burst: 5}); err == nil {
		t.Error("burst < maxRps should fail construction")
	}
}

// TestLimiter_BucketCountBoundedByMaxBuckets is Property 3: past MaxBuckets
// distinct scope keys, live buckets stay capped at MaxBuckets -- the
// otter/W-TinyLFU table only approximates strict LRU (see limiter.go), but
// the size bound itself must hold exactly.
func TestLimiter_BucketCountBoundedByMaxBuckets(t *testing.T) {
	t.Parallel()
	l, err := New(Config{MaxRPS: 1, Burst: 1, Scope: bridge.ScopeProviderModel, Enabled: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const extra = 250
	for i := range MaxBuckets + extra {
		rc := bridge.RateLimitContext{Provider: "p", Model: fmt.Sprintf("m%d", i)}
		l.CheckLimit(rc)
	}

	if got := l.BucketCount(); got > MaxBuckets {
		t.Errorf("BucketCount() = %d, want <= %d", got, MaxBuckets)
	}
}

func BenchmarkLimiter_CheckLimit(b *testing.B) {
	l, _ := New(Config{MaxRPS: 1_000_000, Burst: 1_000_000, Scope: bridge.ScopeProviderModel, Enabled: true})
	rc := bridge.RateLimitContext{Provider: "p", Model: "m"}
	for b.Loop() {
		l.CheckLimit(rc)
	}
}
