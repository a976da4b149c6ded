package ratelimit

import (
	"fmt"

	"github.com/llmbridge/transport/internal/bridge"
)

// Config is the Rate-Limit Config of §3: validated on construction and on
// every update.
type Config struct {
	MaxRPS  float64
	Burst   float64 // 0 defaults to MaxRPS
	Scope   bridge.Scope
	Enabled bool
}

func (c Config) validate() (Config, error) {
	if c.MaxRPS <= 0 {
		return c, fmt.Errorf("ratelimit: maxRps must be > 0, got %v", c.MaxRPS)
	}
	if c.Burst == 0 {
		c.Burst = c.MaxRPS
	}
	if c.Burst < c.MaxRPS {
		return c, fmt.Errorf("ratelimit: burst must be >= maxRps, got burst=%v maxRps=%v", c.Burst, c.MaxRPS)
	}
	switch c.Scope {
	case bridge.ScopeGlobal, bridge.ScopeProvider, bridge.ScopeProviderModel, bridge.ScopeProviderModelKey:
	default:
		return c, fmt.Errorf("ratelimit: unknown scope %q", c.Scope)
	}
	return c, nil
}

// ScopeKey derives the bucket key for rc under scope, a pure function of
// config and context. Missing fields serialize as empty, yielding stable
// keys for partial contexts. Only Provider, Model, and KeyHash contribute;
// Endpoint never does.
func ScopeKey(scope bridge.Scope, rc bridge.RateLimitContext) string {
	switch scope {
	case bridge.ScopeProvider:
		return rc.Provider
	case bridge.ScopeProviderModel:
		return rc.Provider + ":" + rc.Model
	case bridge.ScopeProviderModelKey:
		return rc.Provider + ":" + rc.Model + ":" + rc.KeyHash
	default: // bridge.ScopeGlobal and any unrecognized scope
		return "global"
	}
}
