// Package config provides an optional YAML loader for the Rate-Limit and
// Retry configuration surfaces (§3), for deployments that prefer file-based
// config over constructing ratelimit.Config/retry.Config programmatically.
package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/llmbridge/transport/internal/bridge"
	"github.com/llmbridge/transport/internal/ratelimit"
	"github.com/llmbridge/transport/internal/retry"
)

// Config is the file-based configuration surface: exactly the two
// validated-on-construction configs the core exposes externally.
type Config struct {
	RateLimit RateLimitEntry `yaml:"rate_limit"`
	Retry     RetryEntry     `yaml:"retry"`
}

// RateLimitEntry mirrors ratelimit.Config in YAML-friendly form.
type RateLimitEntry struct {
	MaxRPS  float64 `yaml:"max_rps"`
	Burst   float64 `yaml:"burst"`
	Scope   string  `yaml:"scope"` // "global", "provider", "provider:model", "provider:model:key"
	Enabled bool    `yaml:"enabled"`
}

// RetryEntry mirrors retry.Config in YAML-friendly form.
type RetryEntry struct {
	Attempts             int    `yaml:"attempts"`
	Backoff              string `yaml:"backoff"` // "exponential" or "linear"
	BaseDelayMs          int64  `yaml:"base_delay_ms"`
	MaxDelayMs           int64  `yaml:"max_delay_ms"`
	Jitter               bool   `yaml:"jitter"`
	RetryableStatusCodes []int  `yaml:"retryable_status_codes"`
}

// defaults mirror the conservative posture a fresh deployment should start
// from: limiting disabled, retry attempts at zero (no retry) until the
// operator opts in.
func defaultConfig() Config {
	return Config{
		RateLimit: RateLimitEntry{
			MaxRPS:  10,
			Burst:   10,
			Scope:   string(bridge.ScopeProvider),
			Enabled: false,
		},
		Retry: RetryEntry{
			Attempts:    0,
			Backoff:     string(retry.Exponential),
			BaseDelayMs: 100,
			MaxDelayMs:  1000,
			Jitter:      false,
		},
	}
}

// Load reads and parses a YAML config file into validated ratelimit.Config
// and retry.Config values.
func Load(path string) (ratelimit.Config, retry.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ratelimit.Config{}, retry.Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ratelimit.Config{}, retry.Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	rlCfg := ratelimit.Config{
		MaxRPS:  cfg.RateLimit.MaxRPS,
		Burst:   cfg.RateLimit.Burst,
		Scope:   bridge.Scope(cfg.RateLimit.Scope),
		Enabled: cfg.RateLimit.Enabled,
	}
	// Validate eagerly so a malformed file fails at Load rather than at
	// first use in a Limiter the caller constructs later.
	if _, err := ratelimit.New(rlCfg); err != nil {
		return ratelimit.Config{}, retry.Config{}, fmt.Errorf("config: rate_limit: %w", err)
	}
	if rlCfg.Burst == 0 {
		rlCfg.Burst = rlCfg.MaxRPS
	}

	retryableSet := make(map[int]bool, len(cfg.Retry.RetryableStatusCodes))
	for _, code := range cfg.Retry.RetryableStatusCodes {
		retryableSet[code] = true
	}
	rt, err := retry.New(retry.Config{
		Attempts:             cfg.Retry.Attempts,
		Backoff:              retry.BackoffMode(cfg.Retry.Backoff),
		BaseDelayMs:          cfg.Retry.BaseDelayMs,
		MaxDelayMs:           cfg.Retry.MaxDelayMs,
		Jitter:               cfg.Retry.Jitter,
		RetryableStatusCodes: retryableSet,
	})
	if err != nil {
		return ratelimit.Config{}, retry.Config{}, fmt.Errorf("config: retry: %w", err)
	}

	return rlCfg, rt, nil
}
