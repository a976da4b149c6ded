// Package retry implements the retry decision engine and delay computation
// that Enhanced Transport wraps around a single attempt of the Base
// Transport.
package retry

import "fmt"

// BackoffMode selects the delay curve.
type BackoffMode string

const (
	Exponential BackoffMode = "exponential"
	Linear      BackoffMode = "linear"
)

// Config is the Retry Config of §3.
type Config struct {
	Attempts             int // max additional tries; 0 = no retry
	Backoff              BackoffMode
	BaseDelayMs          int64
	MaxDelayMs           int64
	Jitter               bool
	RetryableStatusCodes map[int]bool
}

func (c Config) validate() error {
	if c.Attempts < 0 {
		return fmt.Errorf("retry: attempts must be >= 0, got %d", c.Attempts)
	}
	if c.Backoff != Exponential && c.Backoff != Linear {
		return fmt.Errorf("retry: unknown backoff mode %q", c.Backoff)
	}
	if c.BaseDelayMs < 0 || c.MaxDelayMs < 0 {
		return fmt.Errorf("retry: delays must be >= 0")
	}
	if c.MaxDelayMs < c.BaseDelayMs {
		return fmt.Errorf("retry: maxDelayMs must be >= baseDelayMs")
	}
	return nil
}

// IsRetryableStatus reports whether status is in the configured retryable
// set. An empty/nil set means no status is retryable by default.
func (c Config) IsRetryableStatus(status int) bool {
	return c.RetryableStatusCodes[status]
}

// New validates cfg and returns it, or an error on invalid construction.
func New(cfg Config) (Config, error) {
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
