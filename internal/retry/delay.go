package retry

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ComputeDelay implements the delay computation of §4.3: the unjittered
// curve, then an optional uniform jitter in [0.5, 1.5) clamped to
// [0, maxDelayMs]. The exponential curve is driven by
// cenkalti/backoff/v5's ExponentialBackOff with randomization disabled
// (our own jitter step applies afterward, driven by the Runtime Adapter so
// tests can make it deterministic).
func ComputeDelay(cfg Config, attempt int, rnd RandomUniform) int64 {
	var delay int64
	switch cfg.Backoff {
	case Linear:
		delay = min(cfg.MaxDelayMs, cfg.BaseDelayMs*int64(attempt+1))
	default: // Exponential
		delay = exponentialDelayMs(cfg, attempt)
	}

	if cfg.Jitter && rnd != nil {
		factor := 0.5 + rnd()
		delay = int64(float64(delay) * factor)
		delay = max(int64(0), min(delay, cfg.MaxDelayMs))
	}
	return delay
}

func exponentialDelayMs(cfg Config, attempt int) int64 {
	bo := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(time.Duration(cfg.BaseDelayMs)*time.Millisecond),
		backoff.WithMaxInterval(time.Duration(cfg.MaxDelayMs)*time.Millisecond),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
	)

	var d time.Duration
	for i := 0; i <= attempt; i++ {
		next := bo.NextBackOff()
		if next == backoff.Stop {
			d = time.Duration(cfg.MaxDelayMs) * time.Millisecond
			break
		}
		d = next
	}
	return min(int64(d/time.Millisecond), cfg.MaxDelayMs)
}
