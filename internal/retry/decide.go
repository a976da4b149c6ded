package retry

import (
	"context"

	"github.com/llmbridge/transport/internal/bridge"
)

// DecisionInput is the Retry Context of §3, narrowed to what a Decide call
// needs: the already-normalized error for this attempt, and the response
// that produced it (if any).
type DecisionInput struct {
	Attempt  int
	Err      *bridge.BridgeError
	Response *bridge.Response
}

// Decision is the outcome of Decide: whether to retry, and if so, after
// how long.
type Decision struct {
	Retry   bool
	DelayMs int64
}

// RandomUniform returns a uniform random value in [0,1), used for jitter.
// Supplied by the Runtime Adapter so tests can make jitter deterministic.
type RandomUniform func() float64

// Decide implements the classification precedence of §4.3.
func Decide(ctx context.Context, cfg Config, in DecisionInput, rnd RandomUniform) Decision {
	if ctx.Err() != nil {
		return Decision{Retry: false}
	}
	if in.Attempt >= cfg.Attempts {
		return Decision{Retry: false}
	}
	if in.Response != nil && !cfg.IsRetryableStatus(in.Response.StatusCode) {
		return Decision{Retry: false}
	}

	if in.Err == nil {
		return Decision{Retry: false}
	}

	switch in.Err.Kind {
	case bridge.KindValidation, bridge.KindAuth:
		return Decision{Retry: false}
	case bridge.KindTimeout, bridge.KindTransport, bridge.KindRateLimit, bridge.KindOverloaded, bridge.KindProvider:
		delay := ComputeDelay(cfg, in.Attempt, rnd)
		if in.Err.RetryAfterSeconds > 0 {
			delay = min(int64(in.Err.RetryAfterSeconds)*1000, cfg.MaxDelayMs)
		}
		return Decision{Retry: true, DelayMs: delay}
	default:
		return Decision{Retry: false}
	}
}
