package retry

import (
	"context"
	"time"

	"github.com/llmbridge/transport/internal/bridge"
)

// Classifier normalizes an error from the wrapped operation into a
// BridgeError, optionally surfacing a Response-shaped status for the
// policy's non-retryable-status check.
type Classifier func(ctx context.Context, err error) (be *bridge.BridgeError, resp *bridge.Response)

// Sleeper is the interruptible delay primitive the loop suspends on.
type Sleeper func(ctx context.Context, d time.Duration) error

// Run implements the execution loop of §4.3: attempt the operation, and on
// failure, normalize, consult Decide, sleep on a retry, and track stats.
// Op returning nil is success; Run returns the final error otherwise.
func Run(ctx context.Context, cfg Config, stats *Stats, sleep Sleeper, rnd RandomUniform, classify Classifier, op func() error) error {
	var lastErr error
	retried := false

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return abortedTransport(err)
		}

		err := op()
		if err == nil {
			if retried {
				stats.recordSuccessAfterRetry()
			}
			return nil
		}

		be, resp := classify(ctx, err)
		lastErr = be

		decision := Decide(ctx, cfg, DecisionInput{Attempt: attempt, Err: be, Response: resp}, rnd)
		if !decision.Retry {
			if attempt > 0 {
				stats.recordFailedRetry()
			}
			return lastErr
		}

		stats.recordAttempt()
		retried = true
		if decision.DelayMs > 0 {
			stats.recordDelay(decision.DelayMs)
			if serr := sleep(ctx, time.Duration(decision.DelayMs)*time.Millisecond); serr != nil {
				return abortedTransport(serr)
			}
		}
	}
}

func abortedTransport(cause error) *bridge.BridgeError {
	e := bridge.Wrap(bridge.KindTransport, "Request was aborted", cause)
	e.Aborted = true
	return e
}
