package httptransport

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/llmbridge/transport/internal/bridge"
	"github.com/llmbridge/transport/internal/normalize"
	"github.com/llmbridge/transport/internal/ratelimit"
	"github.com/llmbridge/transport/internal/retry"
	"github.com/llmbridge/transport/internal/telemetry"
)

var _ bridge.Transport = (*Enhanced)(nil)
var _ bridge.Transport = (*Base)(nil)

// Enhanced composes rate-limiting and retry around a Base transport. It
// implements bridge.Transport. Metrics and Tracer are both nilable --
// "pass nil to disable", the teacher's own idiom for optional
// instrumentation.
type Enhanced struct {
	Base    *Base
	Limiter *ratelimit.Limiter
	Retry   retry.Config
	Stats   *retry.Stats
	Adapter bridge.RuntimeAdapter
	Metrics *telemetry.Metrics
	Tracer  trace.Tracer
}

// NewEnhanced wires a Base transport with a rate limiter and retry policy.
func NewEnhanced(base *Base, limiter *ratelimit.Limiter, retryCfg retry.Config) *Enhanced {
	return &Enhanced{
		Base:    base,
		Limiter: limiter,
		Retry:   retryCfg,
		Stats:   &retry.Stats{},
		Adapter: base.Adapter,
	}
}

// checkRateLimits performs the documented one-shot simplification: on
// denial, sleep 1s via the Runtime Adapter and proceed without re-checking
// (Open Question a).
func (e *Enhanced) checkRateLimits(ctx context.Context, req *bridge.Request) error {
	if e.Limiter == nil {
		return nil
	}
	rc := ExtractRateLimitContext(req)
	if e.Limiter.CheckLimit(rc) {
		return nil
	}
	if e.Metrics != nil {
		e.Metrics.RateLimitRejects.WithLabelValues(rc.Provider).Inc()
	}
	return e.Adapter.Sleep(ctx, time.Second)
}

// attemptOp wraps op with one OTel span per retry attempt (§5.3); its
// attempt counter only labels the span. The retry metrics below are derived
// from Stats instead.
func (e *Enhanced) attemptOp(ctx context.Context, op func(ctx context.Context) error) func() error {
	attempt := 0
	return func() error {
		spanCtx, span := telemetry.StartRetryAttemptSpan(ctx, e.Tracer, e.Base.Provider, attempt)
		attempt++
		err := op(spanCtx)
		span.End()
		return err
	}
}

// recordRetryOutcome records this call's contribution to the shared retry
// Stats as Prometheus series: one Add per attempt made, plus exactly one
// success-or-failure increment when at least one retry occurred.
func (e *Enhanced) recordRetryOutcome(err error, attempted retry.Snapshot) {
	if e.Metrics == nil || attempted.TotalAttempts == 0 {
		return
	}
	e.Metrics.RetryAttempts.WithLabelValues(e.Base.Provider).Add(float64(attempted.TotalAttempts))
	if err != nil {
		e.Metrics.RetryFailures.WithLabelValues(e.Base.Provider).Inc()
	} else {
		e.Metrics.RetrySuccesses.WithLabelValues(e.Base.Provider).Inc()
	}
}

// Fetch implements bridge.Transport.
func (e *Enhanced) Fetch(ctx context.Context, req *bridge.Request) (*bridge.Response, error) {
	if err := e.checkRateLimits(ctx, req); err != nil {
		return nil, normalize.Normalize(ctx, normalize.Input{Err: err, Provider: e.Base.Provider, ProviderVersion: e.Base.ProviderVersion})
	}
	before := e.Stats.Snapshot()
	var resp *bridge.Response
	op := e.attemptOp(ctx, func(attemptCtx context.Context) error {
		r, err := e.Base.Fetch(attemptCtx, req)
		resp = r
		return err
	})
	err := retry.Run(ctx, e.Retry, e.Stats, e.Adapter.Sleep, e.Adapter.RandomUniform, e.classify, op)
	e.recordRetryOutcome(err, deltaSnapshot(before, e.Stats.Snapshot()))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Stream implements bridge.Transport. Retry wraps only the establishment of
// the stream; body errors after the stream begins yielding are the
// caller's to handle, unwrapped.
func (e *Enhanced) Stream(ctx context.Context, req *bridge.Request) (*bridge.StreamResponse, error) {
	if err := e.checkRateLimits(ctx, req); err != nil {
		return nil, normalize.Normalize(ctx, normalize.Input{Err: err, Provider: e.Base.Provider, ProviderVersion: e.Base.ProviderVersion})
	}
	before := e.Stats.Snapshot()
	var resp *bridge.StreamResponse
	op := e.attemptOp(ctx, func(attemptCtx context.Context) error {
		r, err := e.Base.Stream(attemptCtx, req)
		resp = r
		return err
	})
	err := retry.Run(ctx, e.Retry, e.Stats, e.Adapter.Sleep, e.Adapter.RandomUniform, e.classify, op)
	e.recordRetryOutcome(err, deltaSnapshot(before, e.Stats.Snapshot()))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// deltaSnapshot isolates the attempts this single Fetch/Stream call
// contributed, since Stats is shared and cumulative across the Enhanced
// transport's lifetime.
func deltaSnapshot(before, after retry.Snapshot) retry.Snapshot {
	return retry.Snapshot{
		TotalAttempts:     after.TotalAttempts - before.TotalAttempts,
		SuccessfulRetries: after.SuccessfulRetries - before.SuccessfulRetries,
		FailedRetries:     after.FailedRetries - before.FailedRetries,
	}
}

// classify normalizes a wrapped-operation error and surfaces a
// Response-shaped status, if any, for the policy's non-retryable-status
// check.
func (e *Enhanced) classify(ctx context.Context, err error) (*bridge.BridgeError, *bridge.Response) {
	be := normalize.Normalize(ctx, normalize.Input{Err: err, Provider: e.Base.Provider, ProviderVersion: e.Base.ProviderVersion})
	var resp *bridge.Response
	if be.Status != 0 {
		resp = &bridge.Response{StatusCode: be.Status, StatusText: be.StatusText}
	}
	return be, resp
}
