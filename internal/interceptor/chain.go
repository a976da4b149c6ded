// Package interceptor implements the Interceptor Chain (C7): priority-ordered
// request and response hooks around a fetch.
package interceptor

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/trace"

	"github.com/llmbridge/transport/internal/bridge"
	"github.com/llmbridge/transport/internal/telemetry"
)

// Phase classifies where in the chain an InterceptorError originated.
type Phase string

const (
	PhaseRequest  Phase = "request"
	PhaseResponse Phase = "response"
)

// Error wraps an interceptor's failure with its position in the chain.
type Error struct {
	Phase Phase
	Index int
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("interceptor: %s phase, index %d: %v", e.Phase, e.Index, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type requestEntry struct {
	fn       bridge.RequestInterceptor
	priority int
	seq      int
}

type responseEntry struct {
	fn       bridge.ResponseInterceptor
	priority int
	seq      int
}

// Chain holds registered interceptors. Entries are immutable after Add; no
// locking is needed during execution, matching the shared-mutable-state
// discipline for this component. Metrics and Tracer are both nilable --
// pass nil to disable instrumentation.
type Chain struct {
	requests  []requestEntry
	responses []responseEntry
	nextSeq   int

	Metrics *telemetry.Metrics
	Tracer  trace.Tracer
}

// New returns an empty chain.
func New() *Chain {
	return &Chain{}
}

// AddRequest registers a request interceptor at the given priority. Higher
// priorities run first; ties break by registration order.
func (c *Chain) AddRequest(priority int, fn bridge.RequestInterceptor) {
	c.requests = append(c.requests, requestEntry{fn: fn, priority: priority, seq: c.nextSeq})
	c.nextSeq++
}

// AddResponse registers a response interceptor at the given priority. Lower
// priorities run first (the mirror of request order); ties break by
// reverse registration order.
func (c *Chain) AddResponse(priority int, fn bridge.ResponseInterceptor) {
	c.responses = append(c.responses, responseEntry{fn: fn, priority: priority, seq: c.nextSeq})
	c.nextSeq++
}

// Clear removes every registered interceptor.
func (c *Chain) Clear() {
	c.requests = nil
	c.responses = nil
	c.nextSeq = 0
}

// Counts reports how many request and response interceptors are registered.
func (c *Chain) Counts() (requests, responses int) {
	return len(c.requests), len(c.responses)
}

// ExecuteRequest runs every request interceptor in descending-priority order
// (registration order breaks ties), handing each call a fresh clone so a
// failed or cancelled invocation never leaks a partial mutation of the
// context's Metadata map. The clone is shallow: Request and Response are
// shared pointers, so mutations made through them are not rolled back.
func (c *Chain) ExecuteRequest(ctx context.Context, ic *bridge.InterceptorContext) (*bridge.InterceptorContext, error) {
	spanCtx, span := telemetry.StartInterceptorSpan(ctx, c.Tracer, string(PhaseRequest))
	defer span.End()

	ordered := append([]requestEntry(nil), c.requests...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].priority != ordered[j].priority {
			return ordered[i].priority > ordered[j].priority
		}
		return ordered[i].seq < ordered[j].seq
	})

	cur := ic.Clone()
	for i, e := range ordered {
		if err := spanCtx.Err(); err != nil {
			return nil, &Error{Phase: PhaseRequest, Index: i, Err: err}
		}
		next, err := e.fn(spanCtx, cur.Clone())
		if err != nil {
			c.recordError(PhaseRequest)
			return nil, &Error{Phase: PhaseRequest, Index: i, Err: err}
		}
		if next == nil {
			return nil, &Error{Phase: PhaseRequest, Index: i, Err: fmt.Errorf("interceptor returned nil context")}
		}
		cur = next
		if err := spanCtx.Err(); err != nil {
			return nil, &Error{Phase: PhaseRequest, Index: i, Err: err}
		}
	}
	return cur, nil
}

// ExecuteResponse runs every response interceptor in ascending-priority
// order (the mirror of request order), breaking ties by reverse
// registration order so a request/response pair registered together wraps
// correctly, with the same clone-and-cancellation discipline as
// ExecuteRequest. The context must already carry a response.
func (c *Chain) ExecuteResponse(ctx context.Context, ic *bridge.InterceptorContext) (*bridge.InterceptorContext, error) {
	if ic.Response == nil {
		return nil, &Error{Phase: PhaseResponse, Index: -1, Err: fmt.Errorf("response phase requires a non-nil Response")}
	}

	spanCtx, span := telemetry.StartInterceptorSpan(ctx, c.Tracer, string(PhaseResponse))
	defer span.End()

	ordered := append([]responseEntry(nil), c.responses...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].priority != ordered[j].priority {
			return ordered[i].priority < ordered[j].priority
		}
		return ordered[i].seq > ordered[j].seq
	})

	cur := ic.Clone()
	for i, e := range ordered {
		if err := spanCtx.Err(); err != nil {
			return nil, &Error{Phase: PhaseResponse, Index: i, Err: err}
		}
		next, err := e.fn(spanCtx, cur.Clone())
		if err != nil {
			c.recordError(PhaseResponse)
			return nil, &Error{Phase: PhaseResponse, Index: i, Err: err}
		}
		if next == nil {
			return nil, &Error{Phase: PhaseResponse, Index: i, Err: fmt.Errorf("interceptor returned nil context")}
		}
		cur = next
		if err := spanCtx.Err(); err != nil {
			return nil, &Error{Phase: PhaseResponse, Index: i, Err: err}
		}
	}
	return cur, nil
}

// recordError increments the per-phase interceptor error counter, if
// metrics are enabled.
func (c *Chain) recordError(phase Phase) {
	if c.Metrics != nil {
		c.Metrics.InterceptorErrors.WithLabelValues(string(phase)).Inc()
	}
}
