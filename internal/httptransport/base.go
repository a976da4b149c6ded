// Package httptransport implements the Base HTTP Transport (C8) and the
// Enhanced Transport (C9): rate-limiting and retry composed around it.
package httptransport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/llmbridge/transport/internal/bridge"
	"github.com/llmbridge/transport/internal/interceptor"
	"github.com/llmbridge/transport/internal/normalize"
	"github.com/llmbridge/transport/internal/requestid"
)

// Base builds a Context, runs request interceptors, performs the call via
// the Runtime Adapter, converts the response (lowercased header keys), runs
// response interceptors, and returns. It implements bridge.Transport.
type Base struct {
	Adapter         bridge.RuntimeAdapter
	Chain           *interceptor.Chain
	Provider        string
	ProviderVersion string
	Logger          *slog.Logger
}

// NewBase constructs a Base transport. A nil logger falls back to slog's
// default handler.
func NewBase(adapter bridge.RuntimeAdapter, chain *interceptor.Chain, provider, providerVersion string, logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.Default()
	}
	if chain == nil {
		chain = interceptor.New()
	}
	return &Base{Adapter: adapter, Chain: chain, Provider: provider, ProviderVersion: providerVersion, Logger: logger}
}

func abortedError(provider, providerVersion string, now time.Time) *bridge.BridgeError {
	e := bridge.New(bridge.KindTransport, "Request was aborted")
	e.Aborted = true
	e.Provider = provider
	e.ProviderVersion = providerVersion
	e.Timestamp = now
	return e
}

// Fetch performs one non-streaming request/response cycle.
func (b *Base) Fetch(ctx context.Context, req *bridge.Request) (*bridge.Response, error) {
	ctx, rid := requestid.EnsureContext(ctx)
	now := b.Adapter.Now()
	if err := ctx.Err(); err != nil {
		return nil, abortedError(b.Provider, b.ProviderVersion, now)
	}

	ic := &bridge.InterceptorContext{Request: req, Metadata: map[string]any{}}
	ic, err := b.Chain.ExecuteRequest(ctx, ic)
	if err != nil {
		return nil, err
	}

	b.logRequestStart(rid, ic.Request)
	resp, err := b.Adapter.Fetch(ctx, ic.Request)
	if err != nil {
		be := normalize.Normalize(ctx, normalize.Input{Err: err, Provider: b.Provider, ProviderVersion: b.ProviderVersion})
		b.logError(rid, be)
		return nil, be
	}
	lowercaseHeaders(resp.Headers)

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		be := normalize.Normalize(ctx, normalize.Input{Response: resp, Provider: b.Provider, ProviderVersion: b.ProviderVersion})
		b.logError(rid, be)
		return nil, be
	}

	ic.Response = resp
	ic, err = b.Chain.ExecuteResponse(ctx, ic)
	if err != nil {
		return nil, err
	}
	b.logRequestEnd(rid, ic.Response)
	return ic.Response, nil
}

// Stream performs the request and returns the body unconsumed; parsing it
// into deltas is a higher-layer concern (internal/delta).
func (b *Base) Stream(ctx context.Context, req *bridge.Request) (*bridge.StreamResponse, error) {
	ctx, rid := requestid.EnsureContext(ctx)
	now := b.Adapter.Now()
	if err := ctx.Err(); err != nil {
		return nil, abortedError(b.Provider, b.ProviderVersion, now)
	}

	ic := &bridge.InterceptorContext{Request: req, Metadata: map[string]any{}}
	ic, err := b.Chain.ExecuteRequest(ctx, ic)
	if err != nil {
		return nil, err
	}

	b.logRequestStart(rid, ic.Request)
	resp, err := b.Adapter.Stream(ctx, ic.Request)
	if err != nil {
		be := normalize.Normalize(ctx, normalize.Input{Err: err, Provider: b.Provider, ProviderVersion: b.ProviderVersion})
		b.logError(rid, be)
		return nil, be
	}
	lowercaseHeaders(resp.Headers)

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		if resp.Body != nil {
			resp.Body.Close()
		}
		e := bridge.New(bridge.KindTransport, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.StatusText))
		e.Status = resp.StatusCode
		e.StatusText = resp.StatusText
		e.Provider = b.Provider
		e.ProviderVersion = b.ProviderVersion
		e.Timestamp = now
		b.logError(rid, e)
		return nil, e
	}

	b.logRequestEnd(rid, &bridge.Response{StatusCode: resp.StatusCode, StatusText: resp.StatusText, Headers: resp.Headers})
	return resp, nil
}

func lowercaseHeaders(h map[string][]string) {
	if h == nil {
		return
	}
	for k, v := range h {
		lk := strings.ToLower(k)
		if lk != k {
			delete(h, k)
			h[lk] = v
		}
	}
}

func (b *Base) logRequestStart(requestID string, req *bridge.Request) {
	if req == nil {
		return
	}
	b.Logger.Debug("transport request start",
		"request_id", requestID,
		"method", req.Method,
		"url", req.URL,
		"headers", normalize.SanitizeHeaders(req.Headers),
	)
}

func (b *Base) logRequestEnd(requestID string, resp *bridge.Response) {
	if resp == nil {
		return
	}
	b.Logger.Debug("transport request end",
		"request_id", requestID,
		"status", resp.StatusCode,
		"headers", normalize.SanitizeHeaders(resp.Headers),
	)
}

func (b *Base) logError(requestID string, err *bridge.BridgeError) {
	b.Logger.Debug("transport request error",
		"request_id", requestID,
		"kind", err.Kind,
		"message", err.Message,
		"status", err.Status,
	)
}
