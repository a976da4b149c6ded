// Package runtime provides concrete bridge.RuntimeAdapter implementations:
// a real adapter backed by net/http with DNS caching, and a fake adapter
// with virtual time and scripted responses for deterministic tests.
package runtime

import (
	"context"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/rs/dnscache"

	"github.com/llmbridge/transport/internal/bridge"
)

// NewTransport returns a tuned *http.Transport with connection pooling and
// optional DNS caching, mirroring the pooling parameters used for
// remote HTTPS provider APIs.
func NewTransport(resolver *dnscache.Resolver) *http.Transport {
	t := &http.Transport{
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     200,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if resolver != nil {
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		}
	}
	return t
}

// Real is the production bridge.RuntimeAdapter: real wall-clock time, real
// I/O over a pooled, DNS-cached *http.Client.
type Real struct {
	client   *http.Client
	resolver *dnscache.Resolver
}

// NewReal builds a Real adapter. A background DNS refresh loop is
// deliberately not started here -- Real has no Close method and there is no
// ticker to leak, matching the timer-free design the core requires.
func NewReal() *Real {
	resolver := &dnscache.Resolver{}
	return &Real{
		client:   &http.Client{Transport: NewTransport(resolver)},
		resolver: resolver,
	}
}

func (r *Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Real) Now() time.Time { return time.Now() }

func (r *Real) RandomUniform() float64 { return rand.Float64() }

func (r *Real) Fetch(ctx context.Context, req *bridge.Request) (*bridge.Response, error) {
	httpReq, err := toHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	return fromHTTPResponse(resp)
}

func (r *Real) Stream(ctx context.Context, req *bridge.Request) (*bridge.StreamResponse, error) {
	httpReq, err := toHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	return &bridge.StreamResponse{
		StatusCode: resp.StatusCode,
		StatusText: resp.Status,
		Headers:    resp.Header,
		Body:       resp.Body,
	}, nil
}
