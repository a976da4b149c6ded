// Package normalize implements the Error Normalizer (C4): mapping raw
// errors, HTTP responses, and provider error bodies onto the eight-kind
// taxonomy of bridge.ErrorKind.
package normalize

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/llmbridge/transport/internal/bridge"
)

// Input bundles everything Normalize may consult.
type Input struct {
	Err             error
	Response        *bridge.Response
	Provider        string
	ProviderVersion string
}

// Normalize implements the classification precedence of §4.4.
func Normalize(ctx context.Context, in Input) *bridge.BridgeError {
	now := time.Now().UTC()

	// 1. Already a typed error kind -- pass through, merging context.
	var be *bridge.BridgeError
	if errors.As(in.Err, &be) {
		if be.Provider == "" {
			be.Provider = in.Provider
		}
		if be.ProviderVersion == "" {
			be.ProviderVersion = in.ProviderVersion
		}
		if be.Timestamp.IsZero() {
			be.Timestamp = now
		}
		be.Message = Sanitize(be.Message)
		return be
	}

	// 2. Cancellation signal / abort-named error.
	if ctx != nil && ctx.Err() != nil || errors.Is(in.Err, context.Canceled) || errors.Is(in.Err, context.DeadlineExceeded) || isAbortNamed(in.Err) {
		e := bridge.Wrap(bridge.KindTimeout, "Request was aborted", in.Err)
		e.Aborted = true
		e.Provider, e.ProviderVersion, e.Timestamp = in.Provider, in.ProviderVersion, now
		return e
	}

	// 3. Network fault pattern on the error message.
	if in.Err != nil {
		msg := strings.ToLower(in.Err.Error())
		var netErr net.Error
		switch {
		case strings.Contains(msg, "timeout") || strings.Contains(msg, "etimedout") || (errors.As(in.Err, &netErr) && netErr.Timeout()):
			e := bridge.Wrap(bridge.KindTimeout, Sanitize(in.Err.Error()), in.Err)
			e.Provider, e.ProviderVersion, e.Timestamp = in.Provider, in.ProviderVersion, now
			return e
		case strings.Contains(msg, "econnrefused") || strings.Contains(msg, "enotfound") ||
			strings.Contains(msg, "tls") || strings.Contains(msg, "certificate"):
			e := bridge.Wrap(bridge.KindTransport, Sanitize(in.Err.Error()), in.Err)
			e.Provider, e.ProviderVersion, e.Timestamp = in.Provider, in.ProviderVersion, now
			return e
		}
	}

	// 4 & 5. HTTP response-like object: status table, then structured body.
	if in.Response != nil {
		e := fromResponse(in.Response, now, in.Provider, in.ProviderVersion)
		if in.Err != nil && e.Message == "" {
			e.Message = Sanitize(in.Err.Error())
		}
		return e
	}

	// 6. String-shaped error -> Provider.
	if in.Err != nil {
		e := bridge.Wrap(bridge.KindProvider, Sanitize(in.Err.Error()), in.Err)
		e.Provider, e.ProviderVersion, e.Timestamp = in.Provider, in.ProviderVersion, now
		return e
	}

	// 7. Unknown.
	e := bridge.New(bridge.KindProvider, "Unknown provider error")
	e.Provider, e.ProviderVersion, e.Timestamp = in.Provider, in.ProviderVersion, now
	return e
}

func isAbortNamed(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "abort") || strings.Contains(msg, "context canceled")
}

var statusKind = map[int]bridge.ErrorKind{
	400: bridge.KindValidation,
	401: bridge.KindAuth,
	403: bridge.KindAuth,
	404: bridge.KindProvider,
	408: bridge.KindTimeout,
	418: bridge.KindValidation,
	422: bridge.KindValidation,
	429: bridge.KindRateLimit,
	500: bridge.KindProvider,
	502: bridge.KindProvider,
	503: bridge.KindProvider,
	504: bridge.KindProvider,
	529: bridge.KindOverloaded,
}

var providerErrorTypeKind = map[string]bridge.ErrorKind{
	"authentication_error": bridge.KindAuth,
	"permission_error":     bridge.KindAuth,
	"invalid_request_error": bridge.KindValidation,
	"not_found_error":      bridge.KindProvider,
	"rate_limit_error":     bridge.KindRateLimit,
	"overloaded_error":     bridge.KindProvider, // unless status==529, handled below
	"api_error":            bridge.KindProvider,
}

func fromResponse(resp *bridge.Response, now time.Time, provider, providerVersion string) *bridge.BridgeError {
	kind := classifyStatus(resp.StatusCode)

	e := bridge.New(kind, statusText(resp))
	e.Status = resp.StatusCode
	e.StatusText = http.StatusText(resp.StatusCode)
	e.Provider = provider
	e.ProviderVersion = providerVersion
	e.Timestamp = now
	e.Headers = SanitizeHeaders(resp.Headers)

	if resp.StatusCode == 429 || resp.StatusCode == 529 {
		if ra := firstHeader(resp.Headers, "Retry-After"); ra != "" {
			secs, kind := ParseRetryAfter(ra, now)
			e.RetryAfterSeconds = secs
			e.RetryAfterType = kind
		}
	}

	if len(resp.Body) > 0 && gjson.ValidBytes(resp.Body) {
		parsed := gjson.ParseBytes(resp.Body)
		if parsed.Get("type").String() == "error" {
			subtype := parsed.Get("error.type").String()
			msg := parsed.Get("error.message").String()
			if sk, ok := providerErrorTypeKind[subtype]; ok {
				kind = sk
				if subtype == "overloaded_error" && resp.StatusCode == 529 {
					kind = bridge.KindOverloaded
				}
				e.Kind = kind
			}
			e.Subtype = subtype
			if msg != "" {
				e.Message = Sanitize(msg)
			}
			shouldRetry := kind == bridge.KindOverloaded
			e.ShouldRetry = &shouldRetry
		}
	}

	return e
}

func classifyStatus(status int) bridge.ErrorKind {
	if k, ok := statusKind[status]; ok {
		return k
	}
	if status >= 500 {
		return bridge.KindProvider
	}
	return bridge.KindValidation
}

func statusText(resp *bridge.Response) string {
	if resp.StatusText != "" {
		return resp.StatusText
	}
	return http.StatusText(resp.StatusCode)
}

func firstHeader(headers map[string][]string, key string) string {
	for k, vs := range headers {
		if strings.EqualFold(k, key) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}
