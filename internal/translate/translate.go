// Package translate defines the external interface contracts for provider
// adapters (C10): translating a domain request into wire bytes, and parsing
// wire bytes back into a domain response. The core depends only on these
// interfaces -- no concrete provider lives in this module.
package translate

import (
	"io"

	"github.com/llmbridge/transport/internal/bridge"
)

// RequestTranslator produces an HTTP request from a domain request and a
// provider-specific config. Implementations must produce an absolute URL, a
// valid method, a JSON or byte body, and headers carrying the
// authentication credential. Unsupported content shapes are rejected with a
// Validation BridgeError.
type RequestTranslator interface {
	Translate(domainRequest any, config any) (*bridge.Request, error)
}

// ResponseParser turns a completed HTTP response into a domain response.
// Streaming responses are not parsed here; callers consume the body through
// internal/sse and internal/delta instead.
type ResponseParser interface {
	Parse(resp *bridge.Response, rawBody []byte) (domainResponse any, err error)
}

// StreamConsumer describes how a provider's streaming body is expected to
// be read: a raw byte stream framed by internal/sse and mapped by
// internal/delta. It exists purely as a documented contract; no provider
// implementation lives in this module.
type StreamConsumer interface {
	ConsumeStream(body io.Reader) (deltas <-chan *bridge.StreamDelta, errs <-chan error)
}
