// Package requestid threads a per-request correlation id through context,
// mirroring the teacher's gateway.ContextWithRequestID/RequestIDFromContext
// pair. It carries no behavior of its own: debug logs and trace spans read
// it for correlation, nothing more.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// New mints a fresh request id (UUIDv7, time-ordered for log sorting).
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}

// WithContext returns a context carrying id, replacing any prior value.
func WithContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the request id, or "" if none was set.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// EnsureContext returns ctx unchanged if it already carries a request id,
// otherwise returns a context carrying a freshly minted one plus that id.
func EnsureContext(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := New()
	return WithContext(ctx, id), id
}
