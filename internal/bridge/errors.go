package bridge

import (
	"fmt"
	"time"
)

// ErrorKind is the closed variant set every failure normalizes into.
type ErrorKind string

const (
	KindAuth        ErrorKind = "auth"
	KindRateLimit   ErrorKind = "rate_limit"
	KindValidation  ErrorKind = "validation"
	KindTransport   ErrorKind = "transport"
	KindTimeout     ErrorKind = "timeout"
	KindOverloaded  ErrorKind = "overloaded"
	KindProvider    ErrorKind = "provider"
	KindStreaming   ErrorKind = "streaming"
)

// Code returns the external error code for the kind, per the exposed
// contract: AUTH_ERROR, RATE_LIMIT_ERROR, VALIDATION_ERROR, TRANSPORT_ERROR,
// TIMEOUT_ERROR, OVERLOADED_ERROR, PROVIDER_ERROR, STREAMING_ERROR.
func (k ErrorKind) Code() string {
	switch k {
	case KindAuth:
		return "AUTH_ERROR"
	case KindRateLimit:
		return "RATE_LIMIT_ERROR"
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindTransport:
		return "TRANSPORT_ERROR"
	case KindTimeout:
		return "TIMEOUT_ERROR"
	case KindOverloaded:
		return "OVERLOADED_ERROR"
	case KindStreaming:
		return "STREAMING_ERROR"
	default:
		return "PROVIDER_ERROR"
	}
}

// RetryAfterType classifies how a Retry-After value was recognized.
type RetryAfterType string

const (
	RetryAfterSeconds  RetryAfterType = "seconds"
	RetryAfterHTTPDate RetryAfterType = "http-date"
	RetryAfterUnknown  RetryAfterType = "unknown"
)

// BridgeError is the typed error shape the core raises for classified
// failures. Every field beyond Kind and Message is optional context. Two
// other errors also leave the core: the Base transport returns interceptor
// failures as *interceptor.Error without normalizing them, and sse.Parser
// reports the [DONE] sentinel as sse.Done.
type BridgeError struct {
	Kind       ErrorKind
	Message    string
	Cause      error
	Aborted    bool // set when the failure is due to cancellation (Transport or Timeout kind)

	Provider        string
	ProviderVersion string
	Status          int    // HTTP status, 0 if none
	StatusText      string
	Headers         map[string]string // sanitized
	Subtype         string            // provider-specific error subtype, if any

	RetryAfterSeconds int
	RetryAfterType    RetryAfterType

	ShouldRetry *bool // hint for Overloaded

	Timestamp     time.Time
	OriginalError string // raw input's structural name, for debugging only
}

func (e *BridgeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), msg)
}

func (e *BridgeError) Unwrap() error { return e.Cause }

// HTTPStatus reports the originating HTTP status, or 0 if none applies.
// Mirrors the accessor-over-field idiom used for typed provider errors
// elsewhere in the codebase.
func (e *BridgeError) HTTPStatus() int { return e.Status }

// New constructs a BridgeError stamped with the current UTC time.
func New(kind ErrorKind, message string) *BridgeError {
	return &BridgeError{Kind: kind, Message: message, Timestamp: time.Now().UTC()}
}

// Wrap constructs a BridgeError wrapping cause, preserving errors.Is/As
// chains via Unwrap.
func Wrap(kind ErrorKind, message string, cause error) *BridgeError {
	e := New(kind, message)
	e.Cause = cause
	if cause != nil {
		e.OriginalError = fmt.Sprintf("%T", cause)
	}
	return e
}
