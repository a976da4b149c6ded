package normalize

import (
	"net/http"
	"strconv"
	"time"

	"github.com/llmbridge/transport/internal/bridge"
)

// ParseRetryAfter recognizes the forms of §6: a decimal integer (seconds),
// an HTTP-date (RFC 7231 §7.1.1.1; max(0, date-now) seconds), or anything
// else, which yields 0 seconds with type "unknown". The raw header value is
// not returned or stored.
func ParseRetryAfter(value string, now time.Time) (seconds int, kind bridge.RetryAfterType) {
	if value == "" {
		return 0, ""
	}
	if n, err := strconv.Atoi(value); err == nil {
		if n < 0 {
			n = 0
		}
		return n, bridge.RetryAfterSeconds
	}
	if t, err := http.ParseTime(value); err == nil {
		d := t.Sub(now)
		if d < 0 {
			return 0, bridge.RetryAfterHTTPDate
		}
		return int(d.Seconds()), bridge.RetryAfterHTTPDate
	}
	return 0, bridge.RetryAfterUnknown
}
