package normalize

import "regexp"

// SensitiveHeaders is the set of header names redacted from logs, errors,
// and stored context, per §6.
var SensitiveHeaders = map[string]bool{
	"authorization":     true,
	"x-api-key":         true,
	"api-key":           true,
	"x-auth-token":      true,
	"auth-token":        true,
	"anthropic-version": true,
}

const redacted = "[REDACTED]"

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+[a-z0-9._\-]+`),
	regexp.MustCompile(`sk-(?:ant-)?[a-zA-Z0-9_\-]+`),
	regexp.MustCompile(`(?i)(x-api-key|api-key)\s*[:=]\s*[^\s,;]+`),
	regexp.MustCompile(`(?i)authorization\s*:\s*[^\s,;]+(\s+[^\s,;]+)?`),
}

// Sanitize redacts bearer tokens, sk-… style API keys, and
// api-key=/authorization: style header values from a free-form message.
func Sanitize(s string) string {
	for _, p := range secretPatterns {
		s = p.ReplaceAllString(s, redacted)
	}
	return s
}

// SanitizeHeaders returns a copy of headers with every sensitive header
// value replaced by the redaction marker. Header names are preserved
// verbatim (case as given); only values are redacted.
func SanitizeHeaders(headers map[string][]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, vs := range headers {
		if SensitiveHeaders[lower(k)] {
			out[k] = redacted
			continue
		}
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
