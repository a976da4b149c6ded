package httptransport

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/llmbridge/transport/internal/bridge"
)

// providerSuffixes maps hostname suffixes onto canonical provider names.
var providerSuffixes = []struct {
	suffix   string
	provider string
}{
	{"anthropic.com", "anthropic"},
	{"openai.com", "openai"},
	{"googleapis.com", "google"},
	{"x.ai", "xai"},
}

// ExtractProvider maps a request URL's hostname onto a canonical provider
// name by suffix match, falling back to the second-level domain, or
// "unknown" if the URL cannot be parsed.
func ExtractProvider(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	host := strings.ToLower(u.Hostname())
	for _, s := range providerSuffixes {
		if host == s.suffix || strings.HasSuffix(host, "."+s.suffix) {
			return s.provider
		}
	}
	return secondLevelDomain(host)
}

func secondLevelDomain(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return host
	}
	return labels[len(labels)-2]
}

// ExtractModel reads the "model" string field from a JSON request body, if
// present. Non-JSON or non-string bodies yield "".
func ExtractModel(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	v := gjson.GetBytes(body, "model")
	if v.Type != gjson.String {
		return ""
	}
	return v.String()
}

// ExtractKeyHash derives a rate-limit bucket discriminator from the
// Authorization header: split on the first whitespace to drop the scheme,
// base64-encode the remaining token, lowercase, and truncate to 8
// characters. Absent header yields "anonymous".
func ExtractKeyHash(headers map[string][]string) string {
	var raw string
	for k, v := range headers {
		if strings.EqualFold(k, "Authorization") && len(v) > 0 {
			raw = v[0]
			break
		}
	}
	if raw == "" {
		return "anonymous"
	}
	token := raw
	if idx := strings.IndexAny(raw, " \t"); idx >= 0 {
		token = raw[idx+1:]
	}
	if token == "" {
		return "anonymous"
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(token))
	encoded = strings.ToLower(encoded)
	if len(encoded) > 8 {
		encoded = encoded[:8]
	}
	return encoded
}

// ExtractRateLimitContext gathers the Rate-Limit Context for a request.
func ExtractRateLimitContext(req *bridge.Request) bridge.RateLimitContext {
	return bridge.RateLimitContext{
		Provider: ExtractProvider(req.URL),
		Model:    ExtractModel(req.Body),
		KeyHash:  ExtractKeyHash(req.Headers),
		Endpoint: req.URL,
	}
}
