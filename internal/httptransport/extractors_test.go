package httptransport

import "testing"

func TestExtractProvider(t *testing.T) {
	t.Parallel()
	cases := []struct {
		url  string
		want string
	}{
		{"https://api.anthropic.com/v1/messages", "anthropic"},
		{"https://api.openai.com/v1/chat/completions", "openai"},
		{"https://generativelanguage.googleapis.com/v1/models", "google"},
		{"https://api.x.ai/v1/chat/completions", "xai"},
		{"https://api.example.net/v1/echo", "example"},
		{"not a url at all", "unknown"},
	}
	for _, c := range cases {
		if got := ExtractProvider(c.url); got != c.want {
			t.Errorf("ExtractProvider(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestExtractModel(t *testing.T) {
	t.Parallel()
	if got := ExtractModel([]byte(`{"model":"claude-3-opus","messages":[]}`)); got != "claude-3-opus" {
		t.Errorf("got %q", got)
	}
	if got := ExtractModel([]byte(`not json`)); got != "" {
		t.Errorf("got %q, want empty for non-JSON", got)
	}
	if got := ExtractModel([]byte(`{"model":42}`)); got != "" {
		t.Errorf("got %q, want empty for non-string model", got)
	}
	if got := ExtractModel(nil); got != "" {
		t.Errorf("got %q, want empty for nil body", got)
	}
}

func TestExtractKeyHash(t *testing.T) {
	t.Parallel()
	if got := ExtractKeyHash(map[string][]string{}); got != "anonymous" {
		t.Errorf("got %q, want anonymous", got)
	}
	h := map[string][]string{"authorization": {"Bearer sk-ant-abc123"}}
	got := ExtractKeyHash(h)
	if got == "anonymous" || len(got) != 8 {
		t.Errorf("got %q, want an 8-char hash", got)
	}
	// Case-insensitive header lookup.
	h2 := map[string][]string{"Authorization": {"Bearer sk-ant-abc123"}}
	if got2 := ExtractKeyHash(h2); got2 != got {
		t.Errorf("case-insensitive lookup mismatch: %q vs %q", got2, got)
	}
}
