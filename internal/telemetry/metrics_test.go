package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg, func() float64 { return 3 })

	if m.RateLimitRejects == nil {
		t.Error("RateLimitRejects is nil")
	}
	if m.RateLimitBuckets == nil {
		t.Error("RateLimitBuckets is nil")
	}
	if m.RetryAttempts == nil {
		t.Error("RetryAttempts is nil")
	}
	if m.RetrySuccesses == nil {
		t.Error("RetrySuccesses is nil")
	}
	if m.RetryFailures == nil {
		t.Error("RetryFailures is nil")
	}
	if m.InterceptorErrors == nil {
		t.Error("InterceptorErrors is nil")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected at least one metric family")
	}
}

func TestNewMetrics_NilBucketCountDefaultsToZero(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	NewMetrics(reg, nil)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "llmbridge_transport_ratelimit_buckets" {
			found = true
			if got := f.GetMetric()[0].GetGauge().GetValue(); got != 0 {
				t.Errorf("bucket gauge = %v, want 0", got)
			}
		}
	}
	if !found {
		t.Error("missing llmbridge_transport_ratelimit_buckets family")
	}
}

func TestNewMetricsIncrement(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg, func() float64 { return 1 })

	m.RateLimitRejects.WithLabelValues("provider").Inc()
	m.RetryAttempts.WithLabelValues("anthropic").Inc()
	m.RetrySuccesses.WithLabelValues("anthropic").Inc()
	m.RetryFailures.WithLabelValues("anthropic").Inc()
	m.InterceptorErrors.WithLabelValues("request").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather after increment: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	want := []string{
		"llmbridge_transport_ratelimit_rejects_total",
		"llmbridge_transport_ratelimit_buckets",
		"llmbridge_transport_retry_attempts_total",
		"llmbridge_transport_retry_successes_total",
		"llmbridge_transport_retry_failures_total",
		"llmbridge_transport_interceptor_errors_total",
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("missing metric %q in gathered families", name)
		}
	}
}

// SetupTracing is not unit-tested because it requires a gRPC connection to
// an OTLP collector, which is integration-test territory.
