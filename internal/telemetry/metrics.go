// Package telemetry provides observability primitives for the transport
// core: Prometheus metrics and OTel tracing, both optional -- pass nil to
// disable, the same idiom the teacher's ProxyService uses for a nilable
// tracer.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for rate-limit, retry, and
// interceptor behavior (§5.3: "rate-limit rejects, retry
// attempts/successes/failures, live bucket count, interceptor errors").
type Metrics struct {
	RateLimitRejects  *prometheus.CounterVec
	RateLimitBuckets  prometheus.GaugeFunc
	RetryAttempts     *prometheus.CounterVec
	RetrySuccesses    *prometheus.CounterVec
	RetryFailures     *prometheus.CounterVec
	InterceptorErrors *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors with reg. bucketCount, if
// non-nil, backs a gauge sampling the live rate-limit bucket count on every
// scrape (otter's Cache.EstimatedSize is push-free, so a GaugeFunc avoids a
// background updater goroutine).
func NewMetrics(reg prometheus.Registerer, bucketCount func() float64) *Metrics {
	if bucketCount == nil {
		bucketCount = func() float64 { return 0 }
	}

	m := &Metrics{
		RateLimitRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmbridge_transport",
			Name:      "ratelimit_rejects_total",
			Help:      "Total requests delayed by the Enhanced Transport's rate limiter.",
		}, []string{"scope"}),

		RateLimitBuckets: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "llmbridge_transport",
			Name:      "ratelimit_buckets",
			Help:      "Live token bucket count held by the rate limiter.",
		}, bucketCount),

		RetryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmbridge_transport",
			Name:      "retry_attempts_total",
			Help:      "Total retry attempts issued by the Enhanced Transport.",
		}, []string{"provider"}),

		RetrySuccesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmbridge_transport",
			Name:      "retry_successes_total",
			Help:      "Total requests that ultimately succeeded after at least one retry.",
		}, []string{"provider"}),

		RetryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmbridge_transport",
			Name:      "retry_failures_total",
			Help:      "Total requests that exhausted their retry budget without success.",
		}, []string{"provider"}),

		InterceptorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmbridge_transport",
			Name:      "interceptor_errors_total",
			Help:      "Total interceptor invocations that returned an error.",
		}, []string{"phase"}),
	}

	reg.MustRegister(
		m.RateLimitRejects,
		m.RateLimitBuckets,
		m.RetryAttempts,
		m.RetrySuccesses,
		m.RetryFailures,
		m.InterceptorErrors,
	)

	return m
}
