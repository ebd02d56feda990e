package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records outcome counters and latency for the checkout
// transaction coordinator.
type CheckoutMetrics struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
	retries  prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outcomes_total",
		Help: "Checkout attempts by terminal outcome.",
	}, []string{"outcome"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_transient_retries_total",
		Help: "Checkout transactions retried after a transient lock failure.",
	})
	reg.MustRegister(duration, outcomes, retries)
	return &CheckoutMetrics{
		duration: duration,
		outcomes: outcomes,
		retries:  retries,
	}
}

// Observe records one finished checkout attempt.
func (c *CheckoutMetrics) Observe(outcome string, elapsed time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	label := normalizeLabel(outcome)
	c.duration.WithLabelValues(label).Observe(elapsed.Seconds())
	c.outcomes.WithLabelValues(label).Inc()
}

// IncRetry counts a transient-failure retry.
func (c *CheckoutMetrics) IncRetry() {
	if c == nil || c.retries == nil {
		return
	}
	c.retries.Inc()
}

func normalizeLabel(outcome string) string {
	if outcome == "" {
		return "unknown"
	}
	return outcome
}
