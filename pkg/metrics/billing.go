package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics records the billing and metering hot paths.
type BillingMetrics struct {
	orderDuration *prometheus.HistogramVec
	verifications *prometheus.CounterVec
	activations   *prometheus.CounterVec
	quotaChecks   *prometheus.CounterVec
}

// NewBillingMetrics registers the billing metrics on the provided registerer.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	orderDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_order_duration_seconds",
		Help:    "Duration of gateway order creation in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"plan"})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications_total",
		Help: "Payment signature verifications by result.",
	}, []string{"result"})
	activations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_activations_total",
		Help: "Subscription activation attempts by result.",
	}, []string{"result"})
	quotaChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quota_checks_total",
		Help: "Quota gate decisions by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(orderDuration, verifications, activations, quotaChecks)
	return &BillingMetrics{
		orderDuration: orderDuration,
		verifications: verifications,
		activations:   activations,
		quotaChecks:   quotaChecks,
	}
}

// ObserveOrderDuration records how long a gateway order creation took.
func (b *BillingMetrics) ObserveOrderDuration(plan string, duration time.Duration) {
	if b == nil || b.orderDuration == nil {
		return
	}
	b.orderDuration.WithLabelValues(normalizeLabel(plan)).Observe(duration.Seconds())
}

// IncVerification counts one signature verification with the given result.
func (b *BillingMetrics) IncVerification(result string) {
	if b == nil || b.verifications == nil {
		return
	}
	b.verifications.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncActivation counts one activation attempt with the given result.
func (b *BillingMetrics) IncActivation(result string) {
	if b == nil || b.activations == nil {
		return
	}
	b.activations.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncQuotaCheck counts one quota gate decision.
func (b *BillingMetrics) IncQuotaCheck(outcome string) {
	if b == nil || b.quotaChecks == nil {
		return
	}
	b.quotaChecks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
