package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records webhook reconciliation outcomes.
type PaymentMetrics struct {
	notifications *prometheus.CounterVec
	duplicates    prometheus.Counter
	latency       prometheus.Histogram
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_notifications_total",
		Help: "Payment webhook notifications by normalized status.",
	}, []string{"status"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_notifications_duplicate_total",
		Help: "Payment notifications skipped as already processed.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_reconcile_duration_seconds",
		Help:    "Time spent reconciling a payment notification.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(notifications, duplicates, latency)
	return &PaymentMetrics{
		notifications: notifications,
		duplicates:    duplicates,
		latency:       latency,
	}
}

// IncNotification counts a processed notification by status.
func (p *PaymentMetrics) IncNotification(status string) {
	if p == nil || p.notifications == nil {
		return
	}
	p.notifications.WithLabelValues(labelOrUnknown(status)).Inc()
}

// IncDuplicate counts a notification skipped by the idempotency guard.
func (p *PaymentMetrics) IncDuplicate() {
	if p == nil || p.duplicates == nil {
		return
	}
	p.duplicates.Inc()
}

// ObserveReconcile records how long a reconciliation took.
func (p *PaymentMetrics) ObserveReconcile(duration time.Duration) {
	if p == nil || p.latency == nil {
		return
	}
	p.latency.Observe(duration.Seconds())
}
