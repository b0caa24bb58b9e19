package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPaymentMetricsExports(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPaymentMetrics(reg)
	metrics.IncNotification("approved")
	metrics.IncNotification("approved")
	metrics.IncNotification("rejected")
	metrics.IncDuplicate()
	metrics.ObserveReconcile(50 * time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "payment_notifications_total", "status", "approved"); err != nil {
		t.Fatalf("fetch approved: %v", err)
	} else if got != 2 {
		t.Fatalf("expected approved=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "payment_notifications_total", "status", "rejected"); err != nil {
		t.Fatalf("fetch rejected: %v", err)
	} else if got != 1 {
		t.Fatalf("expected rejected=1, got %f", got)
	}

	dup := findMetricFamily(mfs, "payment_notifications_duplicate_total")
	if dup == nil {
		t.Fatal("duplicate counter not exported")
	}
	if got := dup.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected duplicates=1, got %f", got)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
