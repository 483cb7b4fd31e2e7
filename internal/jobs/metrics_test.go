package jobmetrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTrackerOutcomes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	_ = m.Track("inventory:low_stock_scan").End(nil)
	_ = m.Track("inventory:low_stock_scan").End(errors.New("redis down"))
	_ = m.Track("inventory:low_stock_alert").End(fmt.Errorf("bad payload: %w", asynq.SkipRetry))

	if got := testutil.ToFloat64(m.runs.WithLabelValues("inventory:low_stock_scan", StatusSuccess)); got != 1 {
		t.Fatalf("success runs = %v", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues("inventory:low_stock_scan")); got != 1 {
		t.Fatalf("failures = %v", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("inventory:low_stock_alert", StatusSkipped)); got != 1 {
		t.Fatalf("skipped runs = %v", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues("inventory:low_stock_alert")); got != 0 {
		t.Fatalf("skipped run must not count as failure, got %v", got)
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *Metrics
	err := errors.New("x")
	if got := m.Track("job").End(err); got != err {
		t.Fatalf("End must return the original error")
	}
	m.AddLowStock("scan", 3)
}
