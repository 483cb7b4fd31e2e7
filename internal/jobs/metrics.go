// Package jobmetrics instruments the background workers.
package jobmetrics

import (
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes used as the status label.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lowStock *prometheus.CounterVec
}

// NewMetrics registers the job collectors on registerer, falling back to the
// default registerer when nil. Register at most once per registry.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vetdesk_jobs_total",
			Help: "Job executions by task type and outcome.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vetdesk_jobs_failures_total",
			Help: "Job executions that will be retried or archived.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vetdesk_job_duration_seconds",
			Help:    "Job execution time in seconds.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"job"}),
		lowStock: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vetdesk_low_stock_items_total",
			Help: "Inventory items reported at or below reorder level.",
		}, []string{"source"}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration, m.lowStock)
	return m
}

// Tracker times a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts timing a run of job. A nil Metrics yields a no-op tracker.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records duration and outcome and returns err untouched. Errors wrapping
// asynq.SkipRetry count as skipped, not failed.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := Outcome(err)
	if status == StatusFailure {
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// Outcome classifies a handler result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, asynq.SkipRetry):
		return StatusSkipped
	default:
		return StatusFailure
	}
}

// AddLowStock counts items reported at or below their reorder level. source
// is "sale" for post-sale alerts and "scan" for the scheduled sweep.
func (m *Metrics) AddLowStock(source string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.lowStock.WithLabelValues(source).Add(float64(count))
}
