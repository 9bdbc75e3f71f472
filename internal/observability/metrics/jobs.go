package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// JobMetrics tracks batch job executions (daily metrics, purge, payouts).
type JobMetrics struct {
	runs      *prometheus.CounterVec
	errors    *prometheus.CounterVec
	durations *prometheus.HistogramVec
	rows      *prometheus.GaugeVec
}

var (
	jobMetricsOnce sync.Once
	jobMetrics     *JobMetrics
)

// Jobs returns the process-wide job metrics registry.
func Jobs() *JobMetrics {
	jobMetricsOnce.Do(func() {
		jobMetrics = &JobMetrics{
			runs: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "storynest_job_runs_total",
				Help: "Batch job executions by job name.",
			}, []string{"job"}),
			errors: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "storynest_job_errors_total",
				Help: "Batch job failures by job name.",
			}, []string{"job"}),
			durations: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "storynest_job_duration_seconds",
				Help:    "Batch job duration by job name.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			}, []string{"job"}),
			rows: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "storynest_job_rows_written",
				Help: "Rows written by the last run of each batch job.",
			}, []string{"job"}),
		}
	})
	return jobMetrics
}

func (m *JobMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job).Inc()
}

func (m *JobMetrics) IncJobError(job string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(job).Inc()
}

func (m *JobMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.durations.WithLabelValues(job).Observe(d.Seconds())
}

func (m *JobMetrics) SetJobRows(job string, rows int) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(job).Set(float64(rows))
}
