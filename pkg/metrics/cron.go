package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Job run results counted by CronJobMetrics.
const (
	JobResultSuccess = "success"
	JobResultFailure = "failure"
	// JobResultSkipped marks a run that found its tenant lock held elsewhere.
	JobResultSkipped = "skipped"
)

// CronJobMetrics records scheduled tenant sync runs.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

// NewCronJobMetrics registers the job collectors on reg. A nil registerer yields a no-op recorder.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "posync_job_duration_seconds",
		Help:    "Duration of tenant sync jobs in seconds.",
		Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posync_job_runs_total",
		Help: "Tenant sync job runs, by result.",
	}, []string{"job", "result"})
	reg.MustRegister(duration, runs)
	return &CronJobMetrics{duration: duration, runs: runs}
}

// ObserveDuration records how long the named job ran.
func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

func (c *CronJobMetrics) IncSuccess(job string) { c.inc(job, JobResultSuccess) }

func (c *CronJobMetrics) IncFailure(job string) { c.inc(job, JobResultFailure) }

func (c *CronJobMetrics) IncSkipped(job string) { c.inc(job, JobResultSkipped) }

func (c *CronJobMetrics) inc(job, result string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), result).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
