// Package jobmetrics instruments asynq task handlers.
package jobmetrics

import (
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes. A task that returned asynq.SkipRetry is dropped, any other
// error is retried by the queue.
const (
	OutcomeOK      = "ok"
	OutcomeRetry   = "retry"
	OutcomeDropped = "dropped"
)

// Metrics holds the collectors shared by every job handler.
type Metrics struct {
	runs      *prometheus.CounterVec
	inFlight  *prometheus.GaugeVec
	duration  *prometheus.HistogramVec
	purged    prometheus.Counter
	published prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers on registerer, or once on the default registerer when
// it is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	defaultOnce.Do(func() { defaultMetrics = register(prometheus.DefaultRegisterer) })
	return defaultMetrics
}

func register(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotewizard_job_runs_total",
			Help: "Job runs by task type and outcome (ok, retry, dropped).",
		}, []string{"job", "outcome"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "quotewizard_jobs_in_flight",
			Help: "Job runs currently executing.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quotewizard_job_duration_seconds",
			Help:    "Wall time of job runs.",
			Buckets: []float64{.005, .025, .1, .5, 1, 5, 30, 120},
		}, []string{"job"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotewizard_drafts_purged_total",
			Help: "Open drafts deleted after the retention period.",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotewizard_submissions_published_total",
			Help: "Submitted quote summaries delivered downstream.",
		}),
	}
	reg.MustRegister(m.runs, m.inFlight, m.duration, m.purged, m.published)
	return m
}

// Run is one instrumented execution of a job.
type Run struct {
	m     *Metrics
	job   string
	start time.Time
}

// Track starts a run of job. It is safe on a nil *Metrics.
func (m *Metrics) Track(job string) *Run {
	if m != nil {
		m.inFlight.WithLabelValues(job).Inc()
	}
	return &Run{m: m, job: job, start: time.Now()}
}

// End records the outcome of err and returns err unchanged.
func (r *Run) End(err error) error {
	if r == nil || r.m == nil {
		return err
	}
	r.m.inFlight.WithLabelValues(r.job).Dec()
	r.m.runs.WithLabelValues(r.job, Outcome(err)).Inc()
	r.m.duration.WithLabelValues(r.job).Observe(time.Since(r.start).Seconds())
	return err
}

// Outcome classifies a handler result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, asynq.SkipRetry):
		return OutcomeDropped
	default:
		return OutcomeRetry
	}
}

// AddPurged counts drafts removed by the retention job.
func (m *Metrics) AddPurged(count int) {
	if m != nil && count > 0 {
		m.purged.Add(float64(count))
	}
}

// IncPublished counts one submission delivered downstream.
func (m *Metrics) IncPublished() {
	if m != nil {
		m.published.Inc()
	}
}
