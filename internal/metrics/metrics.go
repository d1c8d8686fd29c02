package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the job pipeline collectors. A nil *Recorder records nothing.
type Recorder struct {
	JobsSubmitted    *prometheus.CounterVec
	JobsCompleted    *prometheus.CounterVec
	JobsFailed       *prometheus.CounterVec
	JobsOrphaned     prometheus.Counter
	PipelineDuration *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		JobsSubmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imagejobs_jobs_submitted_total",
			Help: "Total number of jobs accepted and recorded as pending",
		}, []string{"kind"}),
		JobsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imagejobs_jobs_completed_total",
			Help: "Total number of jobs completed with a stored artifact",
		}, []string{"kind"}),
		JobsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imagejobs_jobs_failed_total",
			Help: "Total number of jobs marked failed, by failure condition",
		}, []string{"kind", "reason"}),
		JobsOrphaned: f.NewCounter(prometheus.CounterOpts{
			Name: "imagejobs_jobs_orphaned_total",
			Help: "Artifacts stored whose job record could not be completed",
		}),
		PipelineDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imagejobs_pipeline_duration_seconds",
			Help:    "Time from job creation to terminal status",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"kind", "status"}),
	}
}

func (r *Recorder) Submitted(kind string) {
	if r == nil {
		return
	}
	r.JobsSubmitted.WithLabelValues(kind).Inc()
}

func (r *Recorder) Completed(kind string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.JobsCompleted.WithLabelValues(kind).Inc()
	r.PipelineDuration.WithLabelValues(kind, "completed").Observe(elapsed.Seconds())
}

func (r *Recorder) Failed(kind, reason string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.JobsFailed.WithLabelValues(kind, reason).Inc()
	r.PipelineDuration.WithLabelValues(kind, "failed").Observe(elapsed.Seconds())
}

func (r *Recorder) Orphaned() {
	if r == nil {
		return
	}
	r.JobsOrphaned.Inc()
}
