package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Recorder counts report deliveries and job runs. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	emailsSent   *prometheus.CounterVec
	emailsFailed *prometheus.CounterVec
	jobRuns      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		emailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sales_report_emails_sent_total",
			Help: "Daily report emails delivered, by job.",
		}, []string{"job"}),
		emailsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sales_report_emails_failed_total",
			Help: "Daily report emails that failed to render or send, by job.",
		}, []string{"job"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sales_report_job_runs_total",
			Help: "Report job executions, by job and outcome.",
		}, []string{"job", "outcome"}),
	}
	reg.MustRegister(r.emailsSent, r.emailsFailed, r.jobRuns)
	return r
}

func (r *Recorder) EmailSent(job string) {
	if r == nil {
		return
	}
	r.emailsSent.WithLabelValues(job).Inc()
}

func (r *Recorder) EmailFailed(job string) {
	if r == nil {
		return
	}
	r.emailsFailed.WithLabelValues(job).Inc()
}

func (r *Recorder) JobRun(job, outcome string) {
	if r == nil {
		return
	}
	r.jobRuns.WithLabelValues(job, outcome).Inc()
}
