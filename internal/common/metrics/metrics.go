// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credito_transitions_total",
			Help: "State transitions attempted, by outcome",
		},
		[]string{"from", "to", "result"},
	)

	FollowUpFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credito_followup_failures_total",
			Help: "Post-commit follow-up actions that failed",
		},
		[]string{"action"},
	)

	AssemblyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "credito_expediente_assembly_duration_seconds",
			Help:    "Time spent assembling an expediente",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	ConsolidatedScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "credito_consolidated_score",
			Help:    "Distribution of consolidated credit scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
)
