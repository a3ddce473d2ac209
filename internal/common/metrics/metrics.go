// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_search_resolutions_total",
			Help: "Searches answered, by resolution tier",
		},
		[]string{"tier"},
	)

	ExternalCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_external_calls_total",
			Help: "Calls made to external providers",
		},
		[]string{"provider", "operation", "outcome"},
	)

	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_external_call_duration_seconds",
			Help:    "Duration of external provider calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	AITokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_ai_tokens_total",
			Help: "AI tokens consumed",
		},
		[]string{"provider", "direction"},
	)

	WebSearchQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_web_search_queries_total",
			Help: "Web context queries by outcome",
		},
		[]string{"outcome"},
	)

	QuotaRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_quota_rejections_total",
			Help: "Requests rejected before any work ran",
		},
		[]string{"code"},
	)

	BackgroundTaskFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_background_task_failures_total",
			Help: "Detached task failures, by task name",
		},
		[]string{"task"},
	)

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

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Jobs currently being handled, by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Job handling duration, by worker",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"task_type"},
	)
)
