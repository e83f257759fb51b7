// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_admissions_total",
			Help: "Total number of admission requests by result",
		},
		[]string{"result"},
	)

	AdmissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "notification_admission_duration_seconds",
			Help: "Duration of admission handling in seconds",
		},
		[]string{"result"},
	)

	PublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_publish_failures_total",
			Help: "Total number of broker publish failures",
		},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_status_transitions_total",
			Help: "Total number of applied status transitions",
		},
		[]string{"status"},
	)

	RateLimitFailOpen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_ratelimit_fail_open_total",
			Help: "Total number of requests allowed because the rate limiter backend was unavailable",
		},
	)
)

// Admission result label values.
const (
	ResultCreated   = "created"
	ResultReplayed  = "replayed"
	ResultThrottled = "throttled"
	ResultFailed    = "failed"
)
