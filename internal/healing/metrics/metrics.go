package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HealingAttempts tracks orchestration runs by category, strategy and outcome
	HealingAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healer_attempts_total",
			Help: "Total number of healing orchestration runs",
		},
		[]string{"category", "strategy", "outcome"},
	)

	// HealingDuration tracks how long one orchestration run takes
	HealingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "healer_duration_seconds",
			Help:    "Healing orchestration duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category"},
	)

	// PatternLookups tracks learned-pattern cache lookups
	PatternLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healer_pattern_lookups_total",
			Help: "Pattern cache lookups by result (trusted, known, miss)",
		},
		[]string{"result"},
	)

	// NotificationsSent tracks operator escalations
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healer_notifications_total",
			Help: "Operator notifications sent by reason",
		},
		[]string{"reason"},
	)

	// ProbeStatus is 1 when a health probe is healthy, 0 when unhealthy
	ProbeStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "healer_probe_healthy",
			Help: "Health probe status (1 healthy, 0 unhealthy)",
		},
		[]string{"check"},
	)

	// RetryQueueDepth tracks operations waiting in the background retry queue
	RetryQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "healer_retry_queue_depth",
			Help: "Operations currently queued for background retry",
		},
	)
)
