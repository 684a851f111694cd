package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AlertsCreated counts alerts accepted by the store, labelled by alert type.
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretary_alerts_created_total",
			Help: "Total number of alerts created",
		},
		[]string{"type", "priority"},
	)

	// AlertsSuppressed counts inserts skipped by source-key deduplication.
	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretary_alerts_suppressed_total",
			Help: "Total number of duplicate alerts suppressed",
		},
		[]string{"type"},
	)

	// TriggerRuns counts scheduler trigger executions by outcome
	// (success|failure|skipped).
	TriggerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretary_trigger_runs_total",
			Help: "Total number of scheduler trigger runs",
		},
		[]string{"trigger", "result"},
	)

	// TriggerDuration measures how long each scheduler trigger takes.
	TriggerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "secretary_trigger_duration_seconds",
			Help:    "Scheduler trigger execution time",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"trigger"},
	)

	// AssistantCalls counts outbound language-model calls by operation and
	// outcome (success|timeout|rate_limited|error).
	AssistantCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretary_assistant_calls_total",
			Help: "Total number of assistant API calls",
		},
		[]string{"operation", "result"},
	)

	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretary_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// EmailsSent records outbound SMTP deliveries by result (success|failure).
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretary_emails_sent_total",
			Help: "Total number of outbound emails",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "secretary_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
