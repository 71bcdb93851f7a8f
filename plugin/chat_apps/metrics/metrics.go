// Package metrics exposes the Prometheus counters for the conversation
// pipeline. Collectors are registered on the default registry and served by
// the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsProcessed counts inbound turns by channel.
	TurnsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "propflow",
		Name:      "turns_processed_total",
		Help:      "Inbound conversation turns processed.",
	}, []string{"channel"})

	// OracleCalls counts oracle extractions by outcome (ok, degraded).
	OracleCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "propflow",
		Name:      "oracle_calls_total",
		Help:      "AI oracle extraction calls by outcome.",
	}, []string{"outcome"})

	// AdminAlerts counts hot-lead alerts emitted to tenant admins.
	AdminAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "propflow",
		Name:      "admin_alerts_total",
		Help:      "Hot-lead admin alerts emitted.",
	})

	// WorkerIterations counts background worker ticks by worker name.
	WorkerIterations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "propflow",
		Name:      "worker_iterations_total",
		Help:      "Background worker iterations.",
	}, []string{"worker"})

	// WorkerErrors counts per-item worker failures by worker name.
	WorkerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "propflow",
		Name:      "worker_errors_total",
		Help:      "Background worker per-item failures.",
	}, []string{"worker"})

	// WebhookErrors counts inbound payloads that failed to parse.
	WebhookErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "propflow",
		Name:      "webhook_errors_total",
		Help:      "Webhook payloads rejected by the adapters.",
	}, []string{"channel"})

	// TurnDuration observes end-to-end turn latency.
	TurnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "propflow",
		Name:      "turn_duration_seconds",
		Help:      "End-to-end inbound turn latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"channel"})
)
