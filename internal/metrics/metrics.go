// Package metrics defines the worker's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Notification pipeline metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connect_worker_notifications_total",
			Help: "Total notifications processed, labeled by pipeline outcome",
		},
		[]string{"outcome"},
	)

	RedeliveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connect_worker_redeliveries_total",
			Help: "Total deliveries the broker marked as redelivered",
		},
	)

	DuplicatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connect_worker_duplicate_envelopes_total",
			Help: "Total eligible envelopes already fulfilled at least once before",
		},
	)

	// Fulfillment metrics
	FulfillmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "connect_worker_fulfillment_duration_seconds",
			Help:    "Duration of document fulfillment in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	FulfillmentErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connect_worker_fulfillment_errors_total",
			Help: "Total fulfillment failures",
		},
	)

	ArtifactBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connect_worker_artifact_bytes_total",
			Help: "Total bytes of fulfillment artifacts written",
		},
	)

	// Side-channel metrics
	ActuationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connect_worker_actuation_errors_total",
			Help: "Total color actuation failures (best-effort, never fatal)",
		},
	)

	JournalErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connect_worker_journal_errors_total",
			Help: "Total fulfillment journal write failures",
		},
	)

	// Queue metrics
	Reconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connect_worker_subscribe_attempts_total",
			Help: "Total queue subscribe attempts, including the first",
		},
	)

	HarnessRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connect_worker_harness_runs_total",
			Help: "Total harness test messages executed",
		},
	)
)

// Pipeline outcome label values for NotificationsTotal.
const (
	OutcomeFulfilled     = "fulfilled"
	OutcomeIneligible    = "ineligible"
	OutcomeUndecodable   = "undecodable"
	OutcomeFulfillFailed = "fulfill_failed"
	OutcomeHarness       = "harness"
)
