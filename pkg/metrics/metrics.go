// Package metrics defines the process-wide Prometheus collectors exposed
// by the ingestion daemon. Adapted from the teacher's pkg/metrics
// (CloudMessagesReceivedTotal/CloudLagSeconds and friends), generalized
// from "cloud provider" labels to the mapping/partition labels this domain
// needs, and registered against a private prometheus.Registry instead of
// controller-runtime's global one (there is no controller-runtime manager
// in this process).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var Registry = prometheus.NewRegistry()

var (
	// MessagesIngestedTotal is the total number of events durably ingested.
	MessagesIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evsnow",
			Name:      "messages_ingested_total",
			Help:      "Total events durably ingested into Snowflake.",
		},
		[]string{"mapping", "partition"},
	)

	// BatchesIngestedTotal is the total number of batches durably ingested.
	BatchesIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evsnow",
			Name:      "batches_ingested_total",
			Help:      "Total batches durably ingested into Snowflake.",
		},
		[]string{"mapping", "partition"},
	)

	// BytesIngestedTotal is the total event-body bytes durably ingested.
	BytesIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evsnow",
			Name:      "bytes_ingested_total",
			Help:      "Total event body bytes durably ingested into Snowflake.",
		},
		[]string{"mapping", "partition"},
	)

	// CheckpointLagSeconds is the time from a batch's last event being
	// enqueued at the source to that batch's checkpoint being durably
	// saved, set on every commit.
	CheckpointLagSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "evsnow",
			Name:      "checkpoint_lag_seconds",
			Help:      "Time from a batch's last event enqueue to its checkpoint commit.",
		},
		[]string{"mapping", "partition"},
	)

	// DurableAckSeconds is the latency of one batch's ingest, from its first
	// send through durable ack and checkpoint save, retries included.
	DurableAckSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "evsnow",
			Name:      "durable_ack_seconds",
			Help:      "Latency of one batch's ingest, from first send through durable ack and checkpoint save, retries included.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"mapping", "partition"},
	)

	// RetriesTotal is the total number of batch send retries.
	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evsnow",
			Name:      "retries_total",
			Help:      "Total batch send retries (RetryPolicy DecisionRetryAfter outcomes).",
		},
		[]string{"mapping", "partition"},
	)

	// WorkerStateTransitionsTotal counts PartitionWorker state transitions.
	WorkerStateTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evsnow",
			Name:      "worker_state_transitions_total",
			Help:      "Total PartitionWorker state transitions.",
		},
		[]string{"mapping", "partition"},
	)

	// MappingsDegradedTotal counts mappings currently in a degraded state.
	MappingsDegradedTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "evsnow",
			Name:      "mappings_degraded",
			Help:      "1 if the mapping is degraded, 0 otherwise.",
		},
		[]string{"mapping"},
	)
)

func init() {
	Registry.MustRegister(
		MessagesIngestedTotal,
		BatchesIngestedTotal,
		BytesIngestedTotal,
		CheckpointLagSeconds,
		DurableAckSeconds,
		RetriesTotal,
		WorkerStateTransitionsTotal,
		MappingsDegradedTotal,
	)
}

// Handler returns the HTTP handler serving this process's metrics,
// scraped by an external Prometheus (observability sinks are otherwise
// out of scope for the core).
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
