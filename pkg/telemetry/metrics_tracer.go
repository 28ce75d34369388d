package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MiguelElGallo/evsnow/pkg/metrics"
)

// MetricsTracer forwards CounterAdd calls to the named Prometheus counter
// registered in pkg/metrics, labeled by mapping and partition, and
// interprets two named Event calls (emitted by a span's End and by
// PartitionWorker.commit) as a histogram observation and a gauge set
// respectively — the only two ambient metrics that don't fit the
// Add-only CounterAdd shape. This process's distributed tracing sink, if
// any, is an external collaborator out of the core's scope (spec.md §9
// Design Notes).
type MetricsTracer struct {
	Mapping   string
	Partition string
}

func (t MetricsTracer) Span(name string) Handle {
	return timedHandle{tracer: t, name: name, start: time.Now()}
}

func (t MetricsTracer) Event(name string, attrs ...Attr) {
	switch name {
	case "ingest_batch.end":
		if ms, ok := intAttr(attrs, "duration_ms"); ok {
			metrics.DurableAckSeconds.WithLabelValues(t.Mapping, t.Partition).Observe(float64(ms) / 1000)
		}
	case "checkpoint.committed":
		if lag, ok := floatAttr(attrs, "lag_seconds"); ok {
			metrics.CheckpointLagSeconds.WithLabelValues(t.Mapping, t.Partition).Set(lag)
		}
	}
}

func (t MetricsTracer) CounterAdd(name string, n float64) {
	counter, ok := counterByName(name)
	if !ok {
		return
	}
	counter.WithLabelValues(t.Mapping, t.Partition).Add(n)
}

func counterByName(name string) (*prometheus.CounterVec, bool) {
	switch name {
	case "messages_ingested":
		return metrics.MessagesIngestedTotal, true
	case "batches_ingested":
		return metrics.BatchesIngestedTotal, true
	case "bytes_ingested":
		return metrics.BytesIngestedTotal, true
	case "retries":
		return metrics.RetriesTotal, true
	case "worker_state_transitions":
		return metrics.WorkerStateTransitionsTotal, true
	default:
		return nil, false
	}
}

func intAttr(attrs []Attr, key string) (int64, bool) {
	for _, a := range attrs {
		if a.Key == key {
			if v, ok := a.Value.(int64); ok {
				return v, true
			}
		}
	}
	return 0, false
}

func floatAttr(attrs []Attr, key string) (float64, bool) {
	for _, a := range attrs {
		if a.Key == key {
			if v, ok := a.Value.(float64); ok {
				return v, true
			}
		}
	}
	return 0, false
}
