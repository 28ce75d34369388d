package mapping

import (
	"time"

	"github.com/MiguelElGallo/evsnow/pkg/worker"
)

// Health summarizes a mapping's current operating condition (spec.md §4.5).
type Health int

const (
	HealthHealthy Health = iota
	HealthDegraded
	HealthStopped
)

func (h Health) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthDegraded:
		return "degraded"
	case HealthStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PartitionStats is the per-partition slice of Stats: each worker's state
// and last checkpointed sequence. No lag estimate is computed.
type PartitionStats struct {
	Partition        string
	State            worker.State
	LastSequence     uint64
	HaveLastSequence bool
}

// Stats is the mapping-wide aggregate spec.md §4.5 requires.
type Stats struct {
	Mapping          string
	Running          bool
	Health           Health
	MessagesIngested uint64
	BatchesIngested  uint64
	BytesIngested    uint64
	LastIngestAt     time.Time
	Partitions       []PartitionStats
}

// aggregate folds every worker's Stats into a mapping-wide Stats snapshot.
func aggregate(mappingName string, running bool, workerStats []worker.Stats) Stats {
	s := Stats{Mapping: mappingName, Running: running, Health: HealthHealthy}
	if !running {
		s.Health = HealthStopped
	}

	anyFailed := false
	for _, ws := range workerStats {
		s.MessagesIngested += ws.MessagesIngested
		s.BatchesIngested += ws.BatchesIngested
		s.BytesIngested += ws.BytesIngested
		if ws.LastIngestAt.After(s.LastIngestAt) {
			s.LastIngestAt = ws.LastIngestAt
		}
		if ws.State == worker.StateFailed {
			anyFailed = true
		}
		s.Partitions = append(s.Partitions, PartitionStats{
			Partition:        ws.Partition,
			State:            ws.State,
			LastSequence:     ws.LastSequence,
			HaveLastSequence: ws.HaveLastSequence,
		})
	}

	if running && anyFailed {
		s.Health = HealthDegraded
	}
	return s
}
