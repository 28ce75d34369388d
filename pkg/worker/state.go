package worker

import (
	"sync"
	"time"
)

// State is a PartitionWorker's lifecycle stage (spec.md §4.4).
type State int

const (
	StateInitializing State = iota
	StateRunning
	StateDraining
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats is a read-only snapshot of one partition's progress, consumed by
// MappingSupervisor to build its own aggregate stats (spec.md §4.5).
type Stats struct {
	Partition        string
	State            State
	FailureReason    string
	MessagesIngested uint64
	BatchesIngested  uint64
	BytesIngested    uint64
	LastSequence     uint64
	HaveLastSequence bool
	LastIngestAt     time.Time
}

// statsBox guards the worker's own stats against concurrent reads by the
// supervisor.
type statsBox struct {
	mu    sync.Mutex
	stats Stats
}

func (b *statsBox) snapshot() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *statsBox) setState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.State = s
}

func (b *statsBox) setFailed(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.State = StateFailed
	b.stats.FailureReason = reason
}

func (b *statsBox) recordIngest(lastSequence uint64, messages, bytes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.MessagesIngested += uint64(messages)
	b.stats.BatchesIngested++
	b.stats.BytesIngested += uint64(bytes)
	b.stats.LastSequence = lastSequence
	b.stats.HaveLastSequence = true
	b.stats.LastIngestAt = time.Now()
}
