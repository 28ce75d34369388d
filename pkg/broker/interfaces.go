// Package broker adapts an Azure Event Hub into the Broker interface the
// core depends on. It is adapted from the teacher's
// pkg/ingestor/cloud.MessageSource / EventHubSource, simplified from the
// teacher's load-balanced azeventhubs.Processor down to direct
// per-partition consumption: spec.md's Non-goals exclude multi-process
// horizontal sharding ("a single process owns its consumer-group+partition
// set for the duration of its run"), so there is no partition ownership to
// balance.
package broker

import (
	"context"
	"fmt"

	"github.com/MiguelElGallo/evsnow/pkg/model"
)

// StartPosition selects where a partition cursor begins when no checkpoint
// exists yet (spec.md §6, start_position option).
type StartPosition int

const (
	StartEarliest StartPosition = iota
	StartLatest
)

// ParseStartPosition converts the configuration option's string form
// ("earliest" or "latest", per spec.md §6) into a StartPosition.
func ParseStartPosition(s string) (StartPosition, error) {
	switch s {
	case "earliest":
		return StartEarliest, nil
	case "latest", "":
		return StartLatest, nil
	default:
		return StartLatest, fmt.Errorf("unknown start_position %q, want earliest or latest", s)
	}
}

// Broker connects to an event stream and delivers events per partition.
// One Broker is shared by all the PartitionWorkers of a mapping; its
// per-partition cursor methods must be safe for concurrent use across
// partitions (spec.md §5).
type Broker interface {
	// Connect establishes the connection and discovers the current
	// partition set. Partition-set changes after Connect are out of scope
	// (spec.md §9 Open Questions): the set is fixed for the run.
	Connect(ctx context.Context) ([]string, error)

	// OpenCursor opens a per-partition cursor starting just after
	// afterSequence if ok is true, or at start otherwise.
	OpenCursor(ctx context.Context, partition string, afterSequence uint64, ok bool, start StartPosition) (Cursor, error)

	// Close releases broker-wide resources (not per-partition cursors,
	// which are owned and closed by their PartitionWorker).
	Close(ctx context.Context) error
}

// Cursor is a partition-scoped receive handle, owned exclusively by one
// PartitionWorker (spec.md §3 Ownership).
type Cursor interface {
	// Receive returns up to maxEvents events, blocking until at least one
	// is available, the small per-poll timeout elapses (returning nil,
	// nil), or ctx is cancelled.
	Receive(ctx context.Context, maxEvents int) ([]model.Event, error)

	// Close releases the cursor.
	Close(ctx context.Context) error
}
