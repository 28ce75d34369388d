// Package checkpoint implements CheckpointStore (spec.md §4.1): durable
// per-partition high-water marks in a Snowflake hybrid table, backed by
// github.com/snowflakedb/gosnowflake (the real ecosystem driver also used
// by the retrieval pack's estuary-flow Snowflake materialization driver).
package checkpoint

import (
	"context"

	"github.com/MiguelElGallo/evsnow/pkg/model"
)

// PartitionCheckpoint is one row of CheckpointStore.LoadAll's result.
type PartitionCheckpoint struct {
	Waterlevel uint64
	Metadata   map[string]any
}

// Store durably reads and writes per-partition checkpoints keyed by
// (namespace, hub, target-db, target-schema, target-table, partition).
// Implementations must be safe for concurrent use by every worker of every
// mapping (spec.md §5 Shared resources).
type Store interface {
	// LoadAll returns the current checkpoint for every partition of the
	// given target. Missing partitions are simply absent from the map.
	LoadAll(ctx context.Context, namespace, hub, db, schema, table string) (map[string]PartitionCheckpoint, error)

	// Save atomically upserts the checkpoint row for key. On success the
	// checkpoint is durable.
	Save(ctx context.Context, key model.Key, waterlevel uint64, metadata map[string]any) error

	// EnsureTable idempotently creates the hybrid control table and its
	// schema if absent.
	EnsureTable(ctx context.Context) error

	// Close releases pooled connections.
	Close(ctx context.Context) error
}
