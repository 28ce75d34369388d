// Package ingest implements IngestClient and ChannelHandle (spec.md §4.2):
// durable delivery of assembled batches into Snowflake target tables via
// github.com/snowflakedb/gosnowflake. Channel open/send/durable-ack is
// grounded on the streaming-channel lifecycle of the retrieval pack's
// fearfates-connect Snowpipe Streaming client (OpenChannel, InsertRows,
// WaitUntilCommitted), adapted onto plain INSERT ... SELECT statements over
// database/sql rather than the raw Snowpipe Streaming wire protocol.
package ingest

import (
	"context"
	"time"

	"github.com/MiguelElGallo/evsnow/pkg/model"
)

// AckToken identifies a sent batch's position in the channel's pending
// queue. It carries no meaning outside the ChannelHandle that issued it.
type AckToken struct {
	Partition    string
	LastSequence uint64
	issuedAt     time.Time
}

// WaitResult is the outcome of ChannelHandle.WaitForDurable.
type WaitResult int

const (
	WaitOK WaitResult = iota
	WaitTimeout
)

// ChannelHandle is a single worker's private send path into one partition's
// target table. Not safe for concurrent use by more than one goroutine
// (spec.md §5 "Per-worker BatchAssembler and ChannelHandle are single-owner").
type ChannelHandle interface {
	// Send enqueues batch into the server's streaming buffer and returns a
	// token identifying its position. Does not imply durability.
	Send(ctx context.Context, batch model.Batch) (AckToken, error)

	// WaitForDurable blocks until the server confirms token's batch is
	// committed, or deadline elapses.
	WaitForDurable(ctx context.Context, token AckToken, deadline time.Duration) (WaitResult, error)

	// Close flushes any pending state and releases the handle.
	Close(ctx context.Context) error
}

// IngestClient opens and tracks ChannelHandles for the partitions of one
// mapping. Open is thread-safe and idempotent (spec.md §4.2, §5).
type IngestClient interface {
	Open(ctx context.Context, partition string) (ChannelHandle, error)
	Close(ctx context.Context) error
}
