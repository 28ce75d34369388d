package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/snowflakedb/gosnowflake"

	"github.com/MiguelElGallo/evsnow/pkg/model"
	"github.com/MiguelElGallo/evsnow/pkg/retry"
)

// sqlChannelHandle is the gosnowflake-backed ChannelHandle. A batch's
// "send" kicks off its INSERT asynchronously; WaitForDurable blocks on that
// insert's completion. This collapses the Snowpipe Streaming API's
// buffer-then-poll-offset-token lifecycle onto database/sql's synchronous
// statement execution — a deliberate simplification over the raw streaming
// wire protocol, since gosnowflake exposes no lower-level channel API.
type sqlChannelHandle struct {
	db            *sql.DB
	log           logr.Logger
	partition     string
	database      string
	schema        string
	table         string
	processSuffix string

	mu      sync.Mutex
	pending map[uint64]chan error
	closed  bool
}

func newSQLChannelHandle(db *sql.DB, log logr.Logger, partition, database, schema, table, processSuffix string) *sqlChannelHandle {
	return &sqlChannelHandle{
		db:            db,
		log:           log.WithValues("partition", partition),
		partition:     partition,
		database:      database,
		schema:        schema,
		table:         table,
		processSuffix: processSuffix,
		pending:       make(map[uint64]chan error),
	}
}

func (c *sqlChannelHandle) Send(ctx context.Context, batch model.Batch) (AckToken, error) {
	if batch.Partition != c.partition {
		return AckToken{}, fmt.Errorf("channel for partition %q cannot send batch for partition %q", c.partition, batch.Partition)
	}

	token := AckToken{Partition: c.partition, LastSequence: batch.LastSequence, issuedAt: time.Now()}
	done := make(chan error, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return AckToken{}, fmt.Errorf("channel for partition %q is closed", c.partition)
	}
	c.pending[batch.LastSequence] = done
	c.mu.Unlock()

	go func() {
		done <- c.insertBatch(context.Background(), batch)
	}()

	return token, nil
}

func (c *sqlChannelHandle) insertBatch(ctx context.Context, batch model.Batch) error {
	rows := buildRows(batch, c.processSuffix)

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s.%s.%s (ROW_ID, EVENT_BODY, PARTITION_ID, SEQUENCE_NUMBER, ENQUEUED_TIME, PROPERTIES, SYSTEM_PROPERTIES) SELECT ", c.database, c.schema, c.table)
	args := make([]any, 0, len(rows)*7)
	for i, r := range rows {
		if i > 0 {
			b.WriteString(" UNION ALL SELECT ")
		}
		b.WriteString("?, PARSE_JSON(?), ?, ?, ?, PARSE_JSON(?), PARSE_JSON(?)")
		args = append(args, r.RowID, r.EventBody, r.PartitionID, r.SequenceNumber, r.EnqueuedTime, r.Properties, r.SystemProperties)
	}

	_, err := c.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		wrapped := fmt.Errorf("inserting batch rows: %w", err)
		if isPermanentIngestError(err) {
			return retry.PermanentIngestFailure("", c.partition, wrapped)
		}
		return retry.TransientNetworkFailure("", c.partition, wrapped)
	}
	return nil
}

// isPermanentIngestError reports whether err is a Snowflake failure that a
// retry cannot fix: a schema mismatch, a revoked/expired authorization, or
// the target table/pipe having been dropped out from under the channel
// (spec.md §4.2's "Permanent — schema mismatch, auth revoked, PIPE
// deleted" class). Classification is by SQLSTATE class code rather than
// the numeric Snowflake error code, since the class code is stable across
// driver versions: "42" is Syntax Error or Access Rule Violation (covers
// both schema mismatches and missing-object errors), "28" is Invalid
// Authorization Specification.
func isPermanentIngestError(err error) bool {
	var sfErr *gosnowflake.SnowflakeError
	if !errors.As(err, &sfErr) {
		return false
	}
	switch {
	case strings.HasPrefix(sfErr.SQLState, "42"):
		return true
	case strings.HasPrefix(sfErr.SQLState, "28"):
		return true
	}
	return false
}

func (c *sqlChannelHandle) WaitForDurable(ctx context.Context, token AckToken, deadline time.Duration) (WaitResult, error) {
	c.mu.Lock()
	done, ok := c.pending[token.LastSequence]
	c.mu.Unlock()
	if !ok {
		return WaitOK, fmt.Errorf("no pending send for sequence %d on partition %q", token.LastSequence, c.partition)
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case err := <-done:
		c.mu.Lock()
		delete(c.pending, token.LastSequence)
		c.mu.Unlock()
		if err != nil {
			return WaitOK, err
		}
		return WaitOK, nil
	case <-timer.C:
		return WaitTimeout, retry.IngestDurabilityTimeout("", c.partition, fmt.Errorf("no ack within %s", deadline))
	case <-ctx.Done():
		return WaitTimeout, ctx.Err()
	}
}

func (c *sqlChannelHandle) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}
