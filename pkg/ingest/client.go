package ingest

import (
	"context"
	"database/sql"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	_ "github.com/snowflakedb/gosnowflake"
)

// SnowflakeIngestClient opens one sqlChannelHandle per partition of a single
// mapping's target table, sharing one pooled *sql.DB across them (spec.md
// §5 "IngestClient is shared by the workers of one mapping").
type SnowflakeIngestClient struct {
	db       *sql.DB
	log      logr.Logger
	database string
	schema   string
	table    string

	processSuffix string

	mu       sync.Mutex
	channels map[string]*sqlChannelHandle
}

// NewSnowflakeIngestClient opens a pooled connection to Snowflake for the
// given target table. processSuffix is derived deterministically from the
// target's identity (database/schema/table) rather than generated at
// random, so that row_id (spec.md §4.4) is stable across a crash-restart
// of the process ingesting into the same target: a re-ingest of the same
// (partition, sequence_number) after a restart computes the same suffix,
// and therefore the same row_id, as before the crash.
func NewSnowflakeIngestClient(dsn, database, schema, table string, log logr.Logger) (*SnowflakeIngestClient, error) {
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)

	suffix := uuid.NewSHA1(uuid.NameSpaceOID, []byte(database+"/"+schema+"/"+table)).String()

	return &SnowflakeIngestClient{
		db:            db,
		log:           log.WithName("ingest"),
		database:      database,
		schema:        schema,
		table:         table,
		processSuffix: suffix,
		channels:      make(map[string]*sqlChannelHandle),
	}, nil
}

// Open returns the existing channel for partition if one is already open,
// otherwise creates and registers one. Thread-safe and idempotent (spec.md
// §4.2).
func (c *SnowflakeIngestClient) Open(ctx context.Context, partition string) (ChannelHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch, ok := c.channels[partition]; ok {
		return ch, nil
	}
	ch := newSQLChannelHandle(c.db, c.log, partition, c.database, c.schema, c.table, c.processSuffix)
	c.channels[partition] = ch
	return ch, nil
}

func (c *SnowflakeIngestClient) Close(ctx context.Context) error {
	c.mu.Lock()
	channels := make([]*sqlChannelHandle, 0, len(c.channels))
	for _, ch := range c.channels {
		channels = append(channels, ch)
	}
	c.mu.Unlock()

	for _, ch := range channels {
		_ = ch.Close(ctx)
	}
	return c.db.Close()
}
