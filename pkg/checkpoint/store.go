package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	_ "github.com/snowflakedb/gosnowflake"

	"github.com/MiguelElGallo/evsnow/pkg/model"
	"github.com/MiguelElGallo/evsnow/pkg/retry"
)

const controlTableName = "INGESTION_STATUS"

// SnowflakeStore is the gosnowflake-backed implementation of Store. It owns
// a pooled *sql.DB (spec.md §4.1 "Connection reuse") shared by every
// mapping's workers.
type SnowflakeStore struct {
	db     *sql.DB
	log    logr.Logger
	cancel context.CancelFunc
}

// NewSnowflakeStore opens a pooled connection to Snowflake using dsn (built
// from a ConnectionProfile by pkg/config) and starts the pool's liveness
// checker.
func NewSnowflakeStore(dsn string, log logr.Logger) (*SnowflakeStore, error) {
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening snowflake connection: %w", err)
	}

	log = log.WithName("checkpoint")
	openPool(db, log)

	ctx, cancel := context.WithCancel(context.Background())
	go pingLoop(ctx, db, 30*time.Second, log)

	return &SnowflakeStore{db: db, log: log, cancel: cancel}, nil
}

func (s *SnowflakeStore) EnsureTable(ctx context.Context) error {
	const ddl = `CREATE HYBRID TABLE IF NOT EXISTS ` + controlTableName + ` (
		TS_INSERTED TIMESTAMP_LTZ DEFAULT CURRENT_TIMESTAMP(),
		EVENTHUB_NAMESPACE VARCHAR(500) NOT NULL,
		EVENTHUB VARCHAR(200) NOT NULL,
		TARGET_DB VARCHAR(200) NOT NULL,
		TARGET_SCHEMA VARCHAR(200) NOT NULL,
		TARGET_TABLE VARCHAR(200) NOT NULL,
		WATERLEVEL NUMBER(38,0),
		PARTITION_ID VARCHAR(50) NOT NULL,
		METADATA VARIANT,
		PRIMARY KEY (EVENTHUB_NAMESPACE, EVENTHUB, TARGET_DB, TARGET_SCHEMA, TARGET_TABLE, PARTITION_ID)
	)`

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensuring control table: %w", err)
	}
	return nil
}

func (s *SnowflakeStore) LoadAll(ctx context.Context, namespace, hub, db, schema, table string) (map[string]PartitionCheckpoint, error) {
	const q = `SELECT PARTITION_ID, WATERLEVEL, METADATA FROM ` + controlTableName + `
		WHERE EVENTHUB_NAMESPACE = ? AND EVENTHUB = ? AND TARGET_DB = ? AND TARGET_SCHEMA = ? AND TARGET_TABLE = ?`

	rows, err := s.db.QueryContext(ctx, q, namespace, hub, db, schema, table)
	if err != nil {
		return nil, &retry.ControlTableMissing{Table: controlTableName, Err: err}
	}
	defer rows.Close()

	result := make(map[string]PartitionCheckpoint)
	for rows.Next() {
		var (
			partitionID string
			waterlevel  sql.NullInt64
			metaRaw     sql.NullString
		)
		if err := rows.Scan(&partitionID, &waterlevel, &metaRaw); err != nil {
			return nil, fmt.Errorf("scanning checkpoint row: %w", err)
		}
		var meta map[string]any
		if metaRaw.Valid && metaRaw.String != "" {
			_ = json.Unmarshal([]byte(metaRaw.String), &meta)
		}
		result[partitionID] = PartitionCheckpoint{
			Waterlevel: uint64(waterlevel.Int64),
			Metadata:   meta,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading checkpoint rows: %w", err)
	}
	return result, nil
}

// Save upserts the checkpoint row for key by composite primary key,
// last-write-wins by wall clock (spec.md §4.1 Guarantees).
func (s *SnowflakeStore) Save(ctx context.Context, key model.Key, waterlevel uint64, metadata map[string]any) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshaling checkpoint metadata: %w", err)
	}

	const merge = `MERGE INTO ` + controlTableName + ` AS t
		USING (SELECT ? AS NS, ? AS HUB, ? AS DB, ? AS SCHEMA_NAME, ? AS TBL, ? AS PID, ? AS WL, PARSE_JSON(?) AS MD) AS s
		ON t.EVENTHUB_NAMESPACE = s.NS AND t.EVENTHUB = s.HUB AND t.TARGET_DB = s.DB
			AND t.TARGET_SCHEMA = s.SCHEMA_NAME AND t.TARGET_TABLE = s.TBL AND t.PARTITION_ID = s.PID
		WHEN MATCHED THEN UPDATE SET
			WATERLEVEL = s.WL, METADATA = s.MD, TS_INSERTED = CURRENT_TIMESTAMP()
		WHEN NOT MATCHED THEN INSERT (
			EVENTHUB_NAMESPACE, EVENTHUB, TARGET_DB, TARGET_SCHEMA, TARGET_TABLE, PARTITION_ID, WATERLEVEL, METADATA
		) VALUES (s.NS, s.HUB, s.DB, s.SCHEMA_NAME, s.TBL, s.PID, s.WL, s.MD)`

	_, err = s.db.ExecContext(ctx, merge,
		key.Namespace, key.Hub, key.TargetDB, key.TargetSchema, key.TargetTable, key.Partition,
		int64(waterlevel), string(metaJSON))
	if err != nil {
		return retry.CheckpointPersistFailure("", key.Partition, fmt.Errorf("upserting checkpoint: %w", err))
	}
	return nil
}

func (s *SnowflakeStore) Close(ctx context.Context) error {
	s.cancel()
	return s.db.Close()
}
