package model

import "time"

// Key is the composite primary key of a checkpoint row in the
// INGESTION_STATUS control table (spec.md §6).
type Key struct {
	Namespace   string
	Hub         string
	TargetDB    string
	TargetSchema string
	TargetTable string
	Partition   string
}

// Checkpoint is a record in the INGESTION_STATUS hybrid table keyed by Key.
// Waterlevel is the sequence number of the last durably-ingested event;
// Metadata is a free-form structured blob (offset, client id, batch size).
type Checkpoint struct {
	Waterlevel  uint64
	TSInserted  time.Time
	Metadata    map[string]any
}
