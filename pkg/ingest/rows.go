package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/MiguelElGallo/evsnow/pkg/model"
)

// row is the target row shape of spec.md §4.2/§6, ready for INSERT.
type row struct {
	RowID            string
	EventBody        string
	PartitionID      string
	SequenceNumber   uint64
	EnqueuedTime     string
	Properties       string
	SystemProperties string
}

// rowID synthesizes spec.md §4.4's "row_id = hash(partition_id ||
// sequence_number || process_suffix)": process_suffix is derived
// deterministically from the target table's identity (see
// NewSnowflakeIngestClient), not randomized per process boot, so a
// re-ingest of the same event after a crash-restart reuses the same
// process_suffix and therefore produces the same row_id, usable for
// downstream deduplication. sha256 is stdlib rather than a pack
// dependency: no example repo imports a hashing library for a use this
// small, and content-addressed IDs are a one-line stdlib call.
func rowID(partitionID string, sequence uint64, processSuffix string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", partitionID, sequence, processSuffix)))
	return hex.EncodeToString(h[:16])
}

// buildRows serializes a batch's events into target rows. Event bodies are
// parsed as JSON when possible (stored as a JSON value) and stored as a raw
// string otherwise, per spec.md §4.2.
func buildRows(batch model.Batch, processSuffix string) []row {
	rows := make([]row, 0, len(batch.Events))
	for _, e := range batch.Events {
		rows = append(rows, row{
			RowID:            rowID(e.Partition, e.SequenceNumber, processSuffix),
			EventBody:        encodeBody(e.Body),
			PartitionID:      e.Partition,
			SequenceNumber:   e.SequenceNumber,
			EnqueuedTime:     e.EnqueuedTime.UTC().Format("2006-01-02T15:04:05.000000000"),
			Properties:       encodeProperties(e.Properties),
			SystemProperties: encodeProperties(e.SystemProperties),
		})
	}
	return rows
}

func encodeBody(body []byte) string {
	var probe any
	if err := json.Unmarshal(body, &probe); err == nil {
		return string(body)
	}
	encoded, _ := json.Marshal(string(body))
	return string(encoded)
}

func encodeProperties(m model.PropertyMap) string {
	encoded, err := json.Marshal(m.Encode())
	if err != nil {
		return "{}"
	}
	return string(encoded)
}
