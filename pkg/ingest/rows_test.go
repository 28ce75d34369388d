package ingest

import (
	"testing"
	"time"

	"github.com/MiguelElGallo/evsnow/pkg/model"
)

func TestRowIDStableAcrossProcessRestartsWithSameSuffix(t *testing.T) {
	a := rowID("0", 5, "suffix-1")
	b := rowID("0", 5, "suffix-1")
	if a != b {
		t.Fatalf("expected identical row_id for identical inputs, got %q vs %q", a, b)
	}
}

func TestRowIDDiffersAcrossPartitionOrSequence(t *testing.T) {
	base := rowID("0", 5, "suffix-1")
	if rowID("1", 5, "suffix-1") == base {
		t.Fatal("expected different partition to change row_id")
	}
	if rowID("0", 6, "suffix-1") == base {
		t.Fatal("expected different sequence to change row_id")
	}
}

func TestBuildRowsEncodesJSONBodyAsIs(t *testing.T) {
	events := []model.Event{{
		Partition:      "0",
		SequenceNumber: 1,
		EnqueuedTime:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Body:           []byte(`{"a":1}`),
	}}
	batch, err := model.NewBatch("0", events, time.Now())
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	rows := buildRows(batch, "suffix")
	if rows[0].EventBody != `{"a":1}` {
		t.Fatalf("expected JSON body passed through unchanged, got %q", rows[0].EventBody)
	}
}

func TestBuildRowsEscapesNonJSONBody(t *testing.T) {
	events := []model.Event{{
		Partition:      "0",
		SequenceNumber: 1,
		EnqueuedTime:   time.Now(),
		Body:           []byte("plain text"),
	}}
	batch, err := model.NewBatch("0", events, time.Now())
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	rows := buildRows(batch, "suffix")
	if rows[0].EventBody != `"plain text"` {
		t.Fatalf("expected non-JSON body quoted as a JSON string, got %q", rows[0].EventBody)
	}
}
