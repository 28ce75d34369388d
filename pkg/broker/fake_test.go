package broker

import (
	"context"
	"testing"
	"time"

	"github.com/MiguelElGallo/evsnow/pkg/model"
)

func seedEvents(partition string, from, to uint64) []model.Event {
	var events []model.Event
	for seq := from; seq <= to; seq++ {
		events = append(events, model.Event{
			Partition:      partition,
			SequenceNumber: seq,
			EnqueuedTime:   time.Now(),
			Body:           []byte("{}"),
		})
	}
	return events
}

func TestFakeBrokerResumesAfterCheckpoint(t *testing.T) {
	b := NewFakeBroker()
	b.Seed("0", seedEvents("0", 1, 5))

	cur, err := b.OpenCursor(context.Background(), "0", 2, true, StartLatest)
	if err != nil {
		t.Fatalf("OpenCursor: %v", err)
	}

	got, err := cur.Receive(context.Background(), 10)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(got) != 3 || got[0].SequenceNumber != 3 {
		t.Fatalf("expected to resume at seq 3, got %+v", got)
	}
}

func TestFakeBrokerStartLatestSkipsExisting(t *testing.T) {
	b := NewFakeBroker()
	b.Seed("0", seedEvents("0", 1, 5))

	cur, err := b.OpenCursor(context.Background(), "0", 0, false, StartLatest)
	if err != nil {
		t.Fatalf("OpenCursor: %v", err)
	}
	got, err := cur.Receive(context.Background(), 10)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("StartLatest with no checkpoint should skip pre-seeded events, got %d", len(got))
	}
}
