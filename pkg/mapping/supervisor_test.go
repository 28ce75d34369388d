package mapping

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/MiguelElGallo/evsnow/pkg/broker"
	"github.com/MiguelElGallo/evsnow/pkg/checkpoint"
	"github.com/MiguelElGallo/evsnow/pkg/ingest"
	"github.com/MiguelElGallo/evsnow/pkg/model"
	"github.com/MiguelElGallo/evsnow/pkg/retry"
)

func seedEvents(partition string, from, to uint64) []model.Event {
	var events []model.Event
	for seq := from; seq <= to; seq++ {
		events = append(events, model.Event{Partition: partition, SequenceNumber: seq, EnqueuedTime: time.Now(), Body: []byte("{}")})
	}
	return events
}

func testSpec() Spec {
	return Spec{
		SourceNamespace: "ns", SourceHub: "hub", ConsumerGroup: "cg",
		TargetDB: "db", TargetSchema: "schema", TargetTable: "table",
	}
}

func testDefaults() Defaults {
	return Defaults{MaxBatchSize: 3, MaxWait: time.Hour, Prefetch: 10, StartPosition: broker.StartEarliest, AckTimeout: time.Second}
}

func TestSupervisorRunsAllPartitionsFairly(t *testing.T) {
	brk := broker.NewFakeBroker()
	brk.Seed("0", seedEvents("0", 1, 3))
	brk.Seed("1", seedEvents("1", 1, 3))
	client := ingest.NewFakeIngestClient()
	store := checkpoint.NewFakeStore()

	sup := New(testSpec(), testDefaults(),
		func(Spec) (broker.Broker, error) { return brk, nil },
		func(Spec) (ingest.IngestClient, error) { return client, nil },
		store, retry.NewDefaultPolicy(3, time.Millisecond, 10*time.Millisecond), logr.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := sup.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, _ := store.LoadAll(context.Background(), "ns", "hub", "db", "schema", "table")
	if got["0"].Waterlevel != 3 || got["1"].Waterlevel != 3 {
		t.Fatalf("expected both partitions fully ingested, got %+v", got)
	}
}

func TestSupervisorDegradesWithoutStoppingHealthyPartitions(t *testing.T) {
	brk := broker.NewFakeBroker()
	brk.Seed("0", seedEvents("0", 1, 3))
	brk.Seed("1", seedEvents("1", 1, 3))
	client := ingest.NewFakeIngestClient()
	store := checkpoint.NewFakeStore()

	failingChannel, err := client.Open(context.Background(), "0")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	failingChannel.(*ingest.FakeChannelHandle).AlwaysFail = true
	failingChannel.(*ingest.FakeChannelHandle).SendErr = retry.PermanentIngestFailure("m", "0", context.Canceled)

	sup := New(testSpec(), testDefaults(),
		func(Spec) (broker.Broker, error) { return brk, nil },
		func(Spec) (ingest.IngestClient, error) { return client, nil },
		store, retry.NewDefaultPolicy(3, time.Millisecond, 10*time.Millisecond), logr.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	runErr := sup.Run(ctx)
	if runErr == nil {
		t.Fatal("expected Run to return the permanent-failure partition's error")
	}

	got, _ := store.LoadAll(context.Background(), "ns", "hub", "db", "schema", "table")
	if got["1"].Waterlevel != 3 {
		t.Fatalf("expected the healthy partition to finish ingesting despite the other's permanent failure, got %+v", got)
	}
}
