package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/MiguelElGallo/evsnow/pkg/broker"
	"github.com/MiguelElGallo/evsnow/pkg/checkpoint"
	"github.com/MiguelElGallo/evsnow/pkg/ingest"
	"github.com/MiguelElGallo/evsnow/pkg/mapping"
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

func testDefaults() mapping.Defaults {
	return mapping.Defaults{MaxBatchSize: 2, MaxWait: time.Hour, Prefetch: 10, StartPosition: broker.StartEarliest, AckTimeout: time.Second}
}

func TestOrchestratorExitsCleanOnSuccessfulGracefulShutdown(t *testing.T) {
	brk := broker.NewFakeBroker()
	brk.Seed("0", seedEvents("0", 1, 2))
	client := ingest.NewFakeIngestClient()
	store := checkpoint.NewFakeStore()

	spec := mapping.Spec{SourceNamespace: "ns", SourceHub: "hub-a", TargetDB: "db", TargetSchema: "schema", TargetTable: "table"}
	sup := mapping.New(spec, testDefaults(),
		func(mapping.Spec) (broker.Broker, error) { return brk, nil },
		func(mapping.Spec) (ingest.IngestClient, error) { return client, nil },
		store, retry.NewDefaultPolicy(3, time.Millisecond, time.Millisecond), logr.Discard())

	orch := New([]*mapping.Supervisor{sup}, time.Second, logr.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	status := orch.Run(ctx)
	if status != ExitClean {
		t.Fatalf("expected ExitClean, got %v", status)
	}
}

func TestOrchestratorExitsMappingFailedOnPermanentError(t *testing.T) {
	failBrk := broker.NewFakeBroker()
	failBrk.Seed("0", seedEvents("0", 1, 2))
	failClient := ingest.NewFakeIngestClient()
	failCh, _ := failClient.Open(context.Background(), "0")
	failCh.(*ingest.FakeChannelHandle).AlwaysFail = true
	failCh.(*ingest.FakeChannelHandle).SendErr = retry.PermanentIngestFailure("a", "0", context.Canceled)
	failStore := checkpoint.NewFakeStore()

	okBrk := broker.NewFakeBroker()
	okBrk.Seed("0", seedEvents("0", 1, 2))
	okClient := ingest.NewFakeIngestClient()
	okStore := checkpoint.NewFakeStore()

	specA := mapping.Spec{SourceNamespace: "ns", SourceHub: "hub-a", TargetDB: "db", TargetSchema: "schema", TargetTable: "a"}
	supA := mapping.New(specA, testDefaults(),
		func(mapping.Spec) (broker.Broker, error) { return failBrk, nil },
		func(mapping.Spec) (ingest.IngestClient, error) { return failClient, nil },
		failStore, retry.NewDefaultPolicy(2, time.Millisecond, time.Millisecond), logr.Discard())

	specB := mapping.Spec{SourceNamespace: "ns", SourceHub: "hub-b", TargetDB: "db", TargetSchema: "schema", TargetTable: "b"}
	supB := mapping.New(specB, testDefaults(),
		func(mapping.Spec) (broker.Broker, error) { return okBrk, nil },
		func(mapping.Spec) (ingest.IngestClient, error) { return okClient, nil },
		okStore, retry.NewDefaultPolicy(3, time.Millisecond, time.Millisecond), logr.Discard())

	orch := New([]*mapping.Supervisor{supA, supB}, time.Second, logr.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	status := orch.Run(ctx)
	if status != ExitMappingFailed {
		t.Fatalf("expected ExitMappingFailed, got %v", status)
	}

	got, _ := okStore.LoadAll(context.Background(), "ns", "hub-b", "db", "schema", "b")
	if got["0"].Waterlevel != 2 {
		t.Fatalf("expected the healthy mapping to finish ingesting despite the other's failure, got %+v", got)
	}
}

func TestOrchestratorTerminatesOnCancelledParentContext(t *testing.T) {
	// A mapping whose broker never produces events never naturally finishes;
	// a cancelled parent context must still bring Run to a terminal status
	// rather than hang for the drain deadline.
	brk := broker.NewFakeBroker()
	brk.Seed("0", nil)
	client := ingest.NewFakeIngestClient()
	store := checkpoint.NewFakeStore()

	spec := mapping.Spec{SourceNamespace: "ns", SourceHub: "hub", TargetDB: "db", TargetSchema: "schema", TargetTable: "table"}
	sup := mapping.New(spec, testDefaults(),
		func(mapping.Spec) (broker.Broker, error) { return brk, nil },
		func(mapping.Spec) (ingest.IngestClient, error) { return client, nil },
		store, retry.NewDefaultPolicy(3, time.Millisecond, time.Millisecond), logr.Discard())

	orch := New([]*mapping.Supervisor{sup}, 5*time.Second, logr.Discard())

	parentCtx, parentCancel := context.WithCancel(context.Background())
	parentCancel() // pre-cancelled: installSignalHandling derives from this
	// cancelled parent, so ctx.Done() fires immediately and the worker
	// drains at once, exercising the drain path without a real OS signal.

	status := orch.Run(parentCtx)
	if status != ExitClean && status != ExitForced {
		t.Fatalf("expected a terminal status, got %v", status)
	}
}
