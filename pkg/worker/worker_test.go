package worker

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

func testKey(partition string) model.Key {
	return model.Key{
		Namespace: "ns", Hub: "hub", TargetDB: "db", TargetSchema: "schema", TargetTable: "table",
		Partition: partition,
	}
}

func seedEvents(partition string, from, to uint64) []model.Event {
	var events []model.Event
	for seq := from; seq <= to; seq++ {
		events = append(events, model.Event{Partition: partition, SequenceNumber: seq, EnqueuedTime: time.Now(), Body: []byte("{}")})
	}
	return events
}

func newTestWorker(t *testing.T, cfg Config, brk *broker.FakeBroker, client *ingest.FakeIngestClient, store *checkpoint.FakeStore, policy retry.Policy) *PartitionWorker {
	t.Helper()
	if cfg.MaxBatchSize == 0 {
		cfg.MaxBatchSize = 3
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = time.Hour
	}
	if cfg.PollMaxEvents == 0 {
		cfg.PollMaxEvents = 10
	}
	if cfg.AckTimeout == 0 {
		cfg.AckTimeout = time.Second
	}
	if policy == nil {
		policy = retry.NewDefaultPolicy(3, time.Millisecond, 10*time.Millisecond)
	}
	return New(cfg, brk, client, store, policy, nil, logr.Discard())
}

func TestPartitionWorkerCleanRun(t *testing.T) {
	brk := broker.NewFakeBroker()
	brk.Seed("0", seedEvents("0", 1, 3))
	client := ingest.NewFakeIngestClient()
	store := checkpoint.NewFakeStore()

	cfg := Config{Key: testKey("0"), Partition: "0", MaxBatchSize: 3, StartPosition: broker.StartEarliest}
	w := newTestWorker(t, cfg, brk, client, store, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, _ := store.LoadAll(context.Background(), "ns", "hub", "db", "schema", "table")
	if got["0"].Waterlevel != 3 {
		t.Fatalf("expected checkpoint waterlevel 3, got %+v", got)
	}
	if w.Stats().State != StateClosed {
		t.Fatalf("expected StateClosed, got %v", w.Stats().State)
	}
}

func TestPartitionWorkerTransientErrorThenSucceeds(t *testing.T) {
	brk := broker.NewFakeBroker()
	brk.Seed("0", seedEvents("0", 1, 3))
	client := ingest.NewFakeIngestClient()
	store := checkpoint.NewFakeStore()

	cfg := Config{Key: testKey("0"), Partition: "0", MaxBatchSize: 3, StartPosition: broker.StartEarliest}
	w := newTestWorker(t, cfg, brk, client, store, retry.NewDefaultPolicy(5, time.Millisecond, 5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	// Inject a transient send failure on the first attempt for this
	// partition's channel: FakeChannelHandle is only created once Open is
	// called, so seed the failure from a goroutine that polls for it.
	go func() {
		for i := 0; i < 50; i++ {
			if ch := client.Channel("0"); ch != nil {
				ch.FailNSends = 1
				ch.SendErr = retry.TransientNetworkFailure("m", "0", context.DeadlineExceeded)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, _ := store.LoadAll(context.Background(), "ns", "hub", "db", "schema", "table")
	if got["0"].Waterlevel != 3 {
		t.Fatalf("expected checkpoint to eventually reach waterlevel 3 despite one transient failure, got %+v", got)
	}
}

func TestPartitionWorkerResumesFromCheckpoint(t *testing.T) {
	brk := broker.NewFakeBroker()
	brk.Seed("0", seedEvents("0", 1, 5))
	client := ingest.NewFakeIngestClient()
	store := checkpoint.NewFakeStore()
	store.Seed(testKey("0"), 2, nil)

	cfg := Config{Key: testKey("0"), Partition: "0", MaxBatchSize: 3, StartPosition: broker.StartEarliest}
	w := newTestWorker(t, cfg, brk, client, store, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ch := client.Channel("0")
	sent := ch.SentBatches()
	if len(sent) == 0 || sent[0].Events[0].SequenceNumber != 3 {
		t.Fatalf("expected worker to resume at sequence 3, got %+v", sent)
	}
}

func TestPartitionWorkerGracefulShutdownDrainsPartialBatch(t *testing.T) {
	brk := broker.NewFakeBroker()
	brk.Seed("0", seedEvents("0", 1, 2)) // fewer events than MaxBatchSize: never naturally flushes
	client := ingest.NewFakeIngestClient()
	store := checkpoint.NewFakeStore()

	cfg := Config{Key: testKey("0"), Partition: "0", MaxBatchSize: 10, MaxWait: time.Hour, StartPosition: broker.StartEarliest}
	w := newTestWorker(t, cfg, brk, client, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not shut down in time")
	}

	got, _ := store.LoadAll(context.Background(), "ns", "hub", "db", "schema", "table")
	if got["0"].Waterlevel != 2 {
		t.Fatalf("expected shutdown to flush the partial batch and checkpoint waterlevel 2, got %+v", got)
	}
}
