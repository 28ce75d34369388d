package broker

import (
	"context"
	"sync"

	"github.com/MiguelElGallo/evsnow/pkg/model"
)

// FakeBroker is an in-memory test double for Broker, adapted from the
// teacher's pkg/ingestor/cloud.FakeSource. It serves pre-loaded per-
// partition event sequences and is the collaborator the end-to-end
// scenarios in spec.md §8 run against.
type FakeBroker struct {
	mu         sync.Mutex
	partitions map[string][]model.Event
	cursors    map[string]*fakeCursor
	ConnectErr error
}

// NewFakeBroker creates a FakeBroker with no partitions loaded.
func NewFakeBroker() *FakeBroker {
	return &FakeBroker{
		partitions: make(map[string][]model.Event),
		cursors:    make(map[string]*fakeCursor),
	}
}

// Seed loads a sequence of events for a partition. Events must already be
// in strictly increasing sequence-number order.
func (f *FakeBroker) Seed(partition string, events []model.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partitions[partition] = append(f.partitions[partition], events...)
}

func (f *FakeBroker) Connect(ctx context.Context) ([]string, error) {
	if f.ConnectErr != nil {
		return nil, f.ConnectErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.partitions))
	for id := range f.partitions {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *FakeBroker) OpenCursor(ctx context.Context, partition string, afterSequence uint64, haveCheckpoint bool, start StartPosition) (Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	events := f.partitions[partition]
	startIdx := 0
	if haveCheckpoint {
		for i, e := range events {
			if e.SequenceNumber > afterSequence {
				startIdx = i
				break
			}
			startIdx = i + 1
		}
	} else if start == StartLatest {
		startIdx = len(events)
	}

	c := &fakeCursor{broker: f, partition: partition, next: startIdx}
	f.cursors[partition] = c
	return c, nil
}

func (f *FakeBroker) Close(ctx context.Context) error { return nil }

type fakeCursor struct {
	broker    *FakeBroker
	partition string
	next      int
	closed    bool
}

func (c *fakeCursor) Receive(ctx context.Context, maxEvents int) ([]model.Event, error) {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()

	events := c.broker.partitions[c.partition]
	if c.next >= len(events) {
		return nil, nil
	}

	end := c.next + maxEvents
	if end > len(events) {
		end = len(events)
	}
	batch := append([]model.Event(nil), events[c.next:end]...)
	c.next = end
	return batch, nil
}

func (c *fakeCursor) Close(ctx context.Context) error {
	c.closed = true
	return nil
}
