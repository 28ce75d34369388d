package checkpoint

import (
	"context"
	"sync"

	"github.com/MiguelElGallo/evsnow/pkg/model"
)

// FakeStore is an in-memory Store test double, adapted from the broker
// package's FakeBroker. It is the collaborator the worker/mapping/
// orchestrator unit tests and the end-to-end scenarios in spec.md §8 run
// against.
type FakeStore struct {
	mu       sync.Mutex
	rows     map[model.Key]PartitionCheckpoint
	SaveErr  error
	SaveHook func(key model.Key, waterlevel uint64)
}

// NewFakeStore creates an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{rows: make(map[model.Key]PartitionCheckpoint)}
}

// Seed pre-loads a checkpoint as if it had been durably saved in a prior run.
func (f *FakeStore) Seed(key model.Key, waterlevel uint64, metadata map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[key] = PartitionCheckpoint{Waterlevel: waterlevel, Metadata: metadata}
}

func (f *FakeStore) LoadAll(ctx context.Context, namespace, hub, db, schema, table string) (map[string]PartitionCheckpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make(map[string]PartitionCheckpoint)
	for key, cp := range f.rows {
		if key.Namespace == namespace && key.Hub == hub && key.TargetDB == db &&
			key.TargetSchema == schema && key.TargetTable == table {
			result[key.Partition] = cp
		}
	}
	return result, nil
}

func (f *FakeStore) Save(ctx context.Context, key model.Key, waterlevel uint64, metadata map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SaveErr != nil {
		return f.SaveErr
	}
	f.rows[key] = PartitionCheckpoint{Waterlevel: waterlevel, Metadata: metadata}
	if f.SaveHook != nil {
		f.SaveHook(key, waterlevel)
	}
	return nil
}

func (f *FakeStore) EnsureTable(ctx context.Context) error { return nil }

func (f *FakeStore) Close(ctx context.Context) error { return nil }
