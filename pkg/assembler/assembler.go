// Package assembler implements BatchAssembler (spec.md §4.3): one instance
// per partition, accumulating events until a size or time threshold fires.
package assembler

import (
	"sync"
	"time"

	"github.com/MiguelElGallo/evsnow/pkg/model"
)

// Assembler buffers events for a single partition. It is single-owner from
// the perspective of the PartitionWorker that holds it; the mutex makes
// every method safe for concurrent use all the same.
type Assembler struct {
	Partition   string
	MaxSize     int
	MaxWait     time.Duration

	mu          sync.Mutex
	buf         []model.Event
	firstAddedAt time.Time
}

// New creates a BatchAssembler for one partition.
func New(partition string, maxSize int, maxWait time.Duration) *Assembler {
	return &Assembler{Partition: partition, MaxSize: maxSize, MaxWait: maxWait}
}

// Add appends an event to the buffer and reports whether the buffer is now
// ready to be taken — either because it reached MaxSize, or because MaxWait
// has elapsed since the first event currently buffered was added.
func (a *Assembler) Add(e model.Event) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.buf) == 0 {
		a.firstAddedAt = time.Now()
	}
	a.buf = append(a.buf, e)

	if len(a.buf) >= a.MaxSize {
		return true
	}
	return time.Since(a.firstAddedAt) >= a.MaxWait
}

// Ready reports whether the current buffer already satisfies the max-wait
// threshold, without requiring a new event to arrive. The worker polls this
// between broker receives so a partition that goes quiet past MaxWait still
// flushes promptly instead of waiting for the next event.
func (a *Assembler) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.buf) == 0 {
		return false
	}
	if len(a.buf) >= a.MaxSize {
		return true
	}
	return time.Since(a.firstAddedAt) >= a.MaxWait
}

// Take atomically removes and returns the buffered events as a Batch,
// resetting assembler state. Returns ok=false if the buffer is empty.
func (a *Assembler) Take() (model.Batch, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.buf) == 0 {
		return model.Batch{}, false, nil
	}

	events := a.buf
	started := a.firstAddedAt
	a.buf = nil
	a.firstAddedAt = time.Time{}

	batch, err := model.NewBatch(a.Partition, events, started)
	if err != nil {
		return model.Batch{}, false, err
	}
	return batch, true, nil
}

// FlushIfNonempty returns whatever is buffered regardless of thresholds,
// used on shutdown (spec.md §4.3, §4.4). Returns ok=false on an empty
// buffer — an empty flush is always a no-op, never an error.
func (a *Assembler) FlushIfNonempty() (model.Batch, bool, error) {
	return a.Take()
}

// Len reports the number of events currently buffered, used to enforce the
// "bounded buffering" testable property (spec.md §8, property 5).
func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf)
}
