package model

import (
	"fmt"
	"time"
)

// Batch is an ordered sequence of Events belonging to a single partition.
// Invariants (spec.md §3): non-empty, strictly increasing sequence numbers,
// all events from the same partition.
type Batch struct {
	Partition      string
	Events         []Event
	LastSequence   uint64
	Count          int
	EarliestEnq    time.Time
	LatestEnq      time.Time
	AssemblyStart  time.Time
}

// NewBatch builds a Batch from a non-empty, partition-homogeneous,
// sequence-ordered slice of events, validating the invariants spec.md §3
// requires of every batch the assembler hands to the ingester.
func NewBatch(partition string, events []Event, assemblyStart time.Time) (Batch, error) {
	if len(events) == 0 {
		return Batch{}, fmt.Errorf("batch: cannot build an empty batch")
	}

	b := Batch{
		Partition:     partition,
		Events:        events,
		Count:         len(events),
		AssemblyStart: assemblyStart,
		EarliestEnq:   events[0].EnqueuedTime,
		LatestEnq:     events[0].EnqueuedTime,
	}

	var prevSeq uint64
	for i, e := range events {
		if e.Partition != partition {
			return Batch{}, fmt.Errorf("batch: event %d belongs to partition %q, want %q", i, e.Partition, partition)
		}
		if i > 0 && e.SequenceNumber <= prevSeq {
			return Batch{}, fmt.Errorf("batch: sequence numbers must strictly increase, got %d after %d", e.SequenceNumber, prevSeq)
		}
		prevSeq = e.SequenceNumber
		if e.EnqueuedTime.Before(b.EarliestEnq) {
			b.EarliestEnq = e.EnqueuedTime
		}
		if e.EnqueuedTime.After(b.LatestEnq) {
			b.LatestEnq = e.EnqueuedTime
		}
	}
	b.LastSequence = events[len(events)-1].SequenceNumber
	return b, nil
}
