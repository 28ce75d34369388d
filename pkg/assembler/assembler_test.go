package assembler

import (
	"testing"
	"time"

	"github.com/MiguelElGallo/evsnow/pkg/model"
)

func makeEvent(partition string, seq uint64) model.Event {
	return model.Event{
		Partition:      partition,
		SequenceNumber: seq,
		EnqueuedTime:   time.Now(),
		Body:           []byte("{}"),
	}
}

func TestAssemblerReadyOnMaxSize(t *testing.T) {
	a := New("0", 3, time.Hour)

	if ready := a.Add(makeEvent("0", 1)); ready {
		t.Fatalf("ready after 1 event, want false")
	}
	if ready := a.Add(makeEvent("0", 2)); ready {
		t.Fatalf("ready after 2 events, want false")
	}
	if ready := a.Add(makeEvent("0", 3)); !ready {
		t.Fatalf("not ready after 3 events (max size), want true")
	}
}

func TestAssemblerReadyOnMaxWait(t *testing.T) {
	a := New("0", 100, 10*time.Millisecond)
	a.Add(makeEvent("0", 1))
	time.Sleep(20 * time.Millisecond)
	if !a.Ready() {
		t.Fatalf("not ready after max wait elapsed, want true")
	}
}

func TestAssemblerTakeResetsBuffer(t *testing.T) {
	a := New("0", 3, time.Hour)
	a.Add(makeEvent("0", 1))
	a.Add(makeEvent("0", 2))

	batch, ok, err := a.Take()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("want ok=true on non-empty take")
	}
	if batch.LastSequence != 2 || batch.Count != 2 {
		t.Fatalf("unexpected batch: %+v", batch)
	}

	_, ok, err = a.Take()
	if err != nil {
		t.Fatalf("unexpected error on second take: %v", err)
	}
	if ok {
		t.Fatalf("second take on empty buffer should return ok=false")
	}
}

func TestAssemblerFlushIfNonemptyOnEmptyIsNoop(t *testing.T) {
	a := New("0", 3, time.Hour)
	_, ok, err := a.FlushIfNonempty()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("flush of empty assembler should report ok=false")
	}
}

func TestAssemblerFlushIfNonemptyReturnsBuffered(t *testing.T) {
	a := New("0", 100, time.Hour)
	a.Add(makeEvent("0", 1))

	batch, ok, err := a.FlushIfNonempty()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || batch.Count != 1 {
		t.Fatalf("unexpected flush result: ok=%v batch=%+v", ok, batch)
	}
}

func TestAssemblerNeverExceedsMaxSize(t *testing.T) {
	a := New("0", 5, time.Hour)
	for i := uint64(1); i <= 5; i++ {
		a.Add(makeEvent("0", i))
		if a.Len() > 5 {
			t.Fatalf("assembler buffered %d events, exceeds max size 5", a.Len())
		}
	}
}
