package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/MiguelElGallo/evsnow/pkg/model"
)

func TestFakeIngestClientOpenIsIdempotent(t *testing.T) {
	c := NewFakeIngestClient()
	ctx := context.Background()

	h1, err := c.Open(ctx, "0")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h2, err := c.Open(ctx, "0")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if h1 != h2 {
		t.Fatal("expected Open to return the same handle for an already-open partition")
	}
}

func TestFakeChannelHandleSendThenWaitForDurable(t *testing.T) {
	c := NewFakeIngestClient()
	ctx := context.Background()
	h, _ := c.Open(ctx, "0")

	batch, err := model.NewBatch("0", []model.Event{{Partition: "0", SequenceNumber: 1, EnqueuedTime: time.Now()}}, time.Now())
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}

	token, err := h.Send(ctx, batch)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	res, err := h.WaitForDurable(ctx, token, time.Second)
	if err != nil {
		t.Fatalf("WaitForDurable: %v", err)
	}
	if res != WaitOK {
		t.Fatalf("expected WaitOK, got %v", res)
	}
}

func TestFakeChannelHandleSendErrPropagates(t *testing.T) {
	c := NewFakeIngestClient()
	ctx := context.Background()
	h, _ := c.Open(ctx, "0")
	fh := c.Channel("0")
	fh.SendErr = context.DeadlineExceeded
	fh.AlwaysFail = true

	batch, _ := model.NewBatch("0", []model.Event{{Partition: "0", SequenceNumber: 1, EnqueuedTime: time.Now()}}, time.Now())
	if _, err := h.Send(ctx, batch); err == nil {
		t.Fatal("expected SendErr to propagate")
	}
}
