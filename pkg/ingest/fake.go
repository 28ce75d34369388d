package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/MiguelElGallo/evsnow/pkg/model"
)

// FakeIngestClient is an in-memory IngestClient/ChannelHandle test double,
// the ingest-side collaborator for the worker/mapping scenarios in spec.md
// §8, adapted from the broker package's FakeBroker.
type FakeIngestClient struct {
	mu       sync.Mutex
	channels map[string]*FakeChannelHandle
	OpenErr  error
}

func NewFakeIngestClient() *FakeIngestClient {
	return &FakeIngestClient{channels: make(map[string]*FakeChannelHandle)}
}

func (f *FakeIngestClient) Open(ctx context.Context, partition string) (ChannelHandle, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.channels[partition]; ok {
		return ch, nil
	}
	ch := &FakeChannelHandle{Partition: partition}
	f.channels[partition] = ch
	return ch, nil
}

func (f *FakeIngestClient) Close(ctx context.Context) error { return nil }

// Channel returns the handle opened for partition, or nil if none was.
func (f *FakeIngestClient) Channel(partition string) *FakeChannelHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[partition]
}

// FakeChannelHandle is a single-partition in-memory channel. SendErr and
// DurabilityErr let tests inject the transient/permanent failures spec.md
// §8's scenarios exercise; DurabilityDelay simulates a slow ack to test
// ack_timeout handling.
type FakeChannelHandle struct {
	Partition string

	mu     sync.Mutex
	sent   []model.Batch
	closed bool

	// SendErr, if non-nil, is returned by every Send while AlwaysFail is
	// set (permanent failure scenarios). FailNSends, if > 0, instead makes
	// SendErr transient: it is returned for exactly that many calls, after
	// which Send succeeds unless AlwaysFail is set.
	SendErr    error
	AlwaysFail bool
	FailNSends int

	DurabilityErr   error
	DurabilityDelay time.Duration
}

func (c *FakeChannelHandle) Send(ctx context.Context, batch model.Batch) (AckToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.FailNSends > 0 {
		c.FailNSends--
		return AckToken{}, c.SendErr
	}
	if c.AlwaysFail && c.SendErr != nil {
		return AckToken{}, c.SendErr
	}
	c.sent = append(c.sent, batch)
	return AckToken{Partition: c.Partition, LastSequence: batch.LastSequence, issuedAt: time.Now()}, nil
}

func (c *FakeChannelHandle) WaitForDurable(ctx context.Context, token AckToken, deadline time.Duration) (WaitResult, error) {
	if c.DurabilityDelay > deadline {
		return WaitTimeout, context.DeadlineExceeded
	}
	if c.DurabilityErr != nil {
		return WaitOK, c.DurabilityErr
	}
	return WaitOK, nil
}

func (c *FakeChannelHandle) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// SentBatches returns every batch handed to Send, in order.
func (c *FakeChannelHandle) SentBatches() []model.Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Batch(nil), c.sent...)
}
