// Package worker implements PartitionWorker (spec.md §4.4): the
// receive-assemble-ingest-checkpoint loop that runs once per broker
// partition, one outstanding batch at a time, never advancing the
// checkpoint ahead of a durable ack.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/MiguelElGallo/evsnow/pkg/assembler"
	"github.com/MiguelElGallo/evsnow/pkg/broker"
	"github.com/MiguelElGallo/evsnow/pkg/checkpoint"
	"github.com/MiguelElGallo/evsnow/pkg/ingest"
	"github.com/MiguelElGallo/evsnow/pkg/model"
	"github.com/MiguelElGallo/evsnow/pkg/retry"
	"github.com/MiguelElGallo/evsnow/pkg/telemetry"
)

// Config bundles the per-partition settings derived from a mapping's
// configuration and batching overrides (spec.md §6).
type Config struct {
	Key                   model.Key
	Partition             string
	MaxBatchSize          int
	MaxWait               time.Duration
	PollMaxEvents         int
	StartPosition         broker.StartPosition
	AckTimeout            time.Duration
	CheckpointSaveTimeout time.Duration
}

// PartitionWorker is one partition's cooperative ingest loop.
type PartitionWorker struct {
	cfg       Config
	broker    broker.Broker
	client    ingest.IngestClient
	store     checkpoint.Store
	policy    retry.Policy
	log       logr.Logger
	tracer    telemetry.Tracer
	assembler *assembler.Assembler

	stats statsBox
}

// New builds a PartitionWorker. brk and client are shared across every
// worker of the mapping; store is shared process-wide. tracer may be nil,
// in which case telemetry.NoopTracer is used (spec.md §9 Design Notes:
// Tracer is an optional external collaborator, never a hard dependency).
func New(cfg Config, brk broker.Broker, client ingest.IngestClient, store checkpoint.Store, policy retry.Policy, tracer telemetry.Tracer, log logr.Logger) *PartitionWorker {
	if tracer == nil {
		tracer = telemetry.NoopTracer
	}
	w := &PartitionWorker{
		cfg:       cfg,
		broker:    brk,
		client:    client,
		store:     store,
		policy:    policy,
		log:       log.WithName("worker").WithValues("partition", cfg.Partition),
		tracer:    tracer,
		assembler: assembler.New(cfg.Partition, cfg.MaxBatchSize, cfg.MaxWait),
	}
	w.stats.stats = Stats{Partition: cfg.Partition, State: StateInitializing}
	return w
}

// Stats returns a snapshot of this worker's current progress.
func (w *PartitionWorker) Stats() Stats { return w.stats.snapshot() }

// Run executes startup, the steady-state loop, and shutdown drain, in
// order. It returns nil only after a clean cancellation-triggered drain;
// any other return is the unrecoverable error that put the worker into
// StateFailed.
func (w *PartitionWorker) Run(ctx context.Context) error {
	cursor, channel, err := w.startup(ctx)
	if err != nil {
		w.setFailed(err.Error())
		return fmt.Errorf("partition %s: startup: %w", w.cfg.Partition, err)
	}
	defer func() { _ = cursor.Close(context.Background()) }()

	w.setState(StateRunning)

	loopErr := w.steadyState(ctx, cursor, channel)
	if loopErr != nil && !isCancellation(loopErr) {
		w.setFailed(loopErr.Error())
		_ = channel.Close(context.Background())
		return fmt.Errorf("partition %s: %w", w.cfg.Partition, loopErr)
	}

	w.setState(StateDraining)
	if err := w.drain(channel); err != nil {
		w.setFailed(err.Error())
		_ = channel.Close(context.Background())
		return fmt.Errorf("partition %s: drain: %w", w.cfg.Partition, err)
	}

	if err := channel.Close(context.Background()); err != nil {
		w.log.V(1).Info("error closing channel on shutdown", "error", err)
	}
	w.setState(StateClosed)
	return nil
}

// setState records a state transition and counts it, same as setFailed.
func (w *PartitionWorker) setState(s State) {
	w.stats.setState(s)
	w.tracer.CounterAdd("worker_state_transitions", 1)
}

// setFailed records the terminal failure state and counts it as a
// transition, same as setState.
func (w *PartitionWorker) setFailed(reason string) {
	w.stats.setFailed(reason)
	w.tracer.CounterAdd("worker_state_transitions", 1)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// startup implements spec.md §4.4's three startup steps.
func (w *PartitionWorker) startup(ctx context.Context) (broker.Cursor, ingest.ChannelHandle, error) {
	all, err := w.store.LoadAll(ctx, w.cfg.Key.Namespace, w.cfg.Key.Hub, w.cfg.Key.TargetDB, w.cfg.Key.TargetSchema, w.cfg.Key.TargetTable)
	if err != nil {
		return nil, nil, fmt.Errorf("loading checkpoint: %w", err)
	}
	cp, have := all[w.cfg.Partition]

	cursor, err := w.broker.OpenCursor(ctx, w.cfg.Partition, cp.Waterlevel, have, w.cfg.StartPosition)
	if err != nil {
		return nil, nil, fmt.Errorf("opening broker cursor: %w", err)
	}

	channel, err := w.client.Open(ctx, w.cfg.Partition)
	if err != nil {
		_ = cursor.Close(ctx)
		return nil, nil, fmt.Errorf("opening ingest channel: %w", err)
	}

	return cursor, channel, nil
}

// steadyState is the per-iteration loop of spec.md §4.4: receive, assemble,
// ingest one batch at a time, checkpoint, repeat until ctx is cancelled.
func (w *PartitionWorker) steadyState(ctx context.Context, cursor broker.Cursor, channel ingest.ChannelHandle) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Never poll more events than the assembler has room for, so its
		// buffer stays within MaxBatchSize.
		maxEvents := w.cfg.PollMaxEvents
		if room := w.cfg.MaxBatchSize - w.assembler.Len(); room > 0 && room < maxEvents {
			maxEvents = room
		}
		events, err := cursor.Receive(ctx, maxEvents)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("receiving from broker: %w", err)
		}

		ready := false
		for _, e := range events {
			if w.assembler.Add(e) {
				ready = true
			}
		}
		if !ready && w.assembler.Ready() {
			ready = true
		}
		if !ready {
			continue
		}

		batch, ok, err := w.assembler.Take()
		if err != nil {
			return fmt.Errorf("assembling batch: %w", err)
		}
		if !ok {
			continue
		}

		if err := w.ingestBatch(ctx, channel, batch); err != nil {
			return err
		}
	}
}

// ingestBatch sends batch, waits for its durable ack, and checkpoints on
// success. On failure (send, ack wait, or checkpoint save) it consults the
// RetryPolicy and either retries the same batch or propagates the error
// (spec.md §4.4, §4.7).
func (w *PartitionWorker) ingestBatch(ctx context.Context, channel ingest.ChannelHandle, batch model.Batch) error {
	span := w.tracer.Span("ingest_batch")
	defer span.End()

	start := time.Now()
	attempt := 0
	for {
		attempt++

		token, err := channel.Send(ctx, batch)
		if err == nil {
			var res ingest.WaitResult
			res, err = channel.WaitForDurable(ctx, token, w.cfg.AckTimeout)
			if err == nil {
				if res == ingest.WaitOK {
					if err = w.commit(ctx, batch); err == nil {
						return nil
					}
				} else {
					err = fmt.Errorf("durable ack wait returned %v", res)
				}
			}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		decision := w.policy.Classify(ctx, err, attempt, time.Since(start))
		switch decision.Kind {
		case retry.DecisionRetryAfter:
			w.log.V(1).Info("retrying batch send", "attempt", attempt, "after", decision.After, "error", err)
			w.tracer.CounterAdd("retries", 1)
			select {
			case <-time.After(decision.After):
			case <-ctx.Done():
				return ctx.Err()
			}
			// A transient failure may mean the handle needs renewal; Open is
			// idempotent, so this is a no-op unless the client dropped the
			// handle internally.
			if reopened, reopenErr := w.client.Open(ctx, w.cfg.Partition); reopenErr == nil {
				channel = reopened
			}
		case retry.DecisionGiveUp:
			return fmt.Errorf("exhausted retry attempts (%d): %w", attempt, err)
		default:
			return fmt.Errorf("fatal ingest error: %w", err)
		}
	}
}

func (w *PartitionWorker) commit(ctx context.Context, batch model.Batch) error {
	saveCtx, cancel := context.WithTimeout(ctx, w.checkpointSaveTimeout())
	defer cancel()

	lastEvent := batch.Events[len(batch.Events)-1]
	metadata := map[string]any{"offset": lastEvent.Offset, "batch_size": batch.Count}
	if err := w.store.Save(saveCtx, w.cfg.Key, batch.LastSequence, metadata); err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	w.tracer.Event("checkpoint.committed", telemetry.Attr{Key: "lag_seconds", Value: time.Since(lastEvent.EnqueuedTime).Seconds()})

	var bytes int
	for _, e := range batch.Events {
		bytes += len(e.Body)
	}
	w.stats.recordIngest(batch.LastSequence, batch.Count, bytes)
	w.tracer.CounterAdd("messages_ingested", float64(batch.Count))
	w.tracer.CounterAdd("batches_ingested", 1)
	w.tracer.CounterAdd("bytes_ingested", float64(bytes))
	return nil
}

func (w *PartitionWorker) checkpointSaveTimeout() time.Duration {
	if w.cfg.CheckpointSaveTimeout > 0 {
		return w.cfg.CheckpointSaveTimeout
	}
	return 10 * time.Second
}

// drain implements spec.md §4.4's shutdown sequence: flush whatever is
// buffered and ingest it to completion before the worker closes.
func (w *PartitionWorker) drain(channel ingest.ChannelHandle) error {
	batch, ok, err := w.assembler.FlushIfNonempty()
	if err != nil {
		return fmt.Errorf("flushing on shutdown: %w", err)
	}
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.AckTimeout)
	defer cancel()
	return w.ingestBatch(ctx, channel, batch)
}
