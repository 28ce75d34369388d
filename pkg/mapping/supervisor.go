// Package mapping implements MappingSupervisor (spec.md §4.5): one
// supervisor per configured mapping, owning the shared IngestClient for
// that mapping's target table and one PartitionWorker per broker
// partition. Fan-out and await-all across workers is grounded on
// golang.org/x/sync/errgroup, the concurrent fan-out primitive used
// throughout the retrieval pack (kedacore-keda, kluzzebass-gastrolog).
package mapping

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/MiguelElGallo/evsnow/pkg/broker"
	"github.com/MiguelElGallo/evsnow/pkg/checkpoint"
	"github.com/MiguelElGallo/evsnow/pkg/ingest"
	"github.com/MiguelElGallo/evsnow/pkg/metrics"
	"github.com/MiguelElGallo/evsnow/pkg/retry"
	"github.com/MiguelElGallo/evsnow/pkg/telemetry"
	"github.com/MiguelElGallo/evsnow/pkg/worker"
)

// healthPublishInterval is how often Run polls its own Stats to refresh
// the MappingsDegradedTotal gauge. Grounded on the teacher's
// audiciasource controller's checkpointTicker: a plain time.Ticker
// driving a periodic refresh alongside the main event loop.
const healthPublishInterval = 5 * time.Second

// BrokerFactory builds the Broker for one mapping's source.
type BrokerFactory func(spec Spec) (broker.Broker, error)

// IngestClientFactory builds the IngestClient for one mapping's target.
type IngestClientFactory func(spec Spec) (ingest.IngestClient, error)

// Supervisor runs one mapping end to end (spec.md §4.5).
type Supervisor struct {
	spec     Spec
	defaults Defaults

	brokerFactory BrokerFactory
	clientFactory IngestClientFactory
	store         checkpoint.Store
	policy        retry.Policy
	log           logr.Logger

	mu      sync.Mutex
	running bool
	workers []*worker.PartitionWorker
}

// New builds a Supervisor for one mapping. The broker and ingest client are
// not created until Run, since both need live connections.
func New(spec Spec, defaults Defaults, brokerFactory BrokerFactory, clientFactory IngestClientFactory, store checkpoint.Store, policy retry.Policy, log logr.Logger) *Supervisor {
	return &Supervisor{
		spec:          spec,
		defaults:      defaults,
		brokerFactory: brokerFactory,
		clientFactory: clientFactory,
		store:         store,
		policy:        policy,
		log:           log.WithName("mapping").WithValues("mapping", spec.Name()),
	}
}

// Run executes the startup order of spec.md §4.5, spawns one worker per
// partition, and blocks until every worker has returned (either because ctx
// was cancelled and they all drained cleanly, or because one failed). The
// error returned, if any, is the first worker failure encountered; siblings
// are not cancelled by one worker's failure — only the orchestrator's ctx
// does that — so a single bad partition degrades the mapping rather than
// stopping it.
func (s *Supervisor) Run(ctx context.Context) error {
	brk, err := s.brokerFactory(s.spec)
	if err != nil {
		return fmt.Errorf("mapping %s: building broker: %w", s.spec.Name(), err)
	}
	defer func() { _ = brk.Close(context.Background()) }()

	client, err := s.clientFactory(s.spec)
	if err != nil {
		return fmt.Errorf("mapping %s: opening ingest client: %w", s.spec.Name(), err)
	}
	defer func() { _ = client.Close(context.Background()) }()

	if err := s.store.EnsureTable(ctx); err != nil {
		return fmt.Errorf("mapping %s: ensuring control table: %w", s.spec.Name(), err)
	}

	partitions, err := brk.Connect(ctx)
	if err != nil {
		return fmt.Errorf("mapping %s: connecting to broker: %w", s.spec.Name(), err)
	}
	if len(partitions) == 0 {
		return fmt.Errorf("mapping %s: broker reported no partitions", s.spec.Name())
	}

	effective := s.defaults.withOverrides(s.spec.BatchingOverrides)
	workers := make([]*worker.PartitionWorker, 0, len(partitions))
	for _, p := range partitions {
		cfg := worker.Config{
			Key:                   s.spec.checkpointKey(p),
			Partition:             p,
			MaxBatchSize:          effective.MaxBatchSize,
			MaxWait:               effective.MaxWait,
			PollMaxEvents:         effective.Prefetch,
			StartPosition:         effective.StartPosition,
			AckTimeout:            effective.AckTimeout,
			CheckpointSaveTimeout: effective.CheckpointSaveTimeout,
		}
		tracer := telemetry.MetricsTracer{Mapping: s.spec.Name(), Partition: p}
		workers = append(workers, worker.New(cfg, brk, client, s.store, s.policy, tracer, s.log))
	}

	s.mu.Lock()
	s.workers = workers
	s.running = true
	s.mu.Unlock()

	healthDone := make(chan struct{})
	go s.publishHealthMetrics(ctx, healthDone)

	var g errgroup.Group
	for _, w := range workers {
		w := w
		g.Go(func() error { return w.Run(ctx) })
	}
	runErr := g.Wait()
	close(healthDone)

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.recordHealthMetric()

	if runErr != nil {
		return fmt.Errorf("mapping %s: %w", s.spec.Name(), runErr)
	}
	return nil
}

// publishHealthMetrics refreshes MappingsDegradedTotal on a ticker until
// done is closed, since degradation can occur between worker events with
// nothing else to trigger a gauge update.
func (s *Supervisor) publishHealthMetrics(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(healthPublishInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			s.recordHealthMetric()
		}
	}
}

func (s *Supervisor) recordHealthMetric() {
	degraded := 0.0
	if s.Stats().Health == HealthDegraded {
		degraded = 1
	}
	metrics.MappingsDegradedTotal.WithLabelValues(s.spec.Name()).Set(degraded)
}

// Stats returns the mapping-wide aggregate of every worker's stats
// (spec.md §4.5).
func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	workers := append([]*worker.PartitionWorker(nil), s.workers...)
	running := s.running
	s.mu.Unlock()

	statsList := make([]worker.Stats, 0, len(workers))
	for _, w := range workers {
		statsList = append(statsList, w.Stats())
	}
	return aggregate(s.spec.Name(), running, statsList)
}
