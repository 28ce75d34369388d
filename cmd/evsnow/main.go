package main

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/go-logr/logr"

	"github.com/MiguelElGallo/evsnow/pkg/broker"
	"github.com/MiguelElGallo/evsnow/pkg/checkpoint"
	"github.com/MiguelElGallo/evsnow/pkg/config"
	"github.com/MiguelElGallo/evsnow/pkg/ingest"
	"github.com/MiguelElGallo/evsnow/pkg/logging"
	"github.com/MiguelElGallo/evsnow/pkg/mapping"
	"github.com/MiguelElGallo/evsnow/pkg/metrics"
	"github.com/MiguelElGallo/evsnow/pkg/orchestrator"
	"github.com/MiguelElGallo/evsnow/pkg/retry"
)

// Build-time variables injected via ldflags, matching the teacher's
// cmd/audicia/main.go version reporting.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("evsnow %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	cfg := config.Load()
	log := logging.New(cfg.DevMode)

	status := run(context.Background(), cfg, log)
	os.Exit(status.Code())
}

func run(ctx context.Context, cfg config.Config, log logr.Logger) orchestrator.ExitStatus {
	specs, err := config.LoadMappings(cfg.MappingsFile)
	if err != nil {
		log.Error(err, "loading mappings file")
		return orchestrator.ExitMappingFailed
	}

	dsn, err := config.SnowflakeDSN(cfg.ConnectionProfile)
	if err != nil {
		log.Error(err, "loading Snowflake credential")
		return orchestrator.ExitMappingFailed
	}

	store, err := checkpoint.NewSnowflakeStore(dsn, log)
	if err != nil {
		log.Error(err, "connecting checkpoint store")
		return orchestrator.ExitMappingFailed
	}
	defer func() { _ = store.Close(context.Background()) }()

	policy := retry.NewDefaultPolicy(cfg.RetryMaxAttempts, cfg.RetryBaseDelay, cfg.RetryMaxDelay)

	startPosition, err := broker.ParseStartPosition(cfg.StartPosition)
	if err != nil {
		log.Error(err, "parsing start_position")
		return orchestrator.ExitMappingFailed
	}
	defaults := mapping.Defaults{
		MaxBatchSize:          cfg.MaxBatchSize,
		MaxWait:               cfg.MaxWait,
		Prefetch:              cfg.Prefetch,
		StartPosition:         startPosition,
		AckTimeout:            cfg.AckTimeout,
		CheckpointSaveTimeout: cfg.CheckpointSaveTimeout,
	}

	brokerFactory := func(spec mapping.Spec) (broker.Broker, error) {
		return broker.NewEventHubBroker(
			spec.SourceNamespace,
			spec.SourceHub,
			spec.ConsumerGroup,
			cfg.ConnectionProfile.EventHubConnectionStr,
			log,
		), nil
	}
	clientFactory := func(spec mapping.Spec) (ingest.IngestClient, error) {
		return ingest.NewSnowflakeIngestClient(dsn, spec.TargetDB, spec.TargetSchema, spec.TargetTable, log)
	}

	supervisors := make([]*mapping.Supervisor, 0, len(specs))
	for _, spec := range specs {
		supervisors = append(supervisors, mapping.New(spec, defaults, brokerFactory, clientFactory, store, policy, log))
	}

	orch := orchestrator.New(supervisors, cfg.DrainDeadline, log)

	metricsSrv := startMetricsServer(cfg.MetricsBindAddress, log)
	defer func() { _ = metricsSrv.Shutdown(context.Background()) }()

	status := startWithRetry(ctx, orch, cfg.StartupMaxRetries, log)
	fmt.Fprint(os.Stderr, orchestrator.FormatStatus(orch.Stats()))
	return status
}

// startWithRetry wraps Orchestrator.Run with bounded exponential backoff,
// grounded on the teacher's cmd/audicia/main.go startWithRetry: it handles
// transient startup failures (a broker or checkpoint store unreachable at
// boot) without the caller needing to implement its own restart loop. A
// clean or forced exit is returned immediately; only ExitMappingFailed is
// retried.
func startWithRetry(ctx context.Context, orch *orchestrator.Orchestrator, maxRetries int, log logr.Logger) orchestrator.ExitStatus {
	for attempt := 0; ; attempt++ {
		status := orch.Run(ctx)
		if status == orchestrator.ExitClean || status == orchestrator.ExitForced {
			return status
		}
		if attempt >= maxRetries {
			return status
		}

		delay := time.Duration(math.Min(float64(time.Second)*math.Pow(2, float64(attempt+1)), float64(60*time.Second)))
		log.Info("mapping failure during startup, retrying", "attempt", attempt+1, "maxRetries", maxRetries, "delay", delay)
		select {
		case <-ctx.Done():
			return status
		case <-time.After(delay):
		}
	}
}

func startMetricsServer(addr string, log logr.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "metrics server stopped")
		}
	}()
	return srv
}
