// Package orchestrator implements Orchestrator (spec.md §4.6): owns every
// configured mapping's MappingSupervisor, installs signal handling, and
// coordinates process-wide graceful shutdown within a bounded drain
// deadline. Adapted from the teacher's cmd/audicia/main.go signal handling
// and pkg/operator/operator.go's start/stop sequencing (there: one
// controller-runtime manager; here: N mapping supervisors run
// concurrently via golang.org/x/sync/errgroup).
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/MiguelElGallo/evsnow/pkg/mapping"
)

// ExitStatus is the process exit status spec.md §6 defines for the
// orchestrator wrapper.
type ExitStatus int

const (
	ExitClean         ExitStatus = 0
	ExitMappingFailed ExitStatus = 1
	ExitForced        ExitStatus = 2
)

func (e ExitStatus) Code() int { return int(e) }

// Orchestrator owns every mapping's supervisor for the process's lifetime.
type Orchestrator struct {
	supervisors   []*mapping.Supervisor
	drainDeadline time.Duration
	log           logr.Logger
}

// New builds an Orchestrator. drainDeadline is spec.md §6's
// drain_deadline (default 30s, per spec.md §4.6).
func New(supervisors []*mapping.Supervisor, drainDeadline time.Duration, log logr.Logger) *Orchestrator {
	if drainDeadline <= 0 {
		drainDeadline = 30 * time.Second
	}
	return &Orchestrator{supervisors: supervisors, drainDeadline: drainDeadline, log: log.WithName("orchestrator")}
}

// Run starts every mapping, installs signal handling, and blocks until
// shutdown completes, returning the exit status spec.md §6 specifies.
func (o *Orchestrator) Run(parent context.Context) ExitStatus {
	ctx, forced, stop := installSignalHandling(parent)
	defer stop()

	var g errgroup.Group
	for _, sup := range o.supervisors {
		sup := sup
		g.Go(func() error { return sup.Run(ctx) })
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return o.finish(err)
	case <-forced:
		o.log.Info("second signal received, forcing exit")
		return ExitForced
	case <-ctx.Done():
		o.log.Info("graceful shutdown initiated, draining mappings", "deadline", o.drainDeadline)
		return o.drain(done, forced)
	}
}

func (o *Orchestrator) drain(done chan error, forced <-chan struct{}) ExitStatus {
	timer := time.NewTimer(o.drainDeadline)
	defer timer.Stop()

	select {
	case err := <-done:
		return o.finish(err)
	case <-forced:
		o.log.Info("second signal received during drain, forcing exit")
		return ExitForced
	case <-timer.C:
		o.log.Info("drain deadline exceeded, abandoning remaining mappings")
		return ExitForced
	}
}

func (o *Orchestrator) finish(err error) ExitStatus {
	if err != nil {
		o.log.Error(err, "a mapping reported failure")
		return ExitMappingFailed
	}
	return ExitClean
}

// Stats returns one Stats snapshot per mapping, in supervisor order. The
// counters are not summed across mappings; WorstHealth derives the
// process-wide health from this list.
func (o *Orchestrator) Stats() []mapping.Stats {
	stats := make([]mapping.Stats, 0, len(o.supervisors))
	for _, sup := range o.supervisors {
		stats = append(stats, sup.Stats())
	}
	return stats
}

// WorstHealth returns the worst health across every mapping, degraded
// ranking above healthy and stopped ranking above degraded.
func WorstHealth(stats []mapping.Stats) mapping.Health {
	worst := mapping.HealthHealthy
	for _, s := range stats {
		if s.Health > worst {
			worst = s.Health
		}
	}
	return worst
}

// FormatStatus renders a human-readable per-mapping status report, printed
// to stderr on shutdown (spec.md's ambient observability behavior).
func FormatStatus(stats []mapping.Stats) string {
	out := ""
	for _, s := range stats {
		out += fmt.Sprintf("mapping %s: health=%s messages=%d batches=%d bytes=%d\n",
			s.Mapping, s.Health, s.MessagesIngested, s.BatchesIngested, s.BytesIngested)
	}
	return out
}
