package retry

import (
	"context"
	"time"
)

// DecisionKind is the outcome of classifying a failure.
type DecisionKind int

const (
	// DecisionRetryAfter retries the same batch against the same channel
	// (re-opening it if needed) after the given duration.
	DecisionRetryAfter DecisionKind = iota
	// DecisionGiveUp means the attempt cap was exceeded; propagates to the
	// supervisor like Fatal but is logged distinctly (spec.md §4.7).
	DecisionGiveUp
	// DecisionFatal is a non-recoverable error; the worker stops and the
	// error propagates to the supervisor, whose other workers keep running.
	DecisionFatal
)

// Decision is the result of Policy.Classify.
type Decision struct {
	Kind  DecisionKind
	After time.Duration
}

func RetryAfter(d time.Duration) Decision { return Decision{Kind: DecisionRetryAfter, After: d} }
func GiveUp() Decision                    { return Decision{Kind: DecisionGiveUp} }
func Fatal() Decision                     { return Decision{Kind: DecisionFatal} }

// Policy classifies a failure encountered by a PartitionWorker into a
// retry decision. A pluggable, richer classifier (e.g. one backed by an
// external service) may satisfy this interface in place of the default;
// the core only ever depends on this interface (spec.md §4.7).
type Policy interface {
	Classify(ctx context.Context, err error, attempt int, elapsed time.Duration) Decision
}
