package retry

import (
	"context"
	"time"
)

// BoundedPolicy wraps a pluggable Policy (e.g. a model-assisted classifier)
// with a hard timeout. If the wrapped policy does not answer within
// Timeout, the call falls back to Fallback's decision for the same error
// (spec.md §4.7, §9: "classifier calls must be bounded-latency... on
// timeout, fall back to the default decision"). This also guarantees a
// slow/hanging classifier can never block shutdown: the worker always
// observes Classify returning within Timeout.
type BoundedPolicy struct {
	Delegate Policy
	Fallback Policy
	Timeout  time.Duration
}

func (b *BoundedPolicy) Classify(ctx context.Context, err error, attempt int, elapsed time.Duration) Decision {
	callCtx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	result := make(chan Decision, 1)
	go func() {
		result <- b.Delegate.Classify(callCtx, err, attempt, elapsed)
	}()

	select {
	case d := <-result:
		return d
	case <-callCtx.Done():
		return b.Fallback.Classify(ctx, err, attempt, elapsed)
	}
}
