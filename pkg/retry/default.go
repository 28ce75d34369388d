package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultPolicy is the exponential-backoff-with-cap implementation that
// ships as part of the core (spec.md §4.7). Transient kinds retry with
// delay min(base·2^(attempt-1), cap); permanent kinds are always Fatal;
// exceeding MaxAttempts is GiveUp.
//
// The curve itself is computed with backoff.ExponentialBackOff
// (github.com/cenkalti/backoff/v4), the same library the retrieval pack's
// fearfates-connect Snowpipe Streaming channel uses to poll
// WaitUntilCommitted — here it drives the worker's retry-after duration
// instead of an in-process poll loop.
type DefaultPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	curve *backoff.ExponentialBackOff
}

// NewDefaultPolicy builds a DefaultPolicy per spec.md §6's
// retry.max_attempts / retry.base_delay / retry.max_delay configuration
// options.
func NewDefaultPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) *DefaultPolicy {
	curve := backoff.NewExponentialBackOff()
	curve.InitialInterval = baseDelay
	curve.MaxInterval = maxDelay
	curve.Multiplier = 2
	curve.RandomizationFactor = 0
	curve.MaxElapsedTime = 0 // Classify enforces MaxAttempts itself

	return &DefaultPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		curve:       curve,
	}
}

func (p *DefaultPolicy) Classify(_ context.Context, err error, attempt int, _ time.Duration) Decision {
	var classified *Error
	if errors.As(err, &classified) && classified.Kind == KindPermanent {
		return Fatal()
	}

	if attempt >= p.MaxAttempts {
		return GiveUp()
	}

	p.curve.Reset()
	var delay time.Duration
	for i := 0; i < attempt; i++ {
		delay = p.curve.NextBackOff()
	}
	if delay <= 0 {
		delay = p.MaxDelay
	}
	return RetryAfter(delay)
}
