package orchestrator

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// installSignalHandling returns a context cancelled on the first SIGINT or
// SIGTERM (spec.md §4.6's "first signal → initiate graceful shutdown"); the
// returned forced channel closes on a second signal of either kind,
// signalling the caller to force-exit immediately. Adapted from the
// teacher's cmd/audicia/main.go signal.NotifyContext usage, extended to a
// two-signal policy since NotifyContext alone only ever fires once.
func installSignalHandling(parent context.Context) (ctx context.Context, forced <-chan struct{}, stop func()) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	forceCh := make(chan struct{})

	go func() {
		seen := 0
		for range sigCh {
			seen++
			if seen == 1 {
				cancel()
				continue
			}
			close(forceCh)
			return
		}
	}()

	stop = func() {
		signal.Stop(sigCh)
		close(sigCh)
		cancel()
	}
	return ctx, forceCh, stop
}
