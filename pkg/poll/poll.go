// Package poll provides a bounded, cancellable retry loop shared by the
// readiness gate and the conversion orchestrator.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrBudgetExceeded is returned by Until when the time budget runs out
// before fn reports done. Callers treat it as a normal outcome, not a crash.
var ErrBudgetExceeded = errors.New("poll budget exceeded")

// Clock abstracts time so polling loops can be tested without real sleeps.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// System is the wall-clock Clock used outside tests.
var System Clock = systemClock{}

// Until calls fn immediately and then every interval until fn reports done,
// fn returns an error, the budget elapses, or ctx is cancelled. The sleep
// between attempts is cooperative; cancelling ctx unblocks it.
func Until(ctx context.Context, clock Clock, interval, budget time.Duration, fn func(ctx context.Context) (bool, error)) error {
	deadline := clock.Now().Add(budget)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if !clock.Now().Add(interval).Before(deadline) {
			return ErrBudgetExceeded
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(interval):
		}
	}
}
