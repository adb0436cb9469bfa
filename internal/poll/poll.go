// Package poll waits for an asynchronous change to become visible.
package poll

import (
	"context"
	"fmt"
	"time"

	"autoeval/internal/logging"
)

// Checkpointer is the slice of control.Controller the poller needs.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
	Sleep(ctx context.Context, d time.Duration) error
}

// Predicate reports whether the awaited condition holds. An error counts as
// "not yet".
type Predicate func(ctx context.Context) (bool, error)

// Outcome of a wait.
type Outcome int

const (
	Ready Outcome = iota
	TimedOut
)

func (o Outcome) String() string {
	if o == TimedOut {
		return "timed_out"
	}
	return "ready"
}

// Result describes a finished wait. A timeout is a result, not an error.
type Result struct {
	Outcome  Outcome
	Attempts int
	Elapsed  time.Duration
	LastErr  error
}

// Ready reports whether the predicate held.
func (r Result) Ready() bool { return r.Outcome == Ready }

// WaitUntil evaluates pred up to maxAttempts times, sleeping interval between
// evaluations. It returns as soon as pred holds. The only error it returns is
// the cancellation raised by the checkpointer.
func WaitUntil(ctx context.Context, cp Checkpointer, pred Predicate, interval time.Duration, maxAttempts int) (Result, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	start := time.Now()
	res := Result{Outcome: TimedOut}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := cp.Checkpoint(ctx); err != nil {
			return res, err
		}
		res.Attempts = attempt

		ok, err := pred(ctx)
		if err != nil {
			res.LastErr = err
			logging.SequencerDebug("poll attempt %d/%d: %v", attempt, maxAttempts, err)
		}
		if ok {
			res.Outcome = Ready
			res.Elapsed = time.Since(start)
			return res, nil
		}

		if attempt < maxAttempts {
			if err := cp.Sleep(ctx, interval); err != nil {
				return res, err
			}
		}
	}

	res.Elapsed = time.Since(start)
	return res, nil
}

func (r Result) String() string {
	return fmt.Sprintf("%s after %d attempts (%v)", r.Outcome, r.Attempts, r.Elapsed.Round(time.Millisecond))
}
