// Package retry implements the save policy: press save a fixed number of
// times, clearing any confirmation dialog that pops up in between.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autoeval/internal/form"
	"autoeval/internal/logging"
)

// Checkpointer is the slice of control.Controller the policy needs.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
	Sleep(ctx context.Context, d time.Duration) error
}

// SavePolicy runs Save Attempts times unconditionally. It is not error
// driven: a successful save is still repeated.
type SavePolicy struct {
	Attempts int
	// Delay is the full spacing of one attempt, including Settle.
	Delay time.Duration
	// Settle is the wait between Save and the first dialog check.
	Settle time.Duration
	// DialogSettle is the wait after a dismissal.
	DialogSettle time.Duration
}

// Report summarizes a policy run.
type Report struct {
	Saves      int
	Dismissals int
}

// Run executes the policy. An ErrActionMissing from Save ends it at once
// and is returned so the caller can report it; cancellation is returned as is.
func (p SavePolicy) Run(ctx context.Context, cp Checkpointer, fe form.Frontend) (Report, error) {
	var rep Report
	attempts := max(p.Attempts, 1)

	for i := 0; i < attempts; i++ {
		if err := cp.Checkpoint(ctx); err != nil {
			return rep, err
		}
		logging.Sequencer("save %d/%d", i+1, attempts)
		if err := fe.Dispatch(ctx, form.Save()); err != nil {
			if errors.Is(err, form.ErrActionMissing) {
				return rep, err
			}
			return rep, fmt.Errorf("save attempt %d: %w", i+1, err)
		}
		rep.Saves++

		if err := cp.Sleep(ctx, p.Settle); err != nil {
			return rep, err
		}
		dismissed, err := DismissIfPresent(ctx, cp, fe, p.DialogSettle)
		if err != nil {
			return rep, err
		}
		if dismissed {
			rep.Dismissals++
		}

		if err := cp.Sleep(ctx, max(p.Delay-p.Settle, 0)); err != nil {
			return rep, err
		}
		dismissed, err = DismissIfPresent(ctx, cp, fe, p.DialogSettle)
		if err != nil {
			return rep, err
		}
		if dismissed {
			rep.Dismissals++
		}
	}
	return rep, nil
}

// DismissIfPresent checks for an incidental dialog and dismisses it, then
// waits settle. It is idempotent: with no dialog it dispatches nothing. A
// failed check or a dismiss button that vanished is logged and treated as
// "no dialog".
func DismissIfPresent(ctx context.Context, cp Checkpointer, fe form.Frontend, settle time.Duration) (bool, error) {
	if err := cp.Checkpoint(ctx); err != nil {
		return false, err
	}
	present, err := fe.IsDialogPresent(ctx)
	if err != nil {
		logging.SequencerWarn("dialog check failed: %v", err)
		return false, nil
	}
	if !present {
		return false, nil
	}
	if err := fe.Dispatch(ctx, form.DismissDialog()); err != nil {
		if errors.Is(err, form.ErrActionMissing) {
			logging.SequencerWarn("dialog vanished before dismiss: %v", err)
			return false, nil
		}
		return false, fmt.Errorf("dismiss dialog: %w", err)
	}
	logging.SequencerDebug("dialog dismissed")
	if err := cp.Sleep(ctx, settle); err != nil {
		return true, err
	}
	return true, nil
}
