package sequencer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autoeval/internal/config"
	"autoeval/internal/control"
	"autoeval/internal/form"
	"autoeval/internal/logging"
	"autoeval/internal/pacing"
	"autoeval/internal/poll"

	"github.com/google/uuid"
)

// run is the state of one Run call. It wraps the front-end so every dispatch
// lands in the action journal.
type run struct {
	form.Frontend
	e       *Engine
	id      string
	cfg     config.AutomationConfig
	ctl     *control.Controller
	rng     pacing.Source
	pace    *pacing.Scheduler
	audit   *logging.AuditLogger
	summary *Summary

	entity    form.EntityHandle
	entityIdx int
	processed map[string]bool
}

// Run executes one run on the snapshot of the configuration taken now.
// Whatever happens, the run state is back to Idle when Run returns. The
// error is nil for Completed and Stopped and describes the failure for
// Failed; ErrAlreadyRunning is returned without starting anything.
func (e *Engine) Run(ctx context.Context, mode Mode) (Summary, error) {
	if err := e.ctl.Begin(); err != nil {
		return Summary{}, err
	}
	timer := logging.StartTimer(logging.CategorySequencer, "Run")

	r := e.newRun(mode)
	logging.Sequencer("run %s started (%s mode)", r.id, mode)
	r.audit.RunStart(mode.String())
	r.emit(Event{Type: EventRunStarted, Message: fmt.Sprintf("%s mode", mode)})

	var err error
	switch mode {
	case ModeMulti:
		err = r.runMulti(ctx)
	default:
		err = r.runSingle(ctx)
	}

	outcome, reason, runErr := r.classify(ctx, err)
	r.summary.Outcome = outcome
	r.summary.Reason = reason
	r.summary.Duration = time.Since(r.summary.StartedAt)
	final := *r.summary

	e.mu.Lock()
	e.last = &final
	e.mu.Unlock()

	e.ctl.End(outcome, reason)
	r.audit.RunEnd(string(outcome), runErr)
	timer.StopWithInfo()

	switch outcome {
	case control.StateStopped:
		logging.Sequencer("run %s stopped by user", r.id)
		r.emit(Event{Type: EventRunStopped, Message: "stopped by user", Summary: &final})
	case control.StateFailed:
		logging.SequencerError("run %s failed: %v", r.id, runErr)
		r.emit(Event{Type: EventRunFailed, Message: reason, Err: runErr, Summary: &final})
	default:
		logging.Sequencer("%s", final)
		r.emit(Event{Type: EventRunCompleted, Message: reason, Summary: &final})
	}
	return final, runErr
}

func (e *Engine) newRun(mode Mode) *run {
	cfg := e.Config()
	id := uuid.NewString()
	return &run{
		Frontend:  e.fe,
		e:         e,
		id:        id,
		cfg:       cfg,
		ctl:       e.ctl,
		rng:       e.rng,
		pace:      pacing.NewScheduler(cfg, e.rng),
		audit:     logging.Audit(id),
		summary:   &Summary{RunID: id, Mode: mode, StartedAt: time.Now()},
		processed: make(map[string]bool),
	}
}

// classify maps the error that ended the run to a terminal state.
func (r *run) classify(ctx context.Context, err error) (control.State, string, error) {
	switch {
	case err == nil:
		return control.StateCompleted, fmt.Sprintf("%d entities processed", len(r.summary.Entities)), nil
	case r.cancelled(ctx, err):
		return control.StateStopped, "stopped by user", nil
	default:
		return control.StateFailed, err.Error(), err
	}
}

func (r *run) runSingle(ctx context.Context) error {
	current := form.EntityHandle{Ref: "current", Label: "current entity"}
	_, err := r.processEntity(ctx, current)
	return err
}

// runMulti keeps entering the first pending entity not yet handled in this
// run. An empty discovery is the success condition.
func (r *run) runMulti(ctx context.Context) error {
	for {
		if err := r.ctl.Checkpoint(ctx); err != nil {
			return err
		}

		pending, err := r.DiscoverUnprocessedEntities(ctx)
		if err != nil {
			return fmt.Errorf("discover entities: %w", err)
		}
		next, ok := r.nextEntity(pending)
		if !ok {
			if len(pending) > 0 {
				r.warn(fmt.Sprintf("%d entities still pending but already processed in this run", len(pending)))
			} else if len(r.summary.Entities) == 0 {
				r.emit(Event{Type: EventDiscoveryEmpty, Message: "no pending entities"})
			}
			logging.Sequencer("no more pending entities")
			return nil
		}
		r.processed[next.Ref] = true

		err = r.switchTo(ctx, next)
		if err == nil {
			_, err = r.processEntity(ctx, next)
		}
		if err != nil {
			if err := r.entityFailed(ctx, next, err); err != nil {
				return err
			}
		}

		logging.SequencerDebug("waiting %v before the next entity", r.cfg.InterEntityDelay)
		if err := r.ctl.Sleep(ctx, r.cfg.InterEntityDelay); err != nil {
			return err
		}
	}
}

// entityFailed decides whether an entity error ends the run. With
// ContinueOnEntityError an unexpected error is reported and the entity is
// left behind; the processed set keeps it from being entered again.
func (r *run) entityFailed(ctx context.Context, h form.EntityHandle, err error) error {
	if r.cancelled(ctx, err) || !r.cfg.ContinueOnEntityError {
		return err
	}
	logging.SequencerError("%s failed, moving on: %v", h, err)

	n := len(r.summary.Entities)
	if n > 0 && r.summary.Entities[n-1].Entity == h {
		r.summary.Entities[n-1].Failed = true
	} else {
		r.summary.Entities = append(r.summary.Entities, EntityResult{Entity: h, Failed: true})
	}
	r.entity = h
	r.emit(Event{Type: EventWarning, Entity: h, Err: err, Message: fmt.Sprintf("%s failed, moving on: %v", h, err)})
	return nil
}

func (r *run) nextEntity(pending []form.EntityHandle) (form.EntityHandle, bool) {
	for _, h := range pending {
		if !r.processed[h.Ref] {
			return h, true
		}
	}
	return form.EntityHandle{}, false
}

// switchTo makes h the active entity and waits, best effort, for its items.
func (r *run) switchTo(ctx context.Context, h form.EntityHandle) error {
	r.entity = h
	if err := r.ctl.Checkpoint(ctx); err != nil {
		return err
	}
	logging.Sequencer("switching to %s", h)
	if err := r.Dispatch(ctx, form.SwitchEntity(h)); err != nil {
		if r.cancelled(ctx, err) {
			return err
		}
		return fmt.Errorf("switch to %s: %w", h, err)
	}

	settle := pacing.Uniform(r.rng, r.cfg.SwitchSettle.Min, r.cfg.SwitchSettle.Max)
	if err := r.ctl.Sleep(ctx, settle); err != nil {
		return err
	}

	res, err := poll.WaitUntil(ctx, r.ctl, func(ctx context.Context) (bool, error) {
		items, err := r.DiscoverItems(ctx)
		return len(items) > 0, err
	}, r.cfg.Readiness.PollInterval, r.cfg.Readiness.MaxAttempts)
	if err != nil {
		return err
	}
	if !res.Ready() {
		r.warn(fmt.Sprintf("items of %s not visible after switch (%s), continuing", h, res))
	} else {
		logging.SequencerDebug("switched to %s: %s", h, res)
	}
	return nil
}

// Dispatch forwards to the front-end and journals the action.
func (r *run) Dispatch(ctx context.Context, a form.Action) error {
	err := r.Frontend.Dispatch(ctx, a)
	r.audit.ActionDispatched(r.entity.String(), string(a.Kind), a.Target(), err)
	return err
}

func (r *run) cancelled(ctx context.Context, err error) bool {
	return errors.Is(err, control.ErrCancelled) || (ctx.Err() != nil && errors.Is(err, ctx.Err()))
}

func (r *run) emit(ev Event) {
	ev.RunID = r.id
	r.e.emit(ev)
}

func (r *run) warn(msg string) {
	logging.SequencerWarn("%s", msg)
	r.emit(Event{Type: EventWarning, Entity: r.entity, Message: msg})
}
