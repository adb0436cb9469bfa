package sequencer

import (
	"context"
	"errors"
	"fmt"

	"autoeval/internal/form"
	"autoeval/internal/logging"
	"autoeval/internal/quota"
	"autoeval/internal/retry"
)

// session is the per-entity quota state. It is created when an entity is
// entered and dropped when it is done.
type session struct {
	entity form.EntityHandle
	items  []form.Item
	alloc  *quota.Allocator
	result EntityResult
}

func (r *run) newSession(h form.EntityHandle, items []form.Item) *session {
	target := quota.SampleTarget(r.rng, r.cfg.SecondaryQuota.Min, r.cfg.SecondaryQuota.Max, len(items))
	return &session{
		entity: h,
		items:  items,
		alloc:  quota.NewAllocator(len(items), target),
		result: EntityResult{Entity: h, Items: len(items), Target: target},
	}
}

// processEntity runs the full per-entity sequence on the active entity.
func (r *run) processEntity(ctx context.Context, h form.EntityHandle) (EntityResult, error) {
	r.entity = h
	r.entityIdx++
	timer := logging.StartTimer(logging.CategorySequencer, "processEntity")
	defer timer.Stop()

	if _, err := retry.DismissIfPresent(ctx, r.ctl, r, r.cfg.DialogSettle); err != nil {
		return EntityResult{Entity: h}, err
	}

	if err := r.ctl.Checkpoint(ctx); err != nil {
		return EntityResult{Entity: h}, err
	}
	items, err := r.DiscoverItems(ctx)
	if err != nil {
		if r.cancelled(ctx, err) {
			return EntityResult{Entity: h}, err
		}
		return EntityResult{Entity: h}, fmt.Errorf("discover items of %s: %w", h, err)
	}

	sess := r.newSession(h, items)
	r.audit.EntityEvent(logging.AuditEntityStart, h.String(), true)
	r.emit(Event{Type: EventEntityStarted, Entity: h, EntityIndex: r.entityIdx, ItemCount: len(items), Target: sess.result.Target})

	if len(items) == 0 {
		sess.result.Empty = true
		logging.SequencerWarn("no items found for %s", h)
		r.emit(Event{Type: EventDiscoveryEmpty, Entity: h, EntityIndex: r.entityIdx, Message: "no items found"})
		return r.finishEntity(sess), nil
	}
	logging.Sequencer("%s: %d items, target %d secondary", h, len(items), sess.result.Target)

	for i, item := range items {
		if err := r.ctl.Checkpoint(ctx); err != nil {
			return r.abortEntity(sess), err
		}
		if err := r.ctl.Sleep(ctx, r.pace.MaybeThinkPause()); err != nil {
			return r.abortEntity(sess), err
		}

		label := sess.alloc.Next(r.rng)
		if label == form.Secondary {
			sess.result.Secondary++
		}
		if err := r.processItem(ctx, sess, i, item, label); err != nil {
			return r.abortEntity(sess), err
		}
	}
	logging.Sequencer("%s", sess.result.Line())

	if err := r.submitText(ctx, sess); err != nil {
		return r.abortEntity(sess), err
	}
	if err := r.save(ctx, sess); err != nil {
		return r.abortEntity(sess), err
	}
	if r.cfg.AutoSubmit {
		if err := r.submit(ctx, sess); err != nil {
			return r.abortEntity(sess), err
		}
	}
	return r.finishEntity(sess), nil
}

// processItem brings one item to the wanted label. An item already in that
// state is not touched. Failures other than cancellation are reported and
// the item is skipped.
func (r *run) processItem(ctx context.Context, sess *session, i int, item form.Item, label form.Label) error {
	base := Event{Entity: sess.entity, EntityIndex: r.entityIdx, Item: item, ItemIndex: i + 1, ItemCount: len(sess.items), Label: label}

	if item.Selected == label.Selection() {
		sess.result.Skipped++
		logging.SequencerDebug("item %d/%d already %s", i+1, len(sess.items), label)
		ev := base
		ev.Type = EventItemSkipped
		r.emit(ev)
		return nil
	}

	if err := r.ctl.Checkpoint(ctx); err != nil {
		return err
	}
	logging.SequencerDebug("item %d/%d: select %s", i+1, len(sess.items), label)
	if err := r.Dispatch(ctx, form.SelectOption(item, label)); err != nil {
		if r.cancelled(ctx, err) {
			return err
		}
		sess.result.Errors++
		logging.SequencerError("item %d/%d failed: %v", i+1, len(sess.items), err)
		ev := base
		ev.Type = EventItemError
		ev.Action = form.ActionSelectOption
		ev.Err = err
		ev.Message = err.Error()
		r.emit(ev)
		return nil
	}
	sess.result.Set++
	ev := base
	ev.Type = EventItemProcessed
	ev.Action = form.ActionSelectOption
	r.emit(ev)

	return r.ctl.Sleep(ctx, r.pace.NextDelay())
}

// submitText fills the comment box with a random entry of the text pool.
func (r *run) submitText(ctx context.Context, sess *session) error {
	if err := r.ctl.Checkpoint(ctx); err != nil {
		return err
	}
	text := r.cfg.TextPool[r.rng.IntN(len(r.cfg.TextPool))]
	err := r.Dispatch(ctx, form.SubmitText(text))
	if err := r.stepError(ctx, sess, form.ActionSubmitText, err); err != nil {
		return err
	}
	sess.result.Commented = err == nil
	return nil
}

// save runs the fixed-count save policy.
func (r *run) save(ctx context.Context, sess *session) error {
	policy := retry.SavePolicy{
		Attempts:     r.cfg.SaveRetryCount,
		Delay:        r.cfg.SaveRetryDelay,
		Settle:       r.cfg.SaveSettle,
		DialogSettle: r.cfg.DialogSettle,
	}
	rep, err := policy.Run(ctx, r.ctl, r)
	sess.result.Saves = rep.Saves
	if err := r.stepError(ctx, sess, form.ActionSave, err); err != nil {
		return err
	}
	if err == nil {
		logging.Sequencer("%s saved %d times, %d dialogs dismissed", sess.entity, rep.Saves, rep.Dismissals)
	}
	return nil
}

// submit confirms the saved form and clears the resulting dialog.
func (r *run) submit(ctx context.Context, sess *session) error {
	if err := r.ctl.Sleep(ctx, r.cfg.SubmitDelay); err != nil {
		return err
	}
	if err := r.ctl.Checkpoint(ctx); err != nil {
		return err
	}
	err := r.Dispatch(ctx, form.Confirm())
	if err := r.stepError(ctx, sess, form.ActionConfirm, err); err != nil {
		return err
	}
	if err != nil {
		return nil
	}
	sess.result.Submitted = true
	if err := r.ctl.Sleep(ctx, r.cfg.SubmitDelay); err != nil {
		return err
	}
	_, err = retry.DismissIfPresent(ctx, r.ctl, r, r.cfg.DialogSettle)
	return err
}

// stepError classifies the error of an entity-level step. A missing control
// is reported and the step skipped; cancellation and anything unexpected
// propagate.
func (r *run) stepError(ctx context.Context, sess *session, kind form.ActionKind, err error) error {
	switch {
	case err == nil:
		return nil
	case r.cancelled(ctx, err):
		return err
	case errors.Is(err, form.ErrActionMissing):
		sess.result.Missing = append(sess.result.Missing, kind)
		logging.SequencerError("%s: %v", sess.entity, err)
		r.emit(Event{Type: EventActionMissing, Entity: sess.entity, EntityIndex: r.entityIdx, Action: kind, Err: err, Message: err.Error()})
		return nil
	default:
		return fmt.Errorf("%s on %s: %w", kind, sess.entity, err)
	}
}

func (r *run) finishEntity(sess *session) EntityResult {
	res := sess.result
	r.summary.Entities = append(r.summary.Entities, res)
	r.audit.EntityEvent(logging.AuditEntityComplete, sess.entity.String(), len(res.Missing) == 0 && !res.Empty)
	r.emit(Event{Type: EventEntityComplete, Entity: sess.entity, EntityIndex: r.entityIdx, ItemCount: res.Items, Target: res.Target, Result: &res})
	return res
}

// abortEntity records a partially processed entity without announcing it as
// complete.
func (r *run) abortEntity(sess *session) EntityResult {
	res := sess.result
	r.summary.Entities = append(r.summary.Entities, res)
	r.audit.EntityEvent(logging.AuditEntityComplete, sess.entity.String(), false)
	return res
}
