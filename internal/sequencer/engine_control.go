package sequencer

import (
	"autoeval/internal/config"
	"autoeval/internal/control"
	"autoeval/internal/logging"
)

// Pause takes effect at the next checkpoint. It is ignored without an active run.
func (e *Engine) Pause() bool {
	logging.Sequencer("pause requested")
	return e.ctl.Pause()
}

// Resume continues a paused run.
func (e *Engine) Resume() bool {
	logging.Sequencer("resume requested")
	return e.ctl.Resume()
}

// TogglePause pauses a running run or resumes a paused one.
func (e *Engine) TogglePause() control.State {
	return e.ctl.TogglePause()
}

// Stop cancels the run at its next checkpoint; no action is dispatched after.
func (e *Engine) Stop() {
	logging.Sequencer("stop requested")
	e.ctl.Stop()
}

// State returns the current run state.
func (e *Engine) State() control.State { return e.ctl.State() }

// Status returns the run state and last terminal outcome.
func (e *Engine) Status() control.Status { return e.ctl.Status() }

// Config returns a copy of the current configuration.
func (e *Engine) Config() config.AutomationConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Clone()
}

// UpdateConfiguration applies a partial update. A run in progress keeps the
// snapshot it started with; the change applies from the next run.
func (e *Engine) UpdateConfiguration(p config.AutomationPatch) (config.AutomationConfig, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := e.cfg.Apply(p)
	if err != nil {
		logging.SequencerWarn("configuration update rejected: %v", err)
		return e.cfg.Clone(), err
	}
	e.cfg = next
	logging.Sequencer("configuration updated: delay %v-%v, quota %d-%d, multi=%v, submit=%v",
		next.Delay.Min, next.Delay.Max, next.SecondaryQuota.Min, next.SecondaryQuota.Max,
		next.AutoAdvanceEntities, next.AutoSubmit)
	return next.Clone(), nil
}
