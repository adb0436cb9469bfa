// Package control owns the run state of the automation engine and provides the
// cooperative suspension point every other component calls before acting.
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"autoeval/internal/logging"
)

// ErrCancelled is returned from every suspension point once Stop is requested
// or the run context ends.
var ErrCancelled = errors.New("operation cancelled")

// ErrAlreadyRunning is returned by Begin while a run is active.
var ErrAlreadyRunning = errors.New("run already active")

// State is the run state.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// DefaultPollInterval is how often a paused checkpoint re-checks the state.
const DefaultPollInterval = 100 * time.Millisecond

// Status is a snapshot of the controller.
type Status struct {
	State  State
	Active bool
	// Last terminal outcome and its reason, kept after the reset to Idle.
	LastOutcome State
	LastReason  string
}

// Controller is the single owner of run state. All methods are safe for
// concurrent use; the run loop calls Checkpoint/Sleep, UI goroutines call
// Pause/Resume/Stop.
type Controller struct {
	mu           sync.Mutex
	state        State
	active       bool
	stopCh       chan struct{}
	pollInterval time.Duration
	lastOutcome  State
	lastReason   string
	onChange     func(State)
}

// New creates an idle controller. A non-positive poll interval uses the default.
func New(pollInterval time.Duration) *Controller {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Controller{
		state:        StateIdle,
		stopCh:       make(chan struct{}),
		pollInterval: pollInterval,
	}
}

// OnChange registers a callback invoked (outside the lock) after every state change.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Begin marks a run as active and moves to Running. A stop requested while no
// run was active is discarded.
func (c *Controller) Begin() error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.active = true
	c.state = StateRunning
	c.stopCh = make(chan struct{})
	fn := c.onChange
	c.mu.Unlock()

	logging.Control("run started")
	notify(fn, StateRunning)
	return nil
}

// End records the terminal outcome and resets to Idle.
func (c *Controller) End(outcome State, reason string) {
	c.mu.Lock()
	c.active = false
	c.state = StateIdle
	c.lastOutcome = outcome
	c.lastReason = reason
	fn := c.onChange
	c.mu.Unlock()

	logging.Control("run ended: %s %s", outcome, reason)
	notify(fn, StateIdle)
}

// Pause moves Running to Paused. It reports whether the state changed.
func (c *Controller) Pause() bool {
	return c.transition(StateRunning, StatePaused)
}

// Resume moves Paused back to Running. It reports whether the state changed.
func (c *Controller) Resume() bool {
	return c.transition(StatePaused, StateRunning)
}

// TogglePause pauses a running run or resumes a paused one.
func (c *Controller) TogglePause() State {
	if c.Pause() {
		return StatePaused
	}
	if c.Resume() {
		return StateRunning
	}
	return c.State()
}

func (c *Controller) transition(from, to State) bool {
	c.mu.Lock()
	if !c.active || c.state != from {
		c.mu.Unlock()
		return false
	}
	c.state = to
	fn := c.onChange
	c.mu.Unlock()

	logging.Control("%s -> %s", from, to)
	notify(fn, to)
	return true
}

// Stop requests cancellation. It is effective from any state and sticky until
// End is called by the run loop.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		return
	}
	c.state = StateStopped
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
	fn := c.onChange
	c.mu.Unlock()

	logging.Control("stop requested")
	notify(fn, StateStopped)
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a snapshot including the last terminal outcome.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{State: c.state, Active: c.active, LastOutcome: c.lastOutcome, LastReason: c.lastReason}
}

// Checkpoint returns nil when the run may proceed, blocks while paused, and
// returns ErrCancelled once stopped or when ctx is done.
func (c *Controller) Checkpoint(ctx context.Context) error {
	var ticker *time.Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrCancelled, err)
		}

		c.mu.Lock()
		state, stopCh := c.state, c.stopCh
		c.mu.Unlock()

		switch state {
		case StateStopped:
			return ErrCancelled
		case StatePaused:
			if ticker == nil {
				logging.ControlDebug("checkpoint waiting while paused")
				ticker = time.NewTicker(c.pollInterval)
			}
			select {
			case <-ctx.Done():
			case <-stopCh:
			case <-ticker.C:
			}
		default:
			return nil
		}
	}
}

// Sleep checkpoints, waits d, then checkpoints again. Stop or ctx end during
// the wait returns ErrCancelled early; a pause during the wait blocks the
// return until Resume, so no action follows a wait while paused.
func (c *Controller) Sleep(ctx context.Context, d time.Duration) error {
	if err := c.Checkpoint(ctx); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	c.mu.Lock()
	stopCh := c.stopCh
	c.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return c.Checkpoint(ctx)
	case <-stopCh:
		return ErrCancelled
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
}

func notify(fn func(State), s State) {
	if fn != nil {
		fn(s)
	}
}
