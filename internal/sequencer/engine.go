// Package sequencer is the top-level state machine. It drives one entity at a
// time through discovery, per-item selection under a secondary quota, the
// free-text comment, the save policy and the optional submit, then in
// multi-entity mode moves on to the next pending entity.
package sequencer

import (
	"errors"
	"sync"

	"autoeval/internal/config"
	"autoeval/internal/control"
	"autoeval/internal/form"
	"autoeval/internal/logging"
	"autoeval/internal/pacing"
)

// ErrAlreadyRunning is returned by Run while another run is active.
var ErrAlreadyRunning = control.ErrAlreadyRunning

// Mode selects single- or multi-entity processing.
type Mode int

const (
	// ModeSingle processes the entity currently on screen.
	ModeSingle Mode = iota
	// ModeMulti keeps switching to the next pending entity until none is left.
	ModeMulti
)

func (m Mode) String() string {
	if m == ModeMulti {
		return "multi"
	}
	return "single"
}

// ModeFor maps the auto-advance setting to a mode.
func ModeFor(cfg config.AutomationConfig) Mode {
	if cfg.AutoAdvanceEntities {
		return ModeMulti
	}
	return ModeSingle
}

// Options are optional collaborators of an Engine.
type Options struct {
	// Events receives a non-blocking copy of every event.
	Events chan<- Event
	// Observers run synchronously for every event (metrics, UI adapters).
	Observers []Observer
	// Rand defaults to a randomly seeded source.
	Rand pacing.Source
	// Controller defaults to a new controller polling at the configured interval.
	Controller *control.Controller
}

// Engine runs the automation against a front-end. Control methods are safe
// to call from any goroutine while Run executes on another.
type Engine struct {
	mu        sync.RWMutex
	cfg       config.AutomationConfig
	fe        form.Frontend
	ctl       *control.Controller
	rng       pacing.Source
	events    chan<- Event
	observers []Observer
	last      *Summary
}

// New creates an idle engine. cfg must be valid.
func New(fe form.Frontend, cfg config.AutomationConfig, opts Options) (*Engine, error) {
	if fe == nil {
		return nil, errors.New("sequencer: nil front-end")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:       cfg.Clone(),
		fe:        fe,
		ctl:       opts.Controller,
		rng:       opts.Rand,
		events:    opts.Events,
		observers: append([]Observer(nil), opts.Observers...),
	}
	if e.ctl == nil {
		e.ctl = control.New(cfg.PausePollInterval)
	}
	if e.rng == nil {
		e.rng = pacing.NewSource(0)
	}
	logging.SequencerDebug("engine created: delay %v-%v, quota %d-%d, save x%d",
		cfg.Delay.Min, cfg.Delay.Max, cfg.SecondaryQuota.Min, cfg.SecondaryQuota.Max, cfg.SaveRetryCount)
	return e, nil
}

// Subscribe adds an observer. Observers added during a run see later events.
func (e *Engine) Subscribe(obs Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(append([]Observer(nil), e.observers...), obs)
}

// Controller exposes the run-state owner, e.g. for status displays.
func (e *Engine) Controller() *control.Controller { return e.ctl }

// LastSummary returns the summary of the most recent finished run, if any.
func (e *Engine) LastSummary() (Summary, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.last == nil {
		return Summary{}, false
	}
	return *e.last, true
}
