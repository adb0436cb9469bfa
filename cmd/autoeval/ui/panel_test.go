package ui

import (
	"context"
	"errors"
	"sync"
	"testing"

	"autoeval/internal/config"
	"autoeval/internal/control"
	"autoeval/internal/form"
	"autoeval/internal/sequencer"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu      sync.Mutex
	cfg     config.AutomationConfig
	state   control.State
	stops   int
	toggles int
	runs    []sequencer.Mode
	runErr  error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{cfg: config.DefaultAutomationConfig(), state: control.StateIdle}
}

func (f *fakeEngine) Run(ctx context.Context, mode sequencer.Mode) (sequencer.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, mode)
	return sequencer.Summary{Mode: mode, Outcome: control.StateCompleted}, f.runErr
}

func (f *fakeEngine) TogglePause() control.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles++
	if f.state == control.StatePaused {
		f.state = control.StateRunning
	} else {
		f.state = control.StatePaused
	}
	return f.state
}

func (f *fakeEngine) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeEngine) State() control.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeEngine) Config() config.AutomationConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg.Clone()
}

func (f *fakeEngine) UpdateConfiguration(p config.AutomationPatch) (config.AutomationConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next, err := f.cfg.Apply(p)
	if err != nil {
		return f.cfg, err
	}
	f.cfg = next
	return next, nil
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm
}

func TestStartRunsEngineInConfiguredMode(t *testing.T) {
	eng := newFakeEngine()
	m := New(context.Background(), eng, false)

	m = send(t, m, keyMsg("m"))
	assert.True(t, eng.Config().AutoAdvanceEntities)
	assert.True(t, m.cfg.AutoAdvanceEntities)

	cmd := m.start()
	require.NotNil(t, cmd)
	assert.True(t, m.running)

	fin, ok := cmd().(RunFinishedMsg)
	require.True(t, ok)
	assert.Equal(t, []sequencer.Mode{sequencer.ModeMulti}, eng.runs)

	m = send(t, m, fin)
	assert.False(t, m.running)
	assert.Contains(t, m.notice, "completed")
	assert.False(t, m.noticeErr)
}

func TestSecondStartIsRejected(t *testing.T) {
	m := New(context.Background(), newFakeEngine(), false)
	require.NotNil(t, m.start())
	assert.Nil(t, m.start())
	assert.True(t, m.noticeErr)
}

func TestRunErrorsAreShown(t *testing.T) {
	m := New(context.Background(), newFakeEngine(), false)

	m = send(t, m, RunFinishedMsg{Err: sequencer.ErrAlreadyRunning})
	assert.Equal(t, "a run is already active", m.notice)

	m = send(t, m, RunFinishedMsg{Err: errors.New("discover entities: boom")})
	assert.Contains(t, m.notice, "boom")
	assert.True(t, m.noticeErr)
}

func TestPauseOnlyWhileRunning(t *testing.T) {
	eng := newFakeEngine()
	m := New(context.Background(), eng, false)

	m = send(t, m, keyMsg("space"))
	assert.Equal(t, 0, eng.toggles)

	m.running = true
	m = send(t, m, keyMsg("space"))
	assert.Equal(t, 1, eng.toggles)
	assert.Equal(t, control.StatePaused, m.state)

	m = send(t, m, keyMsg("p"))
	assert.Equal(t, control.StateRunning, m.state)
}

func TestStopKey(t *testing.T) {
	eng := newFakeEngine()
	m := New(context.Background(), eng, false)

	m = send(t, m, keyMsg("x"))
	assert.Equal(t, 0, eng.stops, "no stop without a run")

	m.running = true
	send(t, m, keyMsg("x"))
	assert.Equal(t, 1, eng.stops)
}

func TestQuitStopsActiveRun(t *testing.T) {
	eng := newFakeEngine()
	m := New(context.Background(), eng, false)
	m.running = true

	cmd := m.handleKey(keyMsg("q"))
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
	assert.Equal(t, 1, eng.stops)
	assert.True(t, m.quitting)
}

func TestQuotaKeys(t *testing.T) {
	eng := newFakeEngine()
	m := New(context.Background(), eng, false)
	require.Equal(t, config.IntRange{Min: 2, Max: 3}, m.cfg.SecondaryQuota)

	for range 3 {
		m = send(t, m, keyMsg("-"))
	}
	assert.Equal(t, config.IntRange{Min: 0, Max: 3}, m.cfg.SecondaryQuota, "min stops at zero")

	m = send(t, m, keyMsg("]"))
	assert.Equal(t, 4, m.cfg.SecondaryQuota.Max)

	for range 5 {
		m = send(t, m, keyMsg("+"))
	}
	assert.Equal(t, config.IntRange{Min: 5, Max: 5}, m.cfg.SecondaryQuota, "min drags max")

	m = send(t, m, keyMsg("["))
	assert.Equal(t, config.IntRange{Min: 5, Max: 5}, m.cfg.SecondaryQuota, "max held at min")
	assert.Equal(t, eng.Config().SecondaryQuota, m.cfg.SecondaryQuota)
}

func TestAutoSubmitToggleWhileRunning(t *testing.T) {
	eng := newFakeEngine()
	m := New(context.Background(), eng, false)
	m.running = true

	m = send(t, m, keyMsg("a"))
	assert.True(t, eng.Config().AutoSubmit)
	assert.Contains(t, m.notice, "next run")
}

func TestEventsDriveCounters(t *testing.T) {
	m := New(context.Background(), newFakeEngine(), false)
	h := form.EntityHandle{Ref: "id:r1", Label: "Wang - Physics"}

	events := []sequencer.Event{
		{Type: sequencer.EventRunStarted, Message: "multi mode"},
		{Type: sequencer.EventEntityStarted, Entity: h, EntityIndex: 1, ItemCount: 4, Target: 2},
		{Type: sequencer.EventItemProcessed, Entity: h, ItemIndex: 1, ItemCount: 4},
		{Type: sequencer.EventItemSkipped, Entity: h, ItemIndex: 2, ItemCount: 4},
		{Type: sequencer.EventItemError, Entity: h, ItemIndex: 3, ItemCount: 4, Message: "click: detached"},
		{Type: sequencer.EventWarning, Message: "items of x not visible"},
	}
	for _, ev := range events {
		m = send(t, m, EventMsg(ev))
	}

	assert.Equal(t, 1, m.set)
	assert.Equal(t, 1, m.kept)
	assert.Equal(t, 1, m.failed)
	assert.Equal(t, 1, m.warnings)
	assert.Equal(t, 3, m.itemIdx)
	assert.InDelta(t, 0.75, m.fraction(), 1e-9)
	assert.Len(t, m.lines, 4, "item successes are not logged")

	res := sequencer.EntityResult{Entity: h, Items: 4, Secondary: 2, Set: 1, Skipped: 1, Errors: 1}
	m = send(t, m, EventMsg(sequencer.Event{Type: sequencer.EventEntityComplete, Entity: h, Result: &res}))
	assert.Equal(t, 1, m.entities)
	assert.Equal(t, res.Line(), m.lastResult)

	view := m.View()
	assert.Contains(t, view, "Wang - Physics")
	assert.Contains(t, view, "item 3/4")
	assert.Contains(t, view, "click: detached")

	m = send(t, m, EventMsg(sequencer.Event{Type: sequencer.EventRunStarted}))
	assert.Zero(t, m.set)
	assert.Zero(t, m.entities)
	assert.Empty(t, m.entity)
}

func TestConfigReloaded(t *testing.T) {
	m := New(context.Background(), newFakeEngine(), false)
	cfg := config.DefaultAutomationConfig()
	cfg.AutoSubmit = true

	m = send(t, m, ConfigReloadedMsg{Config: cfg})
	assert.True(t, m.cfg.AutoSubmit)
	assert.Contains(t, m.View(), "reloaded")
}

func TestForwardPostsEvents(t *testing.T) {
	var got []tea.Msg
	obs := Forward(func(msg tea.Msg) { got = append(got, msg) })
	obs(sequencer.Event{Type: sequencer.EventWarning})

	require.Len(t, got, 1)
	assert.Equal(t, sequencer.EventWarning, sequencer.Event(got[0].(EventMsg)).Type)
}

func TestAutoStartInit(t *testing.T) {
	m := New(context.Background(), newFakeEngine(), true)
	require.NotNil(t, m.Init())

	m = send(t, m, startMsg{})
	assert.True(t, m.running)
}
