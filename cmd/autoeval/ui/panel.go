package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"autoeval/internal/config"
	"autoeval/internal/control"
	"autoeval/internal/logging"
	"autoeval/internal/sequencer"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxLogLines = 500

// Engine is the part of sequencer.Engine the panel drives.
type Engine interface {
	Run(ctx context.Context, mode sequencer.Mode) (sequencer.Summary, error)
	TogglePause() control.State
	Stop()
	State() control.State
	Config() config.AutomationConfig
	UpdateConfiguration(p config.AutomationPatch) (config.AutomationConfig, error)
}

// EventMsg carries one engine event into the program (see Forward).
type EventMsg sequencer.Event

// RunFinishedMsg is produced when a run started from the panel returns.
type RunFinishedMsg struct {
	Summary sequencer.Summary
	Err     error
}

// ConfigReloadedMsg reports that the configuration changed outside the panel.
type ConfigReloadedMsg struct{ Config config.AutomationConfig }

type startMsg struct{}

// Forward returns an observer that posts every event to the program.
func Forward(send func(tea.Msg)) sequencer.Observer {
	return func(ev sequencer.Event) { send(EventMsg(ev)) }
}

// Model is the control panel.
type Model struct {
	ctx       context.Context
	engine    Engine
	autoStart bool

	cfg     config.AutomationConfig
	state   control.State
	running bool

	entity     string
	entityIdx  int
	itemIdx    int
	itemCount  int
	target     int
	entities   int
	set        int
	kept       int
	failed     int
	warnings   int
	lastResult string
	notice     string
	noticeErr  bool
	lines      []string

	spinner  spinner.Model
	progress progress.Model
	viewport viewport.Model
	styles   Styles
	width    int
	height   int
	quitting bool
}

// New builds the panel. With autoStart the first run begins immediately.
func New(ctx context.Context, eng Engine, autoStart bool) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	vp := viewport.New(80, 10)
	vp.SetContent("")
	// space is the pause key here, not page down
	vp.KeyMap.PageDown = key.NewBinding(key.WithKeys("pgdown"))
	vp.KeyMap.PageUp = key.NewBinding(key.WithKeys("pgup"))
	styles := DefaultStyles()
	sp.Style = styles.Info

	return Model{
		ctx:       ctx,
		engine:    eng,
		autoStart: autoStart,
		cfg:       eng.Config(),
		state:     eng.State(),
		spinner:   sp,
		progress:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(60)),
		viewport:  vp,
		styles:    styles,
		width:     80,
		height:    24,
	}
}

// Init starts the spinner and, with autoStart, the first run.
func (m Model) Init() tea.Cmd {
	if m.autoStart {
		return tea.Batch(m.spinner.Tick, func() tea.Msg { return startMsg{} })
	}
	return m.spinner.Tick
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case startMsg:
		cmds = append(cmds, m.start())

	case EventMsg:
		m.apply(sequencer.Event(msg))

	case RunFinishedMsg:
		m.running = false
		switch {
		case errors.Is(msg.Err, sequencer.ErrAlreadyRunning):
			m.setNotice("a run is already active", true)
		case msg.Err != nil:
			m.setNotice("run failed: "+msg.Err.Error(), true)
		default:
			m.setNotice(fmt.Sprintf("run %s: %d entities, %d items set", msg.Summary.Outcome, len(msg.Summary.Entities), msg.Summary.ItemsSet()), false)
		}
		if m.quitting {
			return m, tea.Quit
		}

	case ConfigReloadedMsg:
		m.cfg = msg.Config
		m.setNotice("configuration reloaded from disk", false)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.state = m.engine.State()

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.running {
			m.engine.Stop()
		}
		return tea.Quit
	case "enter", "s":
		return m.start()
	case " ", "p":
		if !m.running {
			m.setNotice("nothing to pause", false)
			return nil
		}
		st := m.engine.TogglePause()
		logging.Get(logging.CategoryUI).Info("pause toggled: %s", st)
		m.setNotice("now "+string(st), false)
	case "x":
		if m.running {
			m.engine.Stop()
			m.setNotice("stopping at the next checkpoint", false)
		}
	case "m":
		v := !m.cfg.AutoAdvanceEntities
		m.update(config.AutomationPatch{AutoAdvanceEntities: &v})
	case "a":
		v := !m.cfg.AutoSubmit
		m.update(config.AutomationPatch{AutoSubmit: &v})
	case "-":
		v := m.cfg.SecondaryQuota.Min - 1
		m.update(config.AutomationPatch{QuotaMin: &v})
	case "+", "=":
		v := m.cfg.SecondaryQuota.Min + 1
		m.update(config.AutomationPatch{QuotaMin: &v})
	case "[":
		v := m.cfg.SecondaryQuota.Max - 1
		m.update(config.AutomationPatch{QuotaMax: &v})
	case "]":
		v := m.cfg.SecondaryQuota.Max + 1
		m.update(config.AutomationPatch{QuotaMax: &v})
	}
	return nil
}

func (m *Model) start() tea.Cmd {
	if m.running {
		m.setNotice("a run is already active", true)
		return nil
	}
	m.running = true
	m.notice = ""
	mode := sequencer.ModeFor(m.cfg)
	ctx, eng := m.ctx, m.engine
	logging.Get(logging.CategoryUI).Info("start requested (%s mode)", mode)
	return func() tea.Msg {
		sum, err := eng.Run(ctx, mode)
		return RunFinishedMsg{Summary: sum, Err: err}
	}
}

func (m *Model) update(p config.AutomationPatch) {
	cfg, err := m.engine.UpdateConfiguration(p)
	if err != nil {
		m.setNotice(err.Error(), true)
		return
	}
	m.cfg = cfg
	if m.running {
		m.setNotice("settings saved, they apply from the next run", false)
	} else {
		m.setNotice("settings saved", false)
	}
}

// apply folds one engine event into the counters and the log.
func (m *Model) apply(ev sequencer.Event) {
	switch ev.Type {
	case sequencer.EventRunStarted:
		m.running = true
		m.entity, m.entityIdx, m.itemIdx, m.itemCount, m.target = "", 0, 0, 0, 0
		m.entities, m.set, m.kept, m.failed, m.warnings = 0, 0, 0, 0, 0
		m.lastResult = ""
	case sequencer.EventEntityStarted:
		m.entity = ev.Entity.String()
		m.entityIdx = ev.EntityIndex
		m.itemIdx = 0
		m.itemCount = ev.ItemCount
		m.target = ev.Target
	case sequencer.EventItemProcessed:
		m.set++
		m.itemIdx = ev.ItemIndex
	case sequencer.EventItemSkipped:
		m.kept++
		m.itemIdx = ev.ItemIndex
	case sequencer.EventItemError:
		m.failed++
		m.itemIdx = ev.ItemIndex
	case sequencer.EventEntityComplete:
		m.entities++
		if ev.Result != nil {
			m.lastResult = ev.Result.Line()
		}
	case sequencer.EventWarning:
		m.warnings++
	}
	if line := describe(ev); line != "" {
		m.log(ev.Timestamp.Format("15:04:05") + " " + line)
	}
}

// describe renders an event as a log line; per-item successes stay quiet.
func describe(ev sequencer.Event) string {
	switch ev.Type {
	case sequencer.EventRunStarted:
		return "run started, " + ev.Message
	case sequencer.EventEntityStarted:
		return fmt.Sprintf("entity %d: %s (%d items, %d secondary)", ev.EntityIndex, ev.Entity, ev.ItemCount, ev.Target)
	case sequencer.EventItemError:
		return fmt.Sprintf("item %d/%d failed: %s", ev.ItemIndex, ev.ItemCount, ev.Message)
	case sequencer.EventEntityComplete:
		if ev.Result != nil {
			return ev.Result.Line()
		}
		return fmt.Sprintf("%s done", ev.Entity)
	case sequencer.EventWarning:
		return "warning: " + ev.Message
	case sequencer.EventDiscoveryEmpty:
		return "nothing to do: " + ev.Message
	case sequencer.EventActionMissing:
		return fmt.Sprintf("%s skipped: %s", ev.Action, ev.Message)
	case sequencer.EventRunCompleted:
		return "run completed, " + ev.Message
	case sequencer.EventRunStopped:
		return "run stopped"
	case sequencer.EventRunFailed:
		return "run failed: " + ev.Message
	}
	return ""
}

func (m *Model) log(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m *Model) setNotice(s string, isErr bool) {
	m.notice = s
	m.noticeErr = isErr
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	m.progress.Width = max(w-8, 10)
	m.viewport.Width = max(w-4, 10)
	m.viewport.Height = max(h-14, 3)
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// View renders the panel.
func (m Model) View() string {
	if m.quitting && !m.running {
		return ""
	}
	s := m.styles
	var b strings.Builder

	title := s.Title.Render(" autoeval ")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", m.stateBadge()) + "\n\n")

	onOff := func(v bool) string {
		if v {
			return s.Success.Render("on")
		}
		return s.Muted.Render("off")
	}
	b.WriteString(fmt.Sprintf("multi-entity %s   auto-submit %s   quota %s   delay %v-%v\n",
		onOff(m.cfg.AutoAdvanceEntities), onOff(m.cfg.AutoSubmit),
		s.Bold.Render(fmt.Sprintf("%d-%d", m.cfg.SecondaryQuota.Min, m.cfg.SecondaryQuota.Max)),
		m.cfg.Delay.Min, m.cfg.Delay.Max))

	if m.entity != "" {
		b.WriteString(fmt.Sprintf("\n%s %s   item %d/%d   target %d secondary\n",
			s.Header.Render(fmt.Sprintf("#%d", m.entityIdx)), m.entity, m.itemIdx, m.itemCount, m.target))
	} else {
		b.WriteString("\n" + s.Muted.Render("no entity yet") + "\n")
	}
	b.WriteString(m.progress.ViewAs(m.fraction()) + "\n")
	b.WriteString(fmt.Sprintf("set %d   kept %d   failed %s   entities %d   warnings %d\n",
		m.set, m.kept, m.failedText(), m.entities, m.warnings))
	if m.lastResult != "" {
		b.WriteString(s.Muted.Render("last: "+m.lastResult) + "\n")
	}

	b.WriteString(s.Box.Render(m.viewport.View()) + "\n")

	if m.notice != "" {
		style := s.Info
		if m.noticeErr {
			style = s.Error
		}
		b.WriteString(style.Render(m.notice) + "\n")
	}
	b.WriteString(m.hints())
	return b.String()
}

func (m Model) stateBadge() string {
	s := m.styles
	label := strings.ToUpper(string(m.state))
	switch m.state {
	case control.StateRunning:
		return m.spinner.View() + " " + s.Info.Render(label)
	case control.StatePaused:
		return s.Warning.Render(label)
	case control.StateIdle:
		return s.Muted.Render(label)
	default:
		return s.Bold.Render(label)
	}
}

func (m Model) fraction() float64 {
	if m.itemCount == 0 {
		return 0
	}
	return float64(m.itemIdx) / float64(m.itemCount)
}

func (m Model) failedText() string {
	if m.failed == 0 {
		return "0"
	}
	return m.styles.Error.Render(fmt.Sprint(m.failed))
}

func (m Model) hints() string {
	k := m.styles.Key.Render
	return m.styles.Muted.Render(strings.Join([]string{
		k("enter") + " start",
		k("space") + " pause/resume",
		k("x") + " stop",
		k("m") + " multi",
		k("a") + " auto-submit",
		k("-/+") + " quota min",
		k("[/]") + " quota max",
		k("q") + " quit",
	}, "  "))
}
