// Package tui renders the live glucose widget in the terminal with
// Bubble Tea.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mrcode/dexshare-widget/internal/engine"
	"github.com/mrcode/dexshare-widget/internal/glucose"
)

// eventBuffer sizes the engine subscription. The engine drops events
// for slow observers, so a little headroom covers render hiccups.
const eventBuffer = 16

// redrawEvery drives the age line ("3 minutes ago") between engine
// events, which can be a minute or more apart.
const redrawEvery = time.Second

// Options configures the widget.
type Options struct {
	Context context.Context
	Engine  *engine.Engine
	Theme   Theme
}

// Model is the root Bubble Tea state for the widget.
type Model struct {
	eng    *engine.Engine
	events <-chan engine.Event

	styles  Styles
	spin    spinner.Model
	width   int
	display engine.DisplayState
	now     time.Time
	notice  string
}

// New creates the widget model, subscribes it to engine events and
// seeds the display from the current snapshot, so polls that complete
// before the program starts still show up.
func New(opts Options) Model {
	theme := opts.Theme
	if theme.Name == "" {
		theme = DefaultTheme()
	}
	styles := theme.Styles()

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = styles.Muted

	return Model{
		eng:     opts.Engine,
		events:  opts.Engine.Subscribe(eventBuffer),
		styles:  styles,
		spin:    spin,
		display: opts.Engine.CurrentDisplayState(),
		now:     time.Now(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spin.Tick,
		waitForEvent(m.events),
		redrawCmd(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case eventMsg:
		m.display = engine.Event(msg).Display
		m.now = time.Now()
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		// Engine stopped underneath us, nothing left to show.
		return m, tea.Quit

	case redrawMsg:
		m.now = time.Time(msg)
		m.display = m.eng.CurrentDisplayState()
		return m, redrawCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "r":
		m.notice = ""
		m.eng.RequestManualRefresh()
		return m, nil

	case "u":
		unit := glucose.UnitMmolL
		if m.display.Unit == glucose.UnitMmolL {
			unit = glucose.UnitMgDl
		}
		if err := m.eng.UpdateSession(engine.Update{Unit: &unit}); err != nil {
			m.notice = "Could not save unit preference."
			return m, nil
		}
		m.notice = ""
		m.display = m.eng.CurrentDisplayState()
		return m, nil
	}

	return m, nil
}

// Messages

type eventMsg engine.Event

type eventsClosedMsg struct{}

type redrawMsg time.Time

// Commands

func waitForEvent(ch <-chan engine.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func redrawCmd() tea.Cmd {
	return tea.Tick(redrawEvery, func(t time.Time) tea.Msg {
		return redrawMsg(t)
	})
}

// Run starts the Bubble Tea program and blocks until the user quits,
// the engine stops or the context is canceled.
func Run(opts Options) error {
	m := New(opts)

	progOpts := []tea.ProgramOption{tea.WithAltScreen()}
	if opts.Context != nil {
		progOpts = append(progOpts, tea.WithContext(opts.Context))
	}

	p := tea.NewProgram(m, progOpts...)
	_, err := p.Run()
	return err
}
