package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"netsentry/internal/core"
	"netsentry/internal/engine"
	"netsentry/internal/store"
)

const logTag = "TUI"

// Reconciler drives reconciliation passes and auto mode.
type Reconciler interface {
	RunOnce(ctx context.Context, cfg engine.RunConfig) engine.Result
	StartAuto(cfg engine.RunConfig) error
	StopAuto()
	AutoRunning() bool
	CheckStatus(ctx context.Context) (wifiOK, internetOK bool)
}

// NetControl drives direct Wi-Fi and VPN operations.
type NetControl interface {
	SetCredentials(ssid, password string)
	ConnectWifi(ctx context.Context, ssid, password string) bool
	DisconnectWifi(ctx context.Context) bool
	StartVPN(ctx context.Context) bool
	StopVPN(ctx context.Context) bool
}

// Deps collects everything the dashboard operates on.
type Deps struct {
	Engine   Reconciler
	Net      NetControl
	Store    store.Store
	Tracker  *core.StateTracker
	Config   *core.ConfigManager
	Logs     *core.LogBuffer
	Bus      *core.EventBus
	Log      *core.Logger
	Prompter *Prompter
	Version  string
}

// viewState selects the active view.
type viewState int

const (
	dashboardView viewState = iota
	profilesView
)

// Messages bridged from the event bus and returned by commands.
type (
	stateChangedMsg    struct{ state core.ConnectivityState }
	reconcileResultMsg struct{ result engine.Result }
	autoModeMsg        struct {
		running  bool
		interval time.Duration
	}
	logTickMsg      time.Time
	promptOpenedMsg struct{ prompt *promptRequest }

	// opDoneMsg reports a direct probe operation.
	opDoneMsg struct {
		label  string
		ok     bool
		detail string
	}
	// statusCheckedMsg reports an interactive status sweep.
	statusCheckedMsg struct {
		wifiOK     bool
		internetOK bool
	}

	backToDashboardMsg struct{}
)

// mainModel routes messages to the active view and owns the prompt
// overlay.
type mainModel struct {
	deps     Deps
	state    viewState
	dash     dashboardModel
	profiles *profilesModel
	confirm  *confirmModel
	width    int
	height   int
}

func newMainModel(deps Deps) mainModel {
	return mainModel{
		deps: deps,
		dash: newDashboardModel(deps),
	}
}

func (m mainModel) Init() tea.Cmd {
	return tea.Batch(logTickCmd(), m.dash.refreshStateCmd())
}

func (m mainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// The prompt overlay swallows every key while active.
		if m.confirm != nil {
			done, cmd := m.confirm.Update(msg)
			if done {
				m.confirm = nil
			}
			return m, cmd
		}
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.dash.setSize(msg.Width, msg.Height)
		if m.profiles != nil {
			m.profiles.setSize(msg.Width, msg.Height)
		}
		return m, nil

	case promptOpenedMsg:
		m.confirm = newConfirmModel(msg.prompt)
		return m, m.confirm.Init()
	case countdownMsg:
		if m.confirm != nil {
			done, cmd := m.confirm.Update(msg)
			if done {
				m.confirm = nil
			}
			return m, cmd
		}
		return m, nil

	case logTickMsg:
		m.dash.refreshLogs()
		return m, logTickCmd()

	case stateChangedMsg:
		m.dash.applyState(msg.state)
		return m, nil
	case reconcileResultMsg:
		m.dash.applyResult(msg.result)
		return m, nil
	case autoModeMsg:
		m.dash.applyAutoMode(msg.running, msg.interval)
		return m, nil

	case backToDashboardMsg:
		m.state = dashboardView
		m.profiles = nil
		return m, nil
	}

	switch m.state {
	case profilesView:
		var next tea.Model
		next, cmd = m.profiles.Update(msg)
		if p, ok := next.(*profilesModel); ok {
			m.profiles = p
		}
	default:
		if open, openCmd := m.dash.wantsProfiles(msg); open {
			m.state = profilesView
			m.profiles = newProfilesModel(m.deps)
			m.profiles.setSize(m.width, m.height)
			return m, openCmd
		}
		var next dashboardModel
		next, cmd = m.dash.Update(msg)
		m.dash = next
	}

	return m, cmd
}

func (m mainModel) View() string {
	base := ""
	switch m.state {
	case profilesView:
		base = m.profiles.View()
	default:
		base = m.dash.View()
	}
	if m.confirm != nil {
		if m.width > 0 && m.height > 0 {
			return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.confirm.View())
		}
		return m.confirm.View()
	}
	return base
}

// logTickCmd drives the periodic log pane refresh.
func logTickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return logTickMsg(t)
	})
}

// attachBus forwards bus events into the program loop.
func attachBus(bus *core.EventBus, send func(tea.Msg)) {
	bus.Subscribe(core.EventStateChanged, func(e core.Event) {
		if p, ok := e.Payload.(core.StateChangedPayload); ok {
			send(stateChangedMsg{state: p.State})
		}
	})
	bus.Subscribe(core.EventReconcileResult, func(e core.Event) {
		if res, ok := e.Payload.(engine.Result); ok {
			send(reconcileResultMsg{result: res})
		}
	})
	bus.Subscribe(core.EventAutoMode, func(e core.Event) {
		if p, ok := e.Payload.(core.AutoModePayload); ok {
			send(autoModeMsg{running: p.Running, interval: p.Interval})
		}
	})
}

// Run starts the dashboard and blocks until the user quits.
func Run(deps Deps) error {
	deps.Log.Infof(logTag, "Starting dashboard")
	p := tea.NewProgram(newMainModel(deps), tea.WithAltScreen())
	if deps.Prompter != nil {
		deps.Prompter.attach(p.Send)
		defer deps.Prompter.detach()
	}
	if deps.Bus != nil {
		attachBus(deps.Bus, p.Send)
	}
	_, err := p.Run()
	return err
}
