package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"netsentry/internal/core"
	"netsentry/internal/engine"
)

// flashKind colors the one-line status message.
type flashKind int

const (
	flashInfo flashKind = iota
	flashSuccess
	flashWarn
	flashError
)

// dashboardModel is the landing view: connectivity snapshot, activity
// log, and the reconciliation controls.
type dashboardModel struct {
	deps Deps

	state    core.ConnectivityState
	posture  bool // desired VPN use, follows an observed frontend
	auto     bool
	interval time.Duration

	busy     bool
	busyWhat string
	flash    string
	kind     flashKind

	logs     viewport.Model
	logCount int

	width  int
	height int
}

func newDashboardModel(deps Deps) dashboardModel {
	posture := true
	if deps.Config != nil {
		posture = deps.Config.Get().Auto.VPNEnabled()
	}
	return dashboardModel{
		deps:    deps,
		posture: posture,
		logs:    viewport.New(0, 0),
	}
}

// refreshStateCmd seeds the view from the tracker before any event
// arrives.
func (m dashboardModel) refreshStateCmd() tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		if deps.Tracker == nil {
			return nil
		}
		return stateChangedMsg{state: deps.Tracker.Snapshot()}
	}
}

func (m *dashboardModel) setSize(width, height int) {
	m.width = width
	m.height = height
	logWidth := width - statusPaneWidth - 10
	if logWidth < 20 {
		logWidth = 20
	}
	logHeight := height - 9
	if logHeight < 3 {
		logHeight = 3
	}
	m.logs.Width = logWidth
	m.logs.Height = logHeight
}

const statusPaneWidth = 36

func (m *dashboardModel) applyState(st core.ConnectivityState) {
	m.state = st
	// Mirror an externally started VPN frontend, matching the way the
	// desired posture latches on when the client shows up.
	if st.VPNUIRunning && !m.posture {
		m.posture = true
	}
}

func (m *dashboardModel) applyResult(res engine.Result) {
	m.busy = false
	m.busyWhat = ""
	switch {
	case res.Outcome == engine.OutcomeOK:
		m.setFlash(flashSuccess, "Network configuration completed successfully")
	case res.Outcome == engine.OutcomeDegraded:
		m.setFlash(flashWarn, res.Err.Error())
	default:
		if res.Err != nil {
			m.setFlash(flashError, res.Err.Error())
		} else {
			m.setFlash(flashError, "Configuration pass failed")
		}
	}
}

func (m *dashboardModel) applyAutoMode(running bool, interval time.Duration) {
	m.auto = running
	m.interval = interval
	if running {
		m.setFlash(flashInfo, fmt.Sprintf("Auto-configuration every %s", interval))
	} else {
		m.setFlash(flashInfo, "Auto-configuration stopped")
	}
}

func (m *dashboardModel) refreshLogs() {
	if m.deps.Logs == nil {
		return
	}
	entries := m.deps.Logs.Tail(0)
	if len(entries) == m.logCount {
		return
	}
	m.logCount = len(entries)
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, core.FormatEntry(e))
	}
	m.logs.SetContent(strings.Join(lines, "\n"))
	m.logs.GotoBottom()
}

func (m *dashboardModel) setFlash(kind flashKind, text string) {
	m.kind = kind
	m.flash = text
}

// wantsProfiles reports whether the pressed key opens the profile view
// and, when it does, hands back the initial load command.
func (m dashboardModel) wantsProfiles(msg tea.Msg) (bool, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || key.String() != "p" || m.busy {
		return false, nil
	}
	return true, loadProfilesCmd(m.deps)
}

func (m dashboardModel) Update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case opDoneMsg:
		m.busy = false
		m.busyWhat = ""
		if msg.ok {
			m.setFlash(flashSuccess, msg.label)
		} else {
			text := msg.label + " failed"
			if msg.detail != "" {
				text = msg.detail
			}
			m.setFlash(flashError, text)
		}
		return m, nil
	case statusCheckedMsg:
		m.busy = false
		m.busyWhat = ""
		kind := flashSuccess
		if !msg.wifiOK || !msg.internetOK {
			kind = flashWarn
		}
		m.setFlash(kind, fmt.Sprintf("Wi-Fi %s, internet %s",
			verdict(msg.wifiOK), verdict(msg.internetOK)))
		return m, nil
	}
	return m, nil
}

func verdict(ok bool) string {
	if ok {
		return "ok"
	}
	return "down"
}

func (m dashboardModel) handleKey(msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "r":
		if m.busy {
			return m.flagBusy()
		}
		m.busy = true
		m.busyWhat = "reconciling"
		return m, m.runOnceCmd()

	case "x":
		if m.busy {
			return m.flagBusy()
		}
		m.busy = true
		m.busyWhat = "checking status"
		return m, m.checkStatusCmd()

	case "c":
		if m.busy {
			return m.flagBusy()
		}
		m.busy = true
		m.busyWhat = "connecting Wi-Fi"
		return m, m.connectCmd()

	case "d":
		if m.busy {
			return m.flagBusy()
		}
		m.busy = true
		m.busyWhat = "disconnecting Wi-Fi"
		return m, m.disconnectCmd()

	case "v":
		m.posture = !m.posture
		return m, m.savePostureCmd(m.posture)

	case "a":
		if m.auto {
			m.setFlash(flashInfo, "Auto-configuration already running")
			return m, nil
		}
		return m, m.startAutoCmd()

	case "s":
		if !m.auto {
			m.setFlash(flashInfo, "Auto-configuration is not running")
			return m, nil
		}
		m.busy = true
		m.busyWhat = "stopping auto mode"
		return m, m.stopAutoCmd()

	case "up", "down", "pgup", "pgdown":
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m dashboardModel) flagBusy() (dashboardModel, tea.Cmd) {
	m.setFlash(flashWarn, "Another operation is in progress: "+m.busyWhat)
	return m, nil
}

// --- Commands ---

func (m dashboardModel) runOnceCmd() tea.Cmd {
	deps := m.deps
	cfg := engine.RunConfig{UseVPN: m.posture}
	return func() tea.Msg {
		res := deps.Engine.RunOnce(context.Background(), cfg)
		return reconcileResultMsg{result: res}
	}
}

func (m dashboardModel) checkStatusCmd() tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		wifiOK, internetOK := deps.Engine.CheckStatus(context.Background())
		return statusCheckedMsg{wifiOK: wifiOK, internetOK: internetOK}
	}
}

func (m dashboardModel) connectCmd() tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		ok := deps.Net.ConnectWifi(context.Background(), "", "")
		return opDoneMsg{label: "Wi-Fi connected", ok: ok, detail: failDetail(ok, "could not connect to Wi-Fi")}
	}
}

func (m dashboardModel) disconnectCmd() tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		ok := deps.Net.DisconnectWifi(context.Background())
		return opDoneMsg{label: "Wi-Fi disconnected", ok: ok, detail: failDetail(ok, "could not disconnect Wi-Fi")}
	}
}

func (m dashboardModel) savePostureCmd(enabled bool) tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		label := "VPN use disabled"
		if enabled {
			label = "VPN use enabled"
		}
		cfg := deps.Config.Get()
		v := enabled
		cfg.Auto.UseVPN = &v
		if err := deps.Config.Set(cfg); err != nil {
			return opDoneMsg{label: label, ok: false, detail: err.Error()}
		}
		return opDoneMsg{label: label, ok: true}
	}
}

func (m dashboardModel) startAutoCmd() tea.Cmd {
	deps := m.deps
	cfg := engine.RunConfig{UseVPN: m.posture}
	if deps.Config != nil {
		cfg.Interval = deps.Config.Get().Auto.IntervalDuration()
	}
	return func() tea.Msg {
		if err := deps.Engine.StartAuto(cfg); err != nil {
			return opDoneMsg{label: "auto start", ok: false, detail: err.Error()}
		}
		return nil // the auto-mode event reports the start
	}
}

func (m dashboardModel) stopAutoCmd() tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		deps.Engine.StopAuto()
		return opDoneMsg{label: "Auto-configuration stopped", ok: true}
	}
}

// --- View ---

func (m dashboardModel) View() string {
	title := mainTitleStyle.Render("NetSentry")
	subtitle := helpStyle.Render("  connectivity watchdog")
	header := lipgloss.JoinVertical(lipgloss.Left, title, subtitle)

	status := m.statusPane()
	logPane := m.logPane()
	main := lipgloss.JoinHorizontal(lipgloss.Top, status, logPane)

	footer := footerStyle.Render(
		"r run once · a auto on · s auto off · x check · c connect · d disconnect · v vpn use · p profiles · q quit")

	parts := []string{header, main}
	if m.flash != "" {
		parts = append(parts, m.flashLine())
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m dashboardModel) flashLine() string {
	var styled string
	switch m.kind {
	case flashSuccess:
		styled = successStyle.Render(m.flash)
	case flashWarn:
		styled = specialStyle.Render(m.flash)
	case flashError:
		styled = errorStyle.Render(m.flash)
	default:
		styled = statusMessageStyle.Render(m.flash)
	}
	return " " + styled
}

func (m dashboardModel) statusPane() string {
	paneTitle := lipgloss.NewStyle().Bold(true)
	var lines []string
	lines = append(lines, paneTitle.Render("Connectivity"), "")

	wifi := errorStyle.Render(m.state.WifiMessage)
	if m.state.WifiConnected {
		wifi = successStyle.Render(m.state.WifiMessage)
	}
	lines = append(lines, row("Wi-Fi", wifi))

	inet := errorStyle.Render("Unavailable")
	if m.state.InternetConnected {
		inet = successStyle.Render("Available")
	}
	lines = append(lines, row("Internet", inet))

	ui := helpStyle.Render("stopped")
	if m.state.VPNUIRunning {
		ui = successStyle.Render("running")
	}
	lines = append(lines, row("VPN client", ui))

	tunnel := helpStyle.Render("idle")
	switch {
	case m.state.TunnelActive:
		tunnel = successStyle.Render("active")
	case m.state.TunnelRunning:
		tunnel = specialStyle.Render("starting")
	}
	lines = append(lines, row("Tunnel", tunnel))

	vpn := errorStyle.Render("not established")
	if m.state.VPNEstablished {
		vpn = successStyle.Render("established")
	}
	lines = append(lines, row("VPN", vpn))

	lines = append(lines, "", paneTitle.Render("Reconciliation"), "")
	mode := "manual"
	if m.auto {
		mode = fmt.Sprintf("auto, every %s", m.interval)
	}
	lines = append(lines, row("Mode", mode))
	use := "off"
	if m.posture {
		use = "on"
	}
	lines = append(lines, row("Use VPN", use))
	if m.busy {
		lines = append(lines, row("Working", specialStyle.Render(m.busyWhat)))
	}

	height := m.logs.Height + 2
	return paneStyle.Width(statusPaneWidth).Height(height).Render(
		lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m dashboardModel) logPane() string {
	paneTitle := lipgloss.NewStyle().Bold(true).Render("Activity")
	content := lipgloss.JoinVertical(lipgloss.Left, paneTitle, "", m.logs.View())
	return paneStyle.MarginLeft(2).Render(content)
}

func row(label, value string) string {
	return fmt.Sprintf("%-11s %s", label, value)
}

func failDetail(ok bool, detail string) string {
	if ok {
		return ""
	}
	return detail
}
