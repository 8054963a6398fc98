package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"netsentry/internal/core"
	"netsentry/internal/store"
)

var (
	focusedStyle  = lipgloss.NewStyle().Foreground(colorHighlight)
	disabledStyle = lipgloss.NewStyle().Foreground(colorSubtle)
)

// Messages private to the profiles view.
type (
	profilesLoadedMsg struct {
		profiles []core.WifiCredential
		err      error
	}
	profileSavedMsg struct {
		ssid  string
		isNew bool
		err   error
	}
	profileDeletedMsg struct {
		ssid string
		err  error
	}
	profilesImportedMsg struct {
		report *store.ImportReport
		err    error
	}
	conflictsResolvedMsg struct {
		replaced int
		err      error
	}
	profileConnectMsg struct {
		ssid string
		ok   bool
	}
)

// loadProfilesCmd fetches the stored credentials.
func loadProfilesCmd(deps Deps) tea.Cmd {
	return func() tea.Msg {
		profiles, err := deps.Store.All(context.Background())
		return profilesLoadedMsg{profiles: profiles, err: err}
	}
}

type profilesViewState int

const (
	profilesListView profilesViewState = iota
	profilesFormView
	profilesImportView
	profilesConflictView
)

// profilesModel manages stored Wi-Fi credentials: list, add, edit,
// delete, connect, and bulk import with conflict resolution.
type profilesModel struct {
	deps  Deps
	state profilesViewState

	profiles []core.WifiCredential
	cursor   int
	status   string
	err      error

	// Add/edit form. editing holds the SSID being edited, empty for add.
	inputs     []textinput.Model // 0: ssid, 1: password
	focusIndex int
	editing    string

	isConfirmingDelete bool

	// Import flow.
	pathInput textinput.Model
	conflicts []store.Conflict

	width  int
	height int
}

func newProfilesModel(deps Deps) *profilesModel {
	return &profilesModel{deps: deps}
}

func (m *profilesModel) setSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *profilesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Results of commands apply in any sub-view.
	switch msg := msg.(type) {
	case profilesLoadedMsg:
		m.err = msg.err
		m.profiles = msg.profiles
		if m.cursor >= len(m.profiles) {
			m.cursor = len(m.profiles) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		return m, nil

	case profileSavedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.state = profilesListView
		if msg.isNew {
			m.status = fmt.Sprintf("Saved profile %q", msg.ssid)
		} else {
			m.status = fmt.Sprintf("Updated profile %q", msg.ssid)
		}
		return m, loadProfilesCmd(m.deps)

	case profileDeletedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = fmt.Sprintf("Deleted profile %q", msg.ssid)
		return m, loadProfilesCmd(m.deps)

	case profilesImportedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = profilesListView
			return m, nil
		}
		m.err = nil
		if len(msg.report.Conflicts) > 0 {
			m.conflicts = msg.report.Conflicts
			m.status = fmt.Sprintf("Imported %d, skipped %d", msg.report.Added, msg.report.Skipped)
			m.state = profilesConflictView
			return m, nil
		}
		m.status = fmt.Sprintf("Imported %d, skipped %d", msg.report.Added, msg.report.Skipped)
		m.state = profilesListView
		return m, loadProfilesCmd(m.deps)

	case conflictsResolvedMsg:
		m.conflicts = nil
		m.state = profilesListView
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.status = fmt.Sprintf("Replaced %d conflicting profiles", msg.replaced)
		return m, loadProfilesCmd(m.deps)

	case profileConnectMsg:
		if msg.ok {
			m.status = fmt.Sprintf("Connected to %q", msg.ssid)
		} else {
			m.status = fmt.Sprintf("Could not connect to %q", msg.ssid)
		}
		return m, nil
	}

	switch m.state {
	case profilesFormView:
		return m.updateForm(msg)
	case profilesImportView:
		return m.updateImportPath(msg)
	case profilesConflictView:
		return m.updateConflicts(msg)
	default:
		return m.updateList(msg)
	}
}

// --- List ---

func (m *profilesModel) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.isConfirmingDelete {
		switch key.String() {
		case "y", "Y":
			m.isConfirmingDelete = false
			return m, m.deleteCmd(m.profiles[m.cursor].SSID)
		default:
			m.isConfirmingDelete = false
			m.status = "Delete canceled"
		}
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.profiles)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.profiles) == 0 {
			return m, nil
		}
		cred := m.profiles[m.cursor]
		m.status = fmt.Sprintf("Connecting to %q", cred.SSID)
		return m, m.connectCmd(cred)
	case "a":
		m.openForm(nil)
		return m, textinput.Blink
	case "e":
		if len(m.profiles) == 0 {
			return m, nil
		}
		cred := m.profiles[m.cursor]
		m.openForm(&cred)
		return m, textinput.Blink
	case "d":
		if len(m.profiles) == 0 {
			return m, nil
		}
		m.isConfirmingDelete = true
	case "i":
		m.openImport()
		return m, textinput.Blink
	case "esc", "q":
		return m, func() tea.Msg { return backToDashboardMsg{} }
	}
	return m, nil
}

func (m *profilesModel) connectCmd(cred core.WifiCredential) tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		deps.Net.SetCredentials(cred.SSID, cred.Password)
		ok := deps.Net.ConnectWifi(context.Background(), cred.SSID, cred.Password)
		return profileConnectMsg{ssid: cred.SSID, ok: ok}
	}
}

func (m *profilesModel) deleteCmd(ssid string) tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		err := deps.Store.Delete(context.Background(), ssid)
		return profileDeletedMsg{ssid: ssid, err: err}
	}
}

// --- Add/edit form ---

func (m *profilesModel) openForm(toEdit *core.WifiCredential) {
	m.inputs = make([]textinput.Model, 2)
	for i := range m.inputs {
		t := textinput.New()
		t.Cursor.Style = focusedStyle
		t.CharLimit = 64
		t.Width = 40
		switch i {
		case 0:
			t.Prompt = "SSID:     "
			t.Placeholder = "HomeNet"
		case 1:
			t.Prompt = "Password: "
			t.Placeholder = "passphrase"
		}
		m.inputs[i] = t
	}

	if toEdit != nil {
		m.editing = toEdit.SSID
		m.inputs[0].SetValue(toEdit.SSID)
		m.inputs[0].PromptStyle = disabledStyle
		m.inputs[0].TextStyle = disabledStyle
		m.inputs[1].SetValue(toEdit.Password)
		m.inputs[1].Focus()
		m.inputs[1].TextStyle = focusedStyle
		m.focusIndex = 1
	} else {
		m.editing = ""
		m.inputs[0].Focus()
		m.inputs[0].TextStyle = focusedStyle
		m.focusIndex = 0
	}
	m.err = nil
	m.state = profilesFormView
}

func (m *profilesModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			m.state = profilesListView
			m.err = nil
			return m, nil

		case "tab", "shift+tab", "enter", "up", "down":
			s := key.String()

			if s == "enter" && m.focusIndex == len(m.inputs) {
				ssid := strings.TrimSpace(m.inputs[0].Value())
				password := m.inputs[1].Value()
				if ssid == "" {
					m.err = fmt.Errorf("ssid cannot be empty")
					return m, nil
				}
				return m, m.saveCmd(ssid, password)
			}

			first := 0
			if m.editing != "" {
				// The SSID is the lookup key, so edit mode keeps it fixed.
				first = 1
			}
			if s == "up" || s == "shift+tab" {
				m.focusIndex--
				if m.focusIndex < first {
					m.focusIndex = len(m.inputs)
				}
			} else {
				m.focusIndex++
				if m.focusIndex > len(m.inputs) {
					m.focusIndex = first
				}
			}

			cmds := make([]tea.Cmd, len(m.inputs))
			for i := range m.inputs {
				if i == m.focusIndex {
					cmds[i] = m.inputs[i].Focus()
					m.inputs[i].TextStyle = focusedStyle
					continue
				}
				m.inputs[i].Blur()
				m.inputs[i].TextStyle = lipgloss.NewStyle()
			}
			if m.editing != "" {
				m.inputs[0].TextStyle = disabledStyle
			}
			return m, tea.Batch(cmds...)
		}
	}

	cmds := make([]tea.Cmd, len(m.inputs))
	for i := range m.inputs {
		m.inputs[i], cmds[i] = m.inputs[i].Update(msg)
	}
	return m, tea.Batch(cmds...)
}

func (m *profilesModel) saveCmd(ssid, password string) tea.Cmd {
	deps := m.deps
	isNew := m.editing == ""
	return func() tea.Msg {
		err := deps.Store.Save(context.Background(), core.WifiCredential{SSID: ssid, Password: password})
		return profileSavedMsg{ssid: ssid, isNew: isNew, err: err}
	}
}

// --- Import ---

func (m *profilesModel) openImport() {
	t := textinput.New()
	t.Cursor.Style = focusedStyle
	t.Prompt = "File: "
	t.Placeholder = "profiles.json"
	t.Width = 50
	t.Focus()
	m.pathInput = t
	m.err = nil
	m.state = profilesImportView
}

func (m *profilesModel) updateImportPath(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			m.state = profilesListView
			return m, nil
		case "enter":
			path := strings.TrimSpace(m.pathInput.Value())
			if path == "" {
				m.err = fmt.Errorf("file path cannot be empty")
				return m, nil
			}
			return m, m.importCmd(path)
		}
	}
	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m *profilesModel) importCmd(path string) tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return profilesImportedMsg{err: err}
		}
		var creds []core.WifiCredential
		if err := json.Unmarshal(data, &creds); err != nil {
			return profilesImportedMsg{err: fmt.Errorf("parse %s: %w", path, err)}
		}
		report, err := deps.Store.UpsertBatch(context.Background(), creds)
		return profilesImportedMsg{report: report, err: err}
	}
}

func (m *profilesModel) updateConflicts(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "r", "R":
		return m, m.resolveCmd(store.ResolveReplace)
	case "s", "S":
		return m, m.resolveCmd(store.ResolveSkip)
	case "esc":
		m.conflicts = nil
		m.state = profilesListView
		m.status = "Conflicts left unresolved"
		return m, loadProfilesCmd(m.deps)
	}
	return m, nil
}

func (m *profilesModel) resolveCmd(action store.ResolveAction) tea.Cmd {
	deps := m.deps
	conflicts := m.conflicts
	return func() tea.Msg {
		resolutions := make([]store.Resolution, 0, len(conflicts))
		for _, c := range conflicts {
			resolutions = append(resolutions, store.Resolution{
				SSID:     c.SSID,
				Password: c.Incoming,
				Action:   action,
			})
		}
		if err := deps.Store.Apply(context.Background(), resolutions); err != nil {
			return conflictsResolvedMsg{err: err}
		}
		replaced := 0
		if action == store.ResolveReplace {
			replaced = len(resolutions)
		}
		return conflictsResolvedMsg{replaced: replaced}
	}
}

// --- View ---

func (m *profilesModel) View() string {
	switch m.state {
	case profilesFormView:
		return m.formView()
	case profilesImportView:
		return m.importView()
	case profilesConflictView:
		return m.conflictView()
	default:
		return m.listView()
	}
}

func (m *profilesModel) listView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Wi-Fi Profiles"))
	b.WriteString("\n\n")

	if len(m.profiles) == 0 {
		b.WriteString(helpStyle.Render("  No stored profiles. Press 'a' to add one."))
		b.WriteString("\n")
	}
	for i, p := range m.profiles {
		line := fmt.Sprintf("%-24s %s", p.SSID, helpStyle.Render(p.Password))
		if i == m.cursor {
			b.WriteString(selectedItemStyle.Render("> " + line))
		} else {
			b.WriteString(itemStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.isConfirmingDelete && len(m.profiles) > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Delete profile %q? (y/n)", m.profiles[m.cursor].SSID)))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(statusMessageStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter connect · a add · e edit · d delete · i import · esc back"))
	return b.String()
}

func (m *profilesModel) formView() string {
	var items []string
	if m.editing != "" {
		items = append(items, titleStyle.Render("Edit Profile"))
	} else {
		items = append(items, titleStyle.Render("Add Profile"))
	}
	items = append(items, "")
	for i := range m.inputs {
		items = append(items, m.inputs[i].View())
	}

	button := itemStyle.Render("[ Save ]")
	if m.focusIndex == len(m.inputs) {
		button = selectedItemStyle.Render("[ Save ]")
	}
	items = append(items, "", button)

	if m.err != nil {
		items = append(items, "", errorStyle.Render("Error: "+m.err.Error()))
	}
	items = append(items, "", helpStyle.Render("(tab to navigate, enter to submit, esc to cancel)"))
	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func (m *profilesModel) importView() string {
	var items []string
	items = append(items, titleStyle.Render("Import Profiles"))
	items = append(items, "", helpStyle.Render("JSON file with a list of {\"ssid\", \"password\"} objects."))
	items = append(items, "", m.pathInput.View())
	if m.err != nil {
		items = append(items, "", errorStyle.Render("Error: "+m.err.Error()))
	}
	items = append(items, "", helpStyle.Render("(enter to import, esc to cancel)"))
	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func (m *profilesModel) conflictView() string {
	var items []string
	items = append(items, titleStyle.Render("Import Conflicts"))
	items = append(items, "", specialStyle.Render(
		fmt.Sprintf("%d profiles already exist with a different password:", len(m.conflicts))))
	items = append(items, "")
	for _, c := range m.conflicts {
		items = append(items, fmt.Sprintf("  %-24s stored %q, incoming %q", c.SSID, c.Stored, c.Incoming))
	}
	items = append(items, "", helpStyle.Render("r replace all · s keep stored · esc decide later"))
	return lipgloss.JoinVertical(lipgloss.Left, items...)
}
