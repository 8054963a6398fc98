package tui

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"netsentry/internal/core"
)

func loadedProfilesModel(t *testing.T, deps Deps, profiles []core.WifiCredential) *profilesModel {
	t.Helper()
	m := newProfilesModel(deps)
	mi, _ := m.Update(profilesLoadedMsg{profiles: profiles})
	return mi.(*profilesModel)
}

func typeString(m *profilesModel, s string) {
	for _, r := range s {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestProfiles_NavigationAndConnect(t *testing.T) {
	deps, _, network, _ := testDeps(t)
	m := loadedProfilesModel(t, deps, []core.WifiCredential{
		{SSID: "A", Password: "pa"},
		{SSID: "B", Password: "pb"},
	})

	mi, _ := m.Update(keyMsg("down"))
	m = mi.(*profilesModel)
	if m.cursor != 1 {
		t.Fatalf("expected cursor 1 after down, got %d", m.cursor)
	}

	mi, cmd := m.Update(keyMsg("enter"))
	m = mi.(*profilesModel)
	msg := cmd().(profileConnectMsg)
	if !msg.ok || msg.ssid != "B" {
		t.Fatalf("expected a connect to B, got %+v", msg)
	}

	calls := network.recorded()
	if len(calls) != 2 || calls[0].op != "set" || calls[1].op != "connect" {
		t.Fatalf("expected set then connect, got %+v", calls)
	}
	if calls[1].ssid != "B" || calls[1].password != "pb" {
		t.Fatalf("expected the stored credential, got %+v", calls[1])
	}
}

func TestProfiles_AddFormSaves(t *testing.T) {
	deps, _, _, st := testDeps(t)
	m := loadedProfilesModel(t, deps, nil)

	mi, _ := m.Update(keyMsg("a"))
	m = mi.(*profilesModel)
	if m.state != profilesFormView {
		t.Fatalf("expected the form view after 'a', got %v", m.state)
	}

	typeString(m, "Cafe")
	m.Update(keyMsg("tab"))
	typeString(m, "beans")
	m.Update(keyMsg("tab")) // submit button
	mi, cmd := m.Update(keyMsg("enter"))
	m = mi.(*profilesModel)
	if cmd == nil {
		t.Fatal("expected a save command")
	}
	msg := cmd().(profileSavedMsg)
	if msg.err != nil || !msg.isNew {
		t.Fatalf("expected a fresh save, got %+v", msg)
	}

	pw, found, err := st.Password(context.Background(), "Cafe")
	if err != nil || !found || pw != "beans" {
		t.Fatalf("expected the profile stored, got %q found=%v err=%v", pw, found, err)
	}

	mi, cmd = m.Update(msg)
	m = mi.(*profilesModel)
	if m.state != profilesListView {
		t.Fatal("expected the list view after saving")
	}
	if cmd == nil {
		t.Fatal("expected a reload after saving")
	}
}

func TestProfiles_AddRequiresSSID(t *testing.T) {
	deps, _, _, _ := testDeps(t)
	m := loadedProfilesModel(t, deps, nil)

	mi, _ := m.Update(keyMsg("a"))
	m = mi.(*profilesModel)
	m.Update(keyMsg("tab"))
	m.Update(keyMsg("tab"))
	mi, cmd := m.Update(keyMsg("enter"))
	m = mi.(*profilesModel)
	if cmd != nil {
		t.Fatal("expected no save for an empty ssid")
	}
	if m.err == nil {
		t.Fatal("expected a validation error")
	}
	if m.state != profilesFormView {
		t.Fatal("expected to stay on the form")
	}
}

func TestProfiles_EditKeepsSSID(t *testing.T) {
	deps, _, _, st := testDeps(t)
	st.rows = []core.WifiCredential{{SSID: "A", Password: "old"}}
	m := loadedProfilesModel(t, deps, st.rows)

	mi, _ := m.Update(keyMsg("e"))
	m = mi.(*profilesModel)
	if m.state != profilesFormView || m.editing != "A" {
		t.Fatalf("expected edit mode for A, got state %v editing %q", m.state, m.editing)
	}
	if m.focusIndex != 1 {
		t.Fatal("expected focus on the password field")
	}

	typeString(m, "er") // "old" becomes "older"
	m.Update(keyMsg("tab"))
	mi, cmd := m.Update(keyMsg("enter"))
	m = mi.(*profilesModel)
	msg := cmd().(profileSavedMsg)
	if msg.err != nil || msg.isNew || msg.ssid != "A" {
		t.Fatalf("expected an update of A, got %+v", msg)
	}

	pw, _, _ := st.Password(context.Background(), "A")
	if pw != "older" {
		t.Fatalf("expected the password updated, got %q", pw)
	}
}

func TestProfiles_DeleteConfirmFlow(t *testing.T) {
	deps, _, _, st := testDeps(t)
	st.rows = []core.WifiCredential{{SSID: "A", Password: "pa"}}
	m := loadedProfilesModel(t, deps, st.rows)

	mi, _ := m.Update(keyMsg("d"))
	m = mi.(*profilesModel)
	if !m.isConfirmingDelete {
		t.Fatal("expected the delete confirmation")
	}

	// Any key but y cancels.
	mi, cmd := m.Update(keyMsg("n"))
	m = mi.(*profilesModel)
	if m.isConfirmingDelete || cmd != nil {
		t.Fatal("expected the delete canceled")
	}
	if _, found, _ := st.Password(context.Background(), "A"); !found {
		t.Fatal("expected the profile kept")
	}

	mi, _ = m.Update(keyMsg("d"))
	m = mi.(*profilesModel)
	mi, cmd = m.Update(keyMsg("y"))
	m = mi.(*profilesModel)
	msg := cmd().(profileDeletedMsg)
	if msg.err != nil || msg.ssid != "A" {
		t.Fatalf("expected A deleted, got %+v", msg)
	}
	if _, found, _ := st.Password(context.Background(), "A"); found {
		t.Fatal("expected the profile gone")
	}
}

func TestProfiles_ImportWithConflicts(t *testing.T) {
	deps, _, _, st := testDeps(t)
	st.rows = []core.WifiCredential{{SSID: "A", Password: "old"}}

	path := filepath.Join(t.TempDir(), "profiles.json")
	payload := `[{"ssid":"A","password":"new"},{"ssid":"B","password":"pb"}]`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatal(err)
	}

	m := loadedProfilesModel(t, deps, st.rows)
	mi, _ := m.Update(keyMsg("i"))
	m = mi.(*profilesModel)
	if m.state != profilesImportView {
		t.Fatal("expected the import view")
	}

	typeString(m, path)
	mi, cmd := m.Update(keyMsg("enter"))
	m = mi.(*profilesModel)
	msg := cmd().(profilesImportedMsg)
	if msg.err != nil {
		t.Fatalf("unexpected import error: %v", msg.err)
	}
	if msg.report.Added != 1 || len(msg.report.Conflicts) != 1 {
		t.Fatalf("expected 1 added and 1 conflict, got %+v", msg.report)
	}

	mi, _ = m.Update(msg)
	m = mi.(*profilesModel)
	if m.state != profilesConflictView || len(m.conflicts) != 1 {
		t.Fatal("expected the conflict view")
	}

	mi, cmd = m.Update(keyMsg("r"))
	m = mi.(*profilesModel)
	resolved := cmd().(conflictsResolvedMsg)
	if resolved.err != nil || resolved.replaced != 1 {
		t.Fatalf("expected 1 replacement, got %+v", resolved)
	}

	pw, _, _ := st.Password(context.Background(), "A")
	if pw != "new" {
		t.Fatalf("expected the conflict replaced, got %q", pw)
	}
	if _, found, _ := st.Password(context.Background(), "B"); !found {
		t.Fatal("expected the new profile added")
	}
}

func TestProfiles_ImportSkipKeepsStored(t *testing.T) {
	deps, _, _, st := testDeps(t)
	st.rows = []core.WifiCredential{{SSID: "A", Password: "old"}}

	report, err := st.UpsertBatch(context.Background(), []core.WifiCredential{{SSID: "A", Password: "new"}})
	if err != nil || len(report.Conflicts) != 1 {
		t.Fatalf("expected one conflict, got %+v err=%v", report, err)
	}

	m := loadedProfilesModel(t, deps, st.rows)
	mi, cmd := m.Update(profilesImportedMsg{report: report})
	m = mi.(*profilesModel)
	if cmd != nil {
		t.Fatal("conflicts must wait for a decision")
	}
	if m.state != profilesConflictView {
		t.Fatal("expected the conflict view")
	}

	mi, cmd = m.Update(keyMsg("s"))
	m = mi.(*profilesModel)
	resolved := cmd().(conflictsResolvedMsg)
	if resolved.replaced != 0 {
		t.Fatalf("expected no replacements, got %d", resolved.replaced)
	}

	pw, _, _ := st.Password(context.Background(), "A")
	if pw != "old" {
		t.Fatalf("expected the stored password kept, got %q", pw)
	}
}

func TestProfiles_EscReturnsToDashboard(t *testing.T) {
	deps, _, _, _ := testDeps(t)
	m := loadedProfilesModel(t, deps, nil)

	_, cmd := m.Update(keyMsg("esc"))
	if cmd == nil {
		t.Fatal("expected a back command")
	}
	if _, ok := cmd().(backToDashboardMsg); !ok {
		t.Fatal("expected a backToDashboardMsg")
	}
}

func TestMain_ProfilesRouting(t *testing.T) {
	deps, _, _, st := testDeps(t)
	st.rows = []core.WifiCredential{{SSID: "A", Password: "pa"}}
	m := newMainModel(deps)

	mi, cmd := m.Update(keyMsg("p"))
	mm := mi.(mainModel)
	if mm.state != profilesView || mm.profiles == nil {
		t.Fatal("expected the profiles view to open")
	}
	loaded := cmd().(profilesLoadedMsg)
	mi, _ = mm.Update(loaded)
	mm = mi.(mainModel)
	if len(mm.profiles.profiles) != 1 {
		t.Fatal("expected the profiles loaded into the view")
	}

	mi, cmd = mm.Update(keyMsg("esc"))
	mm = mi.(mainModel)
	back := cmd().(backToDashboardMsg)
	mi, _ = mm.Update(back)
	mm = mi.(mainModel)
	if mm.state != dashboardView || mm.profiles != nil {
		t.Fatal("expected the dashboard restored")
	}
}
