package tui

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"netsentry/internal/core"
	"netsentry/internal/engine"
	"netsentry/internal/store"
)

func quietLogger() *core.Logger {
	return core.NewLogger(core.LogConfig{Level: "off"})
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

type fakeReconciler struct {
	mu         sync.Mutex
	runs       []engine.RunConfig
	result     engine.Result
	autoErr    error
	running    bool
	wifiOK     bool
	internetOK bool
}

func (f *fakeReconciler) RunOnce(ctx context.Context, cfg engine.RunConfig) engine.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, cfg)
	return f.result
}

func (f *fakeReconciler) StartAuto(cfg engine.RunConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.autoErr != nil {
		return f.autoErr
	}
	f.running = true
	return nil
}

func (f *fakeReconciler) StopAuto() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
}

func (f *fakeReconciler) AutoRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeReconciler) CheckStatus(ctx context.Context) (bool, bool) {
	return f.wifiOK, f.internetOK
}

func (f *fakeReconciler) recordedRuns() []engine.RunConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.RunConfig(nil), f.runs...)
}

type netCall struct {
	op       string
	ssid     string
	password string
}

type fakeNet struct {
	mu    sync.Mutex
	calls []netCall
	ok    bool
}

func (f *fakeNet) record(op, ssid, password string) {
	f.mu.Lock()
	f.calls = append(f.calls, netCall{op: op, ssid: ssid, password: password})
	f.mu.Unlock()
}

func (f *fakeNet) SetCredentials(ssid, password string) { f.record("set", ssid, password) }

func (f *fakeNet) ConnectWifi(ctx context.Context, ssid, password string) bool {
	f.record("connect", ssid, password)
	return f.ok
}

func (f *fakeNet) DisconnectWifi(ctx context.Context) bool {
	f.record("disconnect", "", "")
	return f.ok
}

func (f *fakeNet) StartVPN(ctx context.Context) bool {
	f.record("vpn start", "", "")
	return f.ok
}

func (f *fakeNet) StopVPN(ctx context.Context) bool {
	f.record("vpn stop", "", "")
	return f.ok
}

func (f *fakeNet) recorded() []netCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]netCall(nil), f.calls...)
}

type fakeStore struct {
	mu          sync.Mutex
	rows        []core.WifiCredential
	resolutions []store.Resolution
}

func (f *fakeStore) find(ssid string) int {
	for i, r := range f.rows {
		if r.SSID == ssid {
			return i
		}
	}
	return -1
}

func (f *fakeStore) Password(ctx context.Context, ssid string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.find(ssid); i >= 0 {
		return f.rows[i].Password, true, nil
	}
	return "", false, nil
}

func (f *fakeStore) All(ctx context.Context) ([]core.WifiCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.WifiCredential(nil), f.rows...), nil
}

func (f *fakeStore) UpsertBatch(ctx context.Context, creds []core.WifiCredential) (*store.ImportReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report := &store.ImportReport{}
	for _, c := range creds {
		if i := f.find(c.SSID); i >= 0 {
			if f.rows[i].Password == c.Password {
				report.Skipped++
			} else {
				report.Conflicts = append(report.Conflicts, store.Conflict{
					SSID: c.SSID, Stored: f.rows[i].Password, Incoming: c.Password,
				})
			}
			continue
		}
		f.rows = append(f.rows, c)
		report.Added++
	}
	return report, nil
}

func (f *fakeStore) Apply(ctx context.Context, resolutions []store.Resolution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolutions = append(f.resolutions, resolutions...)
	for _, r := range resolutions {
		if r.Action != store.ResolveReplace {
			continue
		}
		if i := f.find(r.SSID); i >= 0 {
			f.rows[i].Password = r.Password
		}
	}
	return nil
}

func (f *fakeStore) Save(ctx context.Context, cred core.WifiCredential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.find(cred.SSID); i >= 0 {
		f.rows[i] = cred
		return nil
	}
	f.rows = append(f.rows, cred)
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, ssid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(ssid)
	if i < 0 {
		return store.ErrNotFound
	}
	f.rows = append(f.rows[:i], f.rows[i+1:]...)
	return nil
}

func (f *fakeStore) Close() error { return nil }

func testDeps(t *testing.T) (Deps, *fakeReconciler, *fakeNet, *fakeStore) {
	t.Helper()
	eng := &fakeReconciler{}
	network := &fakeNet{ok: true}
	st := &fakeStore{}
	deps := Deps{
		Engine:  eng,
		Net:     network,
		Store:   st,
		Tracker: core.NewStateTracker(nil),
		Config:  core.NewConfigManager(filepath.Join(t.TempDir(), "config.yaml"), nil, quietLogger()),
		Logs:    core.NewLogBuffer(100),
		Log:     quietLogger(),
	}
	return deps, eng, network, st
}
