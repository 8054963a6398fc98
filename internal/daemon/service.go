// Package daemon exposes the running service over the control pipe.
// Service translates ipc requests into engine, probe, and store calls;
// it owns no connectivity logic of its own.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"netsentry/internal/core"
	"netsentry/internal/engine"
	"netsentry/internal/ipc"
	"netsentry/internal/store"
)

// Reconciler is the slice of the reconciliation engine the control
// surface drives.
type Reconciler interface {
	RunOnce(ctx context.Context, cfg engine.RunConfig) engine.Result
	StartAuto(cfg engine.RunConfig) error
	StopAuto()
	AutoRunning() bool
	CheckStatus(ctx context.Context) (wifiOK, internetOK bool)
}

// NetControl is the slice of the system probe the control surface
// drives directly.
type NetControl interface {
	ConnectWifi(ctx context.Context, ssid, password string) bool
	DisconnectWifi(ctx context.Context) bool
	StartVPN(ctx context.Context) bool
	StopVPN(ctx context.Context) bool
}

// Deps collects what the service operates on.
type Deps struct {
	Engine  Reconciler
	Net     NetControl
	Store   store.Store
	Tracker *core.StateTracker
	Config  *core.ConfigManager
	Logs    *core.LogBuffer
}

// Service implements ipc.Handler for the daemon control pipe.
type Service struct {
	deps Deps

	mu       sync.Mutex
	interval time.Duration // interval of the running auto mode
}

// NewService creates the control service.
func NewService(deps Deps) *Service {
	return &Service{deps: deps}
}

// Handle dispatches one control request.
func (s *Service) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Op {
	case ipc.OpPing:
		return ipc.Response{OK: true}
	case ipc.OpStatus:
		if req.Fix {
			s.deps.Engine.CheckStatus(ctx)
		}
		return ipc.Response{OK: true, Status: s.status()}
	case ipc.OpReconcile:
		return s.reconcile(ctx, req)
	case ipc.OpAutoStart:
		return s.autoStart(req)
	case ipc.OpAutoStop:
		return s.autoStop()
	case ipc.OpWifiConnect:
		return s.wifiConnect(ctx, req)
	case ipc.OpWifiDisconnect:
		return s.wifiDisconnect(ctx)
	case ipc.OpVPNStart:
		return s.vpnStart(ctx)
	case ipc.OpVPNStop:
		return s.vpnStop(ctx)
	case ipc.OpProfileList:
		return s.profileList(ctx)
	case ipc.OpProfileSave:
		return s.profileSave(ctx, req)
	case ipc.OpProfileDelete:
		return s.profileDelete(ctx, req)
	case ipc.OpProfileImport:
		return s.profileImport(ctx, req)
	case ipc.OpLogTail:
		return s.logTail(req)
	default:
		return fail("unknown operation %q", req.Op)
	}
}

func fail(format string, args ...any) ipc.Response {
	return ipc.Response{Error: fmt.Sprintf(format, args...)}
}

// --- Reconciliation ---

func (s *Service) reconcile(ctx context.Context, req ipc.Request) ipc.Response {
	res := s.deps.Engine.RunOnce(ctx, s.runConfig(req.UseVPN, 0))
	out := &ipc.ReconcileOutcome{
		Outcome: res.Outcome.String(),
		Took:    res.Took.Round(time.Millisecond).String(),
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return ipc.Response{
		OK:     !res.Outcome.Fatal(),
		Error:  out.Error,
		Result: out,
		Status: s.status(),
	}
}

func (s *Service) autoStart(req ipc.Request) ipc.Response {
	var interval time.Duration
	if req.Interval != "" {
		d, err := time.ParseDuration(req.Interval)
		if err != nil {
			return fail("invalid interval %q", req.Interval)
		}
		interval = d
	}
	cfg := s.runConfig(req.UseVPN, interval)
	if err := s.deps.Engine.StartAuto(cfg); err != nil {
		return fail("%v", err)
	}
	s.mu.Lock()
	s.interval = cfg.Interval
	s.mu.Unlock()
	return ipc.Response{OK: true, Status: s.status()}
}

func (s *Service) autoStop() ipc.Response {
	s.deps.Engine.StopAuto()
	return ipc.Response{OK: true, Status: s.status()}
}

// runConfig folds request overrides over the configured defaults.
func (s *Service) runConfig(useVPN *bool, interval time.Duration) engine.RunConfig {
	cfg := s.deps.Config.Get()
	use := cfg.Auto.VPNEnabled()
	if useVPN != nil {
		use = *useVPN
	}
	if interval <= 0 {
		interval = cfg.Auto.IntervalDuration()
	}
	return engine.RunConfig{UseVPN: use, Interval: interval}
}

func (s *Service) status() *ipc.Status {
	st := &ipc.Status{
		ConnectivityState: s.deps.Tracker.Snapshot(),
		AutoRunning:       s.deps.Engine.AutoRunning(),
	}
	if st.AutoRunning {
		s.mu.Lock()
		st.Interval = s.interval.String()
		s.mu.Unlock()
	}
	return st
}

// --- Wi-Fi and VPN ---

func (s *Service) wifiConnect(ctx context.Context, req ipc.Request) ipc.Response {
	ssid, password := req.SSID, req.Password
	if ssid != "" && password == "" {
		pw, found, err := s.deps.Store.Password(ctx, ssid)
		if err != nil {
			return fail("look up profile %q: %v", ssid, err)
		}
		if !found {
			return fail("no stored profile for %q", ssid)
		}
		password = pw
	}
	if !s.deps.Net.ConnectWifi(ctx, ssid, password) {
		return fail("could not connect to Wi-Fi")
	}
	return ipc.Response{OK: true, Status: s.status()}
}

func (s *Service) wifiDisconnect(ctx context.Context) ipc.Response {
	if !s.deps.Net.DisconnectWifi(ctx) {
		return fail("could not disconnect Wi-Fi")
	}
	return ipc.Response{OK: true, Status: s.status()}
}

func (s *Service) vpnStart(ctx context.Context) ipc.Response {
	if !s.deps.Net.StartVPN(ctx) {
		return fail("VPN client did not start")
	}
	return ipc.Response{OK: true, Status: s.status()}
}

func (s *Service) vpnStop(ctx context.Context) ipc.Response {
	if !s.deps.Net.StopVPN(ctx) {
		return fail("VPN client did not stop")
	}
	return ipc.Response{OK: true, Status: s.status()}
}

// --- Profiles ---

func (s *Service) profileList(ctx context.Context) ipc.Response {
	creds, err := s.deps.Store.All(ctx)
	if err != nil {
		return fail("list profiles: %v", err)
	}
	return ipc.Response{OK: true, Profiles: creds}
}

func (s *Service) profileSave(ctx context.Context, req ipc.Request) ipc.Response {
	if req.SSID == "" {
		return fail("ssid must not be empty")
	}
	cred := core.WifiCredential{SSID: req.SSID, Password: req.Password}
	if err := s.deps.Store.Save(ctx, cred); err != nil {
		return fail("save profile %q: %v", req.SSID, err)
	}
	return ipc.Response{OK: true}
}

func (s *Service) profileDelete(ctx context.Context, req ipc.Request) ipc.Response {
	if req.SSID == "" {
		return fail("ssid must not be empty")
	}
	if err := s.deps.Store.Delete(ctx, req.SSID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail("no stored profile for %q", req.SSID)
		}
		return fail("delete profile %q: %v", req.SSID, err)
	}
	return ipc.Response{OK: true}
}

func (s *Service) profileImport(ctx context.Context, req ipc.Request) ipc.Response {
	replace := false
	switch req.Resolve {
	case "replace":
		replace = true
	case "", "skip":
	default:
		return fail("unknown resolve mode %q", req.Resolve)
	}
	if len(req.Profiles) == 0 {
		return fail("no profiles to import")
	}

	report, err := s.deps.Store.UpsertBatch(ctx, req.Profiles)
	if err != nil {
		return fail("import profiles: %v", err)
	}
	summary := &ipc.ImportSummary{Added: report.Added, Skipped: report.Skipped}

	if len(report.Conflicts) > 0 {
		if replace {
			resolutions := make([]store.Resolution, 0, len(report.Conflicts))
			for _, c := range report.Conflicts {
				resolutions = append(resolutions, store.Resolution{
					SSID:     c.SSID,
					Password: c.Incoming,
					Action:   store.ResolveReplace,
				})
			}
			if err := s.deps.Store.Apply(ctx, resolutions); err != nil {
				return fail("apply replacements: %v", err)
			}
			summary.Replaced = len(resolutions)
		} else {
			for _, c := range report.Conflicts {
				summary.Conflicts = append(summary.Conflicts, ipc.Conflict{
					SSID:     c.SSID,
					Stored:   c.Stored,
					Incoming: c.Incoming,
				})
			}
		}
	}
	return ipc.Response{OK: true, Import: summary}
}

// --- Logs ---

func (s *Service) logTail(req ipc.Request) ipc.Response {
	if s.deps.Logs == nil {
		return ipc.Response{OK: true}
	}
	entries := s.deps.Logs.Tail(req.Lines)
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, core.FormatEntry(e))
	}
	return ipc.Response{OK: true, Lines: lines}
}
