// Package engine drives connectivity toward the desired posture. A pass
// walks Wi-Fi, internet, and VPN in order, short-circuiting on fatal
// failures and issuing the minimal corrective actions through the probe.
// Passes run one-shot or on a timer; they never overlap.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"netsentry/internal/core"
)

const logTag = "Engine"

// statusSettle is the pause after a corrective action in a status sweep,
// before the next check.
const statusSettle = 2 * time.Second

// RunConfig is the desired posture for one pass or for auto mode.
// Auto mode captures it at StartAuto; a new interval takes effect only
// after StopAuto + StartAuto.
type RunConfig struct {
	UseVPN   bool
	Interval time.Duration
}

// Probe is the slice of the system probe the engine drives.
type Probe interface {
	Target() (ssid, password string)
	WifiStatus(ctx context.Context, target string) (bool, string)
	ConnectWifi(ctx context.Context, ssid, password string) bool
	DisconnectWifi(ctx context.Context) bool
	InternetReachable(ctx context.Context) bool
	VPNUIRunning(ctx context.Context) bool
	StartVPN(ctx context.Context) bool
	StopVPN(ctx context.Context) bool
}

// Engine runs reconciliation passes. All blocking work happens on the
// caller's goroutine (RunOnce, CheckStatus) or the auto-mode loop; results
// and state snapshots come back over the bus.
type Engine struct {
	probe   Probe
	tracker *core.StateTracker
	bus     *core.EventBus
	log     *core.Logger
	confirm ConfirmFunc

	sleep           func(ctx context.Context, d time.Duration)
	postConnectWait time.Duration

	// runMu serializes passes: auto ticks already run serially on the
	// loop goroutine, manual passes and sweeps queue behind them here.
	runMu sync.Mutex

	mu     sync.Mutex
	auto   bool
	cancel context.CancelFunc
	done   chan struct{}
}

// Option overrides an Engine seam.
type Option func(*Engine)

// WithConfirm installs the confirmation hook for corrective actions.
func WithConfirm(confirm ConfirmFunc) Option {
	return func(e *Engine) { e.confirm = confirm }
}

// WithSleep replaces the settle wait. Tests pass a no-op.
func WithSleep(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// WithPostConnectWait sets the pause between a Wi-Fi connect attempt and
// the recheck that decides the Wi-Fi stage.
func WithPostConnectWait(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.postConnectWait = d
		}
	}
}

// New creates an Engine. With no WithConfirm option every corrective
// action is auto-approved.
func New(p Probe, tracker *core.StateTracker, bus *core.EventBus, log *core.Logger, opts ...Option) *Engine {
	e := &Engine{
		probe:           p,
		tracker:         tracker,
		bus:             bus,
		log:             log,
		sleep:           sleepCtx,
		postConnectWait: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunOnce executes a single reconciliation pass and blocks until it
// completes. It is safe to call concurrently with auto mode; overlapping
// passes queue, they never run concurrently.
func (e *Engine) RunOnce(ctx context.Context, cfg RunConfig) Result {
	return e.runPass(ctx, cfg, e.confirm)
}

func (e *Engine) runPass(ctx context.Context, cfg RunConfig, confirm ConfirmFunc) (res Result) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	res = Result{Started: time.Now()}
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorf(logTag, "Configuration pass failed unexpectedly: %v", r)
			res.Outcome = OutcomeUnexpected
			res.Err = fmt.Errorf("unexpected reconciliation error: %v", r)
		}
		res.State = e.tracker.Snapshot()
		res.Took = time.Since(res.Started)
		e.publishResult(res)
	}()

	e.log.Infof(logTag, "Starting network configuration pass")

	// Wi-Fi first: nothing downstream can work without an association.
	target, _ := e.probe.Target()
	wifiOK, msg := e.probe.WifiStatus(ctx, target)
	if !wifiOK {
		e.log.Infof(logTag, "Wi-Fi is not connected, attempting to connect")
		e.probe.ConnectWifi(ctx, "", "")
		e.sleep(ctx, e.postConnectWait)
		// The connect may have auto-selected a new target.
		target, _ = e.probe.Target()
		wifiOK, msg = e.probe.WifiStatus(ctx, target)
	}
	e.tracker.SetWifi(wifiOK, msg)
	if !wifiOK {
		e.log.Warnf(logTag, "Failed to connect to Wi-Fi")
		res.Outcome = OutcomeWifiFailed
		res.Err = ErrWifiConnect
		return res
	}

	// Internet next: an association without reachability gets one reset.
	online := e.probe.InternetReachable(ctx)
	if !online {
		e.log.Warnf(logTag, "Internet connection is down, attempting to fix")
		if e.approve(ctx, confirm, ActionResetWifi) {
			e.probe.DisconnectWifi(ctx)
			e.probe.ConnectWifi(ctx, "", "")
			online = e.probe.InternetReachable(ctx)
			if !online {
				e.log.Errorf(logTag, "Failed to restore internet connection")
			}
		} else {
			e.log.Infof(logTag, "Wi-Fi reset declined")
		}
	}
	e.tracker.SetInternet(online)
	if !online {
		res.Outcome = OutcomeInternetFailed
		res.Err = ErrInternetUnreachable
		return res
	}

	// VPN last, and only the client process: the tunnel verdict itself
	// belongs to the monitor.
	if cfg.UseVPN {
		if !e.probe.VPNUIRunning(ctx) {
			e.log.Infof(logTag, "VPN is not connected, attempting to connect")
			if e.approve(ctx, confirm, ActionStartVPN) {
				if !e.probe.StartVPN(ctx) {
					e.log.Warnf(logTag, "Failed to connect to VPN")
					res.Outcome = OutcomeDegraded
					res.Err = ErrVPNStart
					return res
				}
			} else {
				e.log.Infof(logTag, "VPN start declined")
			}
		}
	} else if e.probe.VPNUIRunning(ctx) {
		e.log.Infof(logTag, "VPN is running but VPN use is disabled, disconnecting")
		if !e.probe.StopVPN(ctx) {
			e.log.Warnf(logTag, "VPN client did not stop cleanly")
		}
	}

	e.log.Infof(logTag, "Network configuration completed successfully")
	res.Outcome = OutcomeOK
	return res
}

func (e *Engine) approve(ctx context.Context, confirm ConfirmFunc, action Action) bool {
	if confirm == nil {
		return true
	}
	return confirm(ctx, action)
}

// StartAuto begins timer-driven reconciliation with the given config.
// The first pass fires after one full interval.
func (e *Engine) StartAuto(cfg RunConfig) error {
	if cfg.Interval <= 0 {
		e.log.Warnf(logTag, "Rejecting auto-configuration: %v", ErrInvalidInterval)
		return ErrInvalidInterval
	}

	e.mu.Lock()
	if e.auto {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.auto = true
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	e.log.Infof(logTag, "Auto-configuration started with an interval of %s", cfg.Interval)
	e.publishAutoMode(true, cfg.Interval)

	go e.autoLoop(ctx, cfg, done)
	return nil
}

func (e *Engine) autoLoop(ctx context.Context, cfg RunConfig, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			// Unattended passes auto-approve corrective actions, and an
			// in-flight pass is never cut short by StopAuto.
			e.runPass(context.Background(), cfg, nil)
		}
	}
}

// StopAuto cancels timer-driven reconciliation and waits for an in-flight
// pass to complete. After it returns no further pass starts. Safe to call
// when auto mode is not running.
func (e *Engine) StopAuto() {
	e.mu.Lock()
	if !e.auto {
		e.mu.Unlock()
		return
	}
	cancel, done := e.cancel, e.done
	e.auto = false
	e.cancel = nil
	e.done = nil
	e.mu.Unlock()

	cancel()
	<-done

	e.log.Infof(logTag, "Auto-configuration stopped")
	e.publishAutoMode(false, 0)
}

// AutoRunning reports whether timer-driven reconciliation is active.
func (e *Engine) AutoRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.auto
}

// CheckStatus refreshes the Wi-Fi and internet verdicts and offers the
// two corrective actions interactively: a Wi-Fi reset when the internet
// is unreachable, a VPN start when the client is idle. Each approved
// action is followed by a short settle, and the reset re-queries so the
// published state reflects the post-reset truth.
func (e *Engine) CheckStatus(ctx context.Context) (wifiOK, internetOK bool) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	target, _ := e.probe.Target()
	wifiOK, msg := e.probe.WifiStatus(ctx, target)
	internetOK = e.probe.InternetReachable(ctx)
	e.tracker.SetWifi(wifiOK, msg)
	e.tracker.SetInternet(internetOK)

	if !internetOK {
		e.log.Infof(logTag, "Requesting Wi-Fi reset due to no internet connection")
		if e.approve(ctx, e.confirm, ActionResetWifi) {
			e.log.Infof(logTag, "Wi-Fi reset confirmed")
			e.probe.DisconnectWifi(ctx)
			e.probe.ConnectWifi(ctx, "", "")
			e.sleep(ctx, statusSettle)
			target, _ = e.probe.Target()
			wifiOK, msg = e.probe.WifiStatus(ctx, target)
			internetOK = e.probe.InternetReachable(ctx)
			e.tracker.SetWifi(wifiOK, msg)
			e.tracker.SetInternet(internetOK)
		}
	}

	if !e.probe.VPNUIRunning(ctx) {
		e.log.Infof(logTag, "Requesting VPN start as it is not running")
		if e.approve(ctx, e.confirm, ActionStartVPN) {
			e.log.Infof(logTag, "VPN start confirmed")
			e.probe.StartVPN(ctx)
			e.sleep(ctx, statusSettle)
		}
	}

	return wifiOK, internetOK
}

func (e *Engine) publishResult(res Result) {
	if e.bus != nil {
		e.bus.Publish(core.Event{Type: core.EventReconcileResult, Payload: res})
	}
}

func (e *Engine) publishAutoMode(running bool, interval time.Duration) {
	if e.bus != nil {
		e.bus.Publish(core.Event{Type: core.EventAutoMode, Payload: core.AutoModePayload{
			Running:  running,
			Interval: interval,
		}})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
