package notify

import (
	"errors"
	"sync"
	"testing"
	"time"

	"netsentry/internal/core"
	"netsentry/internal/engine"
)

func quietLogger() *core.Logger {
	return core.NewLogger(core.LogConfig{Level: "off"})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

type sentToast struct {
	title   string
	message string
}

type toastRecorder struct {
	mu   sync.Mutex
	sent []sentToast
}

func (r *toastRecorder) push(title, message string) error {
	r.mu.Lock()
	r.sent = append(r.sent, sentToast{title: title, message: message})
	r.mu.Unlock()
	return nil
}

func (r *toastRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func (r *toastRecorder) titles() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int)
	for _, s := range r.sent {
		out[s.title]++
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestManager(enabled bool) (*Manager, *toastRecorder, *fakeClock) {
	rec := &toastRecorder{}
	clock := &fakeClock{t: time.Now()}
	m := NewManager(enabled, quietLogger())
	m.push = rec.push
	m.now = clock.now
	return m, rec, clock
}

func TestTunnelTransitionToasts(t *testing.T) {
	m, rec, _ := newTestManager(true)

	m.TunnelTransition(true)
	waitFor(t, func() bool { return rec.count() == 1 })
	m.TunnelTransition(false)
	waitFor(t, func() bool { return rec.count() == 2 })

	titles := rec.titles()
	if titles["VPN connected"] != 1 || titles["VPN disconnected"] != 1 {
		t.Errorf("titles = %v", titles)
	}
}

func TestThrottleWindow(t *testing.T) {
	m, rec, clock := newTestManager(true)

	m.TunnelTransition(true)
	waitFor(t, func() bool { return rec.count() == 1 })

	// Same key inside the window is dropped; a different key passes.
	clock.advance(10 * time.Second)
	m.TunnelTransition(true)
	m.TunnelTransition(false)
	waitFor(t, func() bool { return rec.count() == 2 })
	if titles := rec.titles(); titles["VPN connected"] != 1 {
		t.Errorf("throttled repeat delivered: %v", titles)
	}

	// Past the window the same key fires again.
	clock.advance(throttle)
	m.TunnelTransition(true)
	waitFor(t, func() bool { return rec.count() == 3 })
	if titles := rec.titles(); titles["VPN connected"] != 2 {
		t.Errorf("titles after expiry = %v", titles)
	}
}

func TestDisabledDropsEverything(t *testing.T) {
	m, rec, _ := newTestManager(false)

	m.TunnelTransition(true)
	m.ReconcileResult(engine.Result{Outcome: engine.OutcomeWifiFailed, Err: engine.ErrWifiConnect})

	m.SetEnabled(true)
	m.TunnelTransition(false)
	waitFor(t, func() bool { return rec.count() == 1 })
	if titles := rec.titles(); titles["VPN disconnected"] != 1 {
		t.Errorf("titles = %v", titles)
	}
}

func TestReconcileResultToasts(t *testing.T) {
	m, rec, _ := newTestManager(true)

	// Healthy passes are silent; verify by following with a loud one.
	m.ReconcileResult(engine.Result{Outcome: engine.OutcomeOK})
	m.ReconcileResult(engine.Result{Outcome: engine.OutcomeInternetFailed, Err: engine.ErrInternetUnreachable})
	m.ReconcileResult(engine.Result{Outcome: engine.OutcomeDegraded, Err: engine.ErrVPNStart})
	waitFor(t, func() bool { return rec.count() == 2 })

	titles := rec.titles()
	if titles["Network configuration failed"] != 1 {
		t.Errorf("fatal toast missing: %v", titles)
	}
	if titles["Network configuration incomplete"] != 1 {
		t.Errorf("degraded toast missing: %v", titles)
	}

	rec.mu.Lock()
	var sawErrText bool
	for _, s := range rec.sent {
		if s.message == engine.ErrInternetUnreachable.Error() {
			sawErrText = true
		}
	}
	rec.mu.Unlock()
	if !sawErrText {
		t.Error("toast message does not carry the failure reason")
	}
}

func TestAttachRoutesBusEvents(t *testing.T) {
	m, rec, _ := newTestManager(true)
	bus := core.NewEventBus()
	m.Attach(bus)

	bus.Publish(core.Event{
		Type:    core.EventTunnelTransition,
		Payload: core.TunnelTransitionPayload{Established: true},
	})
	bus.Publish(core.Event{
		Type:    core.EventReconcileResult,
		Payload: engine.Result{Outcome: engine.OutcomeWifiFailed, Err: engine.ErrWifiConnect},
	})

	waitFor(t, func() bool { return rec.count() == 2 })
	titles := rec.titles()
	if titles["VPN connected"] != 1 || titles["Network configuration failed"] != 1 {
		t.Errorf("titles = %v", titles)
	}
}

func TestPushFailureIsSwallowed(t *testing.T) {
	m, _, _ := newTestManager(true)
	delivered := make(chan struct{}, 1)
	m.push = func(title, message string) error {
		delivered <- struct{}{}
		return errors.New("shell unavailable")
	}

	m.TunnelTransition(true)
	select {
	case <-delivered:
	case <-time.After(3 * time.Second):
		t.Fatal("push never attempted")
	}
}
