// Package notify raises desktop toasts for tunnel transitions and
// failed reconciliation passes. Repeats of the same event are
// throttled so a flapping tunnel does not flood the action center.
package notify

import (
	"sync"
	"time"

	"netsentry/internal/core"
	"netsentry/internal/engine"
)

const (
	logTag = "Notify"
	appID  = "NetSentry"

	// Minimum spacing between toasts with the same key.
	throttle = 30 * time.Second
)

// Manager sends desktop notifications with per-event throttling.
type Manager struct {
	mu      sync.Mutex
	enabled bool
	last    map[string]time.Time

	log  *core.Logger
	push func(title, message string) error
	now  func() time.Time
}

// NewManager creates a notification manager. Disabled managers drop
// every event silently.
func NewManager(enabled bool, log *core.Logger) *Manager {
	return &Manager{
		enabled: enabled,
		last:    make(map[string]time.Time),
		log:     log,
		push:    pushToast,
		now:     time.Now,
	}
}

// SetEnabled flips toast delivery at runtime.
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	m.mu.Unlock()
}

// Attach subscribes the manager to connectivity events.
func (m *Manager) Attach(bus *core.EventBus) {
	bus.Subscribe(core.EventTunnelTransition, func(e core.Event) {
		if p, ok := e.Payload.(core.TunnelTransitionPayload); ok {
			m.TunnelTransition(p.Established)
		}
	})
	bus.Subscribe(core.EventReconcileResult, func(e core.Event) {
		if res, ok := e.Payload.(engine.Result); ok {
			m.ReconcileResult(res)
		}
	})
}

// TunnelTransition announces the tunnel coming up or going down.
func (m *Manager) TunnelTransition(established bool) {
	if established {
		m.deliver("tunnel:up", "VPN connected", "The tunnel is established and traffic is protected")
	} else {
		m.deliver("tunnel:down", "VPN disconnected", "The tunnel is down, traffic is unprotected")
	}
}

// ReconcileResult announces failed passes. Successful passes stay
// quiet.
func (m *Manager) ReconcileResult(res engine.Result) {
	if res.Outcome == engine.OutcomeOK {
		return
	}
	title := "Network configuration failed"
	if res.Outcome == engine.OutcomeDegraded {
		title = "Network configuration incomplete"
	}
	message := res.Outcome.String()
	if res.Err != nil {
		message = res.Err.Error()
	}
	m.deliver("reconcile:"+res.Outcome.String(), title, message)
}

// deliver sends one toast unless the key fired within the throttle
// window. The push itself runs on its own goroutine; toast delivery
// can block on the shell.
func (m *Manager) deliver(key, title, message string) {
	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return
	}
	if m.now().Sub(m.last[key]) < throttle {
		m.mu.Unlock()
		return
	}
	m.last[key] = m.now()
	m.mu.Unlock()

	go m.send(title, message)
}

func (m *Manager) send(title, message string) {
	if err := m.push(title, message); err != nil {
		m.log.Warnf(logTag, "Toast delivery failed: %v", err)
	}
}
