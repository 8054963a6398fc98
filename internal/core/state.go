package core

import "sync"

// WifiCredential pairs a network name with its clear-text key. Keys read
// back from the OS may carry the "Not Available" or "Error" sentinels and
// those flow through unchanged.
type WifiCredential struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

// TunnelSample is one observation of the VPN client's processes.
type TunnelSample struct {
	UIRunning     bool `json:"ui_running"`
	TunnelRunning bool `json:"tunnel_running"`
	TunnelActive  bool `json:"tunnel_active"`
	Established   bool `json:"established"`
}

// ConnectivityState is an immutable snapshot of the machine's posture.
// Established implies TunnelActive implies TunnelRunning in every
// published snapshot.
type ConnectivityState struct {
	WifiConnected     bool   `json:"wifi_connected"`
	WifiMessage       string `json:"wifi_message"`
	InternetConnected bool   `json:"internet_connected"`
	VPNUIRunning      bool   `json:"vpn_ui_running"`
	TunnelRunning     bool   `json:"tunnel_running"`
	TunnelActive      bool   `json:"tunnel_active"`
	VPNEstablished    bool   `json:"vpn_established"`
}

// StateTracker owns the current ConnectivityState. The probe/engine side
// writes the wifi and internet fields, the monitor writes the VPN fields;
// neither touches the other's subset. Every observable change publishes a
// value copy on the bus.
type StateTracker struct {
	mu    sync.RWMutex
	state ConnectivityState
	bus   *EventBus
}

// NewStateTracker creates a tracker publishing to bus. A nil bus is
// allowed for tests that only read snapshots.
func NewStateTracker(bus *EventBus) *StateTracker {
	return &StateTracker{
		bus: bus,
		state: ConnectivityState{
			WifiMessage: "Unknown",
		},
	}
}

// Snapshot returns a value copy of the current state.
func (t *StateTracker) Snapshot() ConnectivityState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// SetWifi records the Wi-Fi association verdict.
func (t *StateTracker) SetWifi(connected bool, message string) {
	t.mu.Lock()
	changed := t.state.WifiConnected != connected || t.state.WifiMessage != message
	t.state.WifiConnected = connected
	t.state.WifiMessage = message
	snap := t.state
	t.mu.Unlock()
	if changed {
		t.publish(snap)
	}
}

// SetInternet records the reachability verdict.
func (t *StateTracker) SetInternet(connected bool) {
	t.mu.Lock()
	changed := t.state.InternetConnected != connected
	t.state.InternetConnected = connected
	snap := t.state
	t.mu.Unlock()
	if changed {
		t.publish(snap)
	}
}

// SetTunnel records a monitor sample. Activity without a tunnel process is
// a stale observation and is dropped so the implication chain holds.
func (t *StateTracker) SetTunnel(s TunnelSample) {
	if !s.TunnelRunning {
		s.TunnelActive = false
	}
	s.Established = s.UIRunning && s.TunnelRunning && s.TunnelActive

	t.mu.Lock()
	changed := t.state.VPNUIRunning != s.UIRunning ||
		t.state.TunnelRunning != s.TunnelRunning ||
		t.state.TunnelActive != s.TunnelActive ||
		t.state.VPNEstablished != s.Established
	t.state.VPNUIRunning = s.UIRunning
	t.state.TunnelRunning = s.TunnelRunning
	t.state.TunnelActive = s.TunnelActive
	t.state.VPNEstablished = s.Established
	snap := t.state
	t.mu.Unlock()
	if changed {
		t.publish(snap)
	}
}

func (t *StateTracker) publish(snap ConnectivityState) {
	if t.bus != nil {
		t.bus.Publish(Event{Type: EventStateChanged, Payload: StateChangedPayload{State: snap}})
	}
}
