// Package monitor watches the external VPN client in the background and
// turns raw process facts into the established/not-established verdict.
// It publishes a level-triggered sample every tick and a single
// edge-triggered transition event whenever the verdict flips, edge first.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"netsentry/internal/core"
)

const logTag = "Monitor"

// ErrAlreadyRunning is returned by Start while the sampler loop is live.
var ErrAlreadyRunning = errors.New("monitor already running")

// Sampler reports one observation of the VPN client processes.
// Implementations fail closed: errors read as nothing-running.
type Sampler interface {
	Sample(ctx context.Context) (uiRunning, tunnelRunning, tunnelActive bool)
}

// Monitor runs the background sampling loop.
type Monitor struct {
	sampler  Sampler
	tracker  *core.StateTracker
	bus      *core.EventBus
	log      *core.Logger
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a monitor sampling at the given interval. Intervals of
// zero or less fall back to one second.
func New(sampler Sampler, tracker *core.StateTracker, bus *core.EventBus, log *core.Logger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{
		sampler:  sampler,
		tracker:  tracker,
		bus:      bus,
		log:      log,
		interval: interval,
	}
}

// Start launches the sampling loop. A second Start while running returns
// ErrAlreadyRunning.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go m.loop(ctx, m.done)
	m.log.Infof(logTag, "Tunnel monitoring started")
	return nil
}

// Stop halts the loop and joins it: when Stop returns, no further sample
// is taken and no further event is published. Safe to call when idle.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.mu.Unlock()

	cancel()
	<-done
	m.log.Infof(logTag, "Tunnel monitoring stopped")
}

// Running reports whether the loop is live.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	last := false
	first := true
	for {
		m.tick(ctx, &last, &first)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick takes one sample, publishes the edge (if any) then the sample,
// and updates the shared state.
func (m *Monitor) tick(ctx context.Context, last, first *bool) {
	ui, tunnel, active := m.sampler.Sample(ctx)
	sample := core.TunnelSample{
		UIRunning:     ui,
		TunnelRunning: tunnel,
		TunnelActive:  tunnel && active,
	}
	sample.Established = sample.UIRunning && sample.TunnelRunning && sample.TunnelActive

	if sample.Established != *last || *first {
		switch {
		case sample.Established:
			m.log.Infof(logTag, "VPN tunnel connected")
			m.publishTransition(sample)
		case !*first:
			m.log.Infof(logTag, "VPN tunnel disconnected")
			m.publishTransition(sample)
		default:
			// The very first sample with no tunnel is the baseline,
			// not a flip.
			m.log.Infof(logTag, "Initial tunnel status: not connected")
		}
		*last = sample.Established
		*first = false
	}

	if m.bus != nil {
		m.bus.Publish(core.Event{Type: core.EventTunnelSample, Payload: core.TunnelSamplePayload{Sample: sample}})
	}
	if m.tracker != nil {
		m.tracker.SetTunnel(sample)
	}
}

func (m *Monitor) publishTransition(sample core.TunnelSample) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(core.Event{Type: core.EventTunnelTransition, Payload: core.TunnelTransitionPayload{
		Established: sample.Established,
		Sample:      sample,
	}})
}
