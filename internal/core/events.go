package core

import (
	"sync"
	"time"
)

// EventType identifies the kind of event fired on the bus.
type EventType int

const (
	// EventTunnelTransition fires when the established verdict flips.
	// Exactly one per flip, always before the sample event of the same tick.
	EventTunnelTransition EventType = iota
	// EventTunnelSample fires on every monitor tick with the full sample.
	EventTunnelSample
	// EventStateChanged fires when the connectivity snapshot changes.
	EventStateChanged
	// EventReconcileResult fires after every reconciliation pass.
	EventReconcileResult
	// EventAutoMode fires when timer-driven reconciliation starts or stops.
	EventAutoMode
	// EventConfigSaved fires after the configuration is replaced and persisted.
	EventConfigSaved
)

// Event carries data about something that happened in the system.
type Event struct {
	Type    EventType
	Payload any
}

// TunnelTransitionPayload is the payload for EventTunnelTransition.
type TunnelTransitionPayload struct {
	Established bool
	Sample      TunnelSample
}

// TunnelSamplePayload is the payload for EventTunnelSample.
type TunnelSamplePayload struct {
	Sample TunnelSample
}

// StateChangedPayload is the payload for EventStateChanged.
// State is a value copy; subscribers may keep it.
type StateChangedPayload struct {
	State ConnectivityState
}

// AutoModePayload is the payload for EventAutoMode.
type AutoModePayload struct {
	Running  bool
	Interval time.Duration
}

// ConfigSavedPayload is the payload for EventConfigSaved.
type ConfigSavedPayload struct {
	Config Config
}

// Handler is a callback for bus subscribers.
type Handler func(Event)

// EventBus provides pub/sub between system components. Publish is
// synchronous and in-order, which is what gives monitor subscribers the
// edge-before-sample ordering guarantee; handlers that need to do real
// work bridge into their own goroutine or channel.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEventBus creates a ready-to-use event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for a given event type.
func (eb *EventBus) Subscribe(t EventType, h Handler) {
	eb.mu.Lock()
	eb.handlers[t] = append(eb.handlers[t], h)
	eb.mu.Unlock()
}

// Publish fires an event to all subscribed handlers synchronously.
func (eb *EventBus) Publish(e Event) {
	eb.mu.RLock()
	handlers := eb.handlers[e.Type]
	eb.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// PublishAsync fires an event to all subscribed handlers in goroutines.
func (eb *EventBus) PublishAsync(e Event) {
	eb.mu.RLock()
	handlers := eb.handlers[e.Type]
	eb.mu.RUnlock()

	for _, h := range handlers {
		go h(e)
	}
}
