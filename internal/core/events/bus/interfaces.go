package bus

import "time"

// Lifecycle event types delivered by the host around the bridge.
const (
	// EventLevelUnload fires right before the engine tears a level down.
	// Handlers must have captured whatever they need when Publish returns.
	EventLevelUnload = "level.unload"
	// EventLevelLoad fires after the next level is built and before scripts resume.
	EventLevelLoad = "level.load"
	// EventEntityRemoved fires after the bridge asked the engine to remove an entity.
	EventEntityRemoved = "entity.removed"
	// EventScriptTeardown fires when a script instance is closed.
	EventScriptTeardown = "script.teardown"
)

// EventBus is a synchronous in-process pub/sub bus.
//
// Key characteristics:
// - Type-based fan-out: handlers subscribe by Event.Type().
// - Synchronous delivery in subscription order, in the publisher's goroutine.
// - Error aggregation: handler errors are joined and returned from Publish.
type EventBus interface {
	// Publish delivers the event to every active subscriber of event.Type().
	Publish(event Event) error
	// Subscribe registers a handler and returns a handle to cancel it.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. Nil is ignored.
	Unsubscribe(Subscription) error

	// AddObserver registers an observer notified of every delivery.
	AddObserver(obs Observer)
	// GetMetrics returns a snapshot of the delivery counters.
	GetMetrics() Metrics
}

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

// EventHandler is invoked per delivered event.
type EventHandler func(event Event) error

// Subscription represents a registered handler bound to an event type.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// Observer is notified about deliveries. Observers should return quickly.
type Observer interface {
	OnDelivered(eventType string, handlers int, err error)
}

// Metrics are plain counters kept for diagnostics.
type Metrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
}

// LevelEvent is the payload of EventLevelUnload and EventLevelLoad.
type LevelEvent struct {
	// Transition counts level changes since the host started.
	Transition int
}

// EntityRemovedEvent is the payload of EventEntityRemoved.
type EntityRemovedEvent struct {
	UID    uint32
	Killed bool
}
