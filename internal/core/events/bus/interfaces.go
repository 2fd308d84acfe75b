package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus.
//
// Handlers subscribe by event type, optionally within a topic; the default
// topic is "". Publish delivers synchronously in the caller's goroutine and
// joins handler errors. Handlers must not publish back into the same bus
// while holding locks the publisher needs.
type EventBus interface {
	Publish(event Event) error
	PublishToTopic(topic string, event Event) error
	// PublishAsync delivers in a new goroutine. The returned channel yields
	// the joined handler error (or nil) and is then closed.
	PublishAsync(event Event) <-chan error

	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	SubscribeTopic(topic, eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels sub. A nil sub is ignored.
	Unsubscribe(sub Subscription) error

	// AddObserver enables metrics collection; metrics stay zero while no
	// observer is registered.
	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
	Metrics() Metrics
}

// Event is one published message. Data is owned by the publisher and must
// be treated as read-only by handlers.
type Event struct {
	Type      string
	Source    string
	Timestamp time.Time
	Data      any
}

// NewEvent stamps an event with the current time.
func NewEvent(typ, source string, data any) Event {
	return Event{Type: typ, Source: source, Timestamp: time.Now(), Data: data}
}

type EventHandler func(event Event) error

type Subscription interface {
	ID() string
	EventType() string
	Topic() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// Observer is told about every delivery. Implementations must return quickly.
type Observer interface {
	OnDelivered(topic string, event Event, handlers int, err error, took time.Duration)
}

type Metrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	SubscribersActive uint64
}
