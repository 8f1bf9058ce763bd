package outbox

import "context"

// Event is a named domain event carried through the bus.
type Event interface {
	EventName() string
}

// Handler consumes one delivered event.
type Handler func(ctx context.Context, e Event) error

// Publisher hands an event over for asynchronous dispatch.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber binds a handler to an event name.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
