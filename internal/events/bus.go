package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for broadcasting router events to
// observability consumers (the status API, metrics counters) without the
// dispatch core depending on those consumers directly.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(NicMovedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case DeviceNodeCreatedEvent:
		event.Publish(b.dispatcher, e)
	case DeviceNodeRemovedEvent:
		event.Publish(b.dispatcher, e)
	case NicMovedEvent:
		event.Publish(b.dispatcher, e)
	case UsbAllowedEvent:
		event.Publish(b.dispatcher, e)
	case UsbDeniedEvent:
		event.Publish(b.dispatcher, e)
	case InjectionFailedEvent:
		event.Publish(b.dispatcher, e)
	case FrameDroppedEvent:
		event.Publish(b.dispatcher, e)
	case ColdbootTriggeredEvent:
		event.Publish(b.dispatcher, e)
	}
}

// SubscribeToChannel bridges a kelindar/event callback subscription to a
// channel, for consumers that want a select loop instead of a callback. Drops events if the channel is full rather than blocking
// the publisher.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// Subscribe subscribes to events with a handler function. The handler type
// determines which events it receives (type inference). Returns an
// unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e NicMovedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(DeviceNodeCreatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceNodeRemovedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(NicMovedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(UsbAllowedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(UsbDeniedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(InjectionFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FrameDroppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ColdbootTriggeredEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Unrecognized handler type: no-op unsubscribe.
		return func() {}
	}
}
