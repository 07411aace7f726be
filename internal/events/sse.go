package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges a typed subscription onto a channel for
// select-loop consumers (the SSE feed). Delivery is non-blocking: when the
// subscriber's channel is full the event is dropped, so backpressure stays
// at the subscriber boundary and never reaches the producing stream.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			// Slow consumer, drop.
		}
	})
}
