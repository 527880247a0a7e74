// Package bus is the command bus that connects panels, the sequencer engine
// and the TUI. Events are named strings with an opaque payload. Handlers run
// synchronously on the publisher's goroutine, in the order they subscribed.
// Anything that must run on the UI goroutine subscribes through Channel and
// is drained by a tea.Cmd.
package bus

import (
	"sync"

	"go-beats/debug"
)

// Message is one published event
type Message struct {
	Event   Event
	Payload any
}

// Handler receives a published message
type Handler func(Message)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a process-wide publish/subscribe channel
type Bus struct {
	mu       sync.RWMutex
	handlers map[Event][]subscription
	all      []subscription
	nextID   uint64
}

// New creates an empty bus
func New() *Bus {
	return &Bus{
		handlers: make(map[Event][]subscription),
	}
}

// Subscribe registers h for one event and returns a function that removes it
func (b *Bus) Subscribe(ev Event, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[ev] = append(b.handlers[ev], subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[ev]
		for i, s := range subs {
			if s.id == id {
				b.handlers[ev] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers h for every event
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.all {
			if s.id == id {
				b.all = append(b.all[:i:i], b.all[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers an event to its handlers, then to catch-all handlers.
// Handlers may subscribe or publish from inside a callback.
func (b *Bus) Publish(ev Event, payload any) {
	if b == nil {
		return
	}

	b.mu.RLock()
	subs := make([]subscription, 0, len(b.handlers[ev])+len(b.all))
	subs = append(subs, b.handlers[ev]...)
	subs = append(subs, b.all...)
	b.mu.RUnlock()

	msg := Message{Event: ev, Payload: payload}
	for _, s := range subs {
		s.handler(msg)
	}
}

// Status publishes a StatusUpdate with a formatted message
func (b *Bus) Status(text string) {
	b.Publish(StatusUpdate, text)
}

// Channel forwards the given events (all events if none are given) into a
// buffered channel. Sends never block; when the buffer is full the event is
// dropped. The returned function unsubscribes.
func (b *Bus) Channel(size int, events ...Event) (<-chan Message, func()) {
	ch := make(chan Message, size)
	forward := func(msg Message) {
		select {
		case ch <- msg:
		default:
			debug.LogEvery(50, "bus", "channel full, dropped %s", msg.Event)
		}
	}

	var unsubs []func()
	if len(events) == 0 {
		unsubs = append(unsubs, b.SubscribeAll(forward))
	}
	for _, ev := range events {
		unsubs = append(unsubs, b.Subscribe(ev, forward))
	}

	return ch, func() {
		for _, u := range unsubs {
			u()
		}
	}
}
