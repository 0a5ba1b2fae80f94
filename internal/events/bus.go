package events

import (
	"sync"
)

// Message is the envelope delivered to subscribers. Topic identifies which of
// the subscribed events produced the payload.
type Message struct {
	Topic   Event `json:"topic"`
	Payload any   `json:"payload"`
}

// Bus is a lightweight pub/sub broker using channels. A subscription may span
// several topics and receives them multiplexed over one channel.
type Bus struct {
	mu   sync.RWMutex
	subs map[Event][]chan Message
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Event][]chan Message)}
}

// Subscribe registers a listener for one or more events and returns the
// channel together with an unsubscribe function.
func (b *Bus) Subscribe(buffer int, topics ...Event) (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Message, buffer)
	for _, e := range topics {
		b.subs[e] = append(b.subs[e], ch)
	}

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, e := range topics {
			subs := b.subs[e]
			for i, c := range subs {
				if c == ch {
					b.subs[e] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
		}
		close(ch)
	}

	return ch, unsub
}

// Publish fan-outs the payload to subscribers without blocking the publisher.
func (b *Bus) Publish(e Event, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	msg := Message{Topic: e, Payload: payload}
	for _, ch := range b.subs[e] {
		select {
		case ch <- msg:
		default:
			// drop if subscriber is slow; keep broker non-blocking
		}
	}
}
