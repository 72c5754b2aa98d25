package api

import (
	"sync"
)

// SSEEvent is one progress notification of an exploration stream.
type SSEEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// EventBroker fans exploration progress out to stream subscribers.
type EventBroker interface {
	Subscribe(streamID string) chan SSEEvent
	Unsubscribe(streamID string, ch chan SSEEvent)
	Publish(streamID string, evt SSEEvent)
}

// Broker is the in-process EventBroker. Slow subscribers miss events rather
// than block the publisher.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan SSEEvent]struct{} // streamId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan SSEEvent]struct{}{}}
}

func (b *Broker) Subscribe(streamID string) chan SSEEvent {
	ch := make(chan SSEEvent, 32)
	b.mu.Lock()
	if b.subs[streamID] == nil {
		b.subs[streamID] = map[chan SSEEvent]struct{}{}
	}
	b.subs[streamID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(streamID string, ch chan SSEEvent) {
	b.mu.Lock()
	if m := b.subs[streamID]; m != nil {
		if _, ok := m[ch]; ok {
			delete(m, ch)
			close(ch)
		}
		if len(m) == 0 {
			delete(b.subs, streamID)
		}
	}
	b.mu.Unlock()
}

func (b *Broker) Publish(streamID string, evt SSEEvent) {
	b.mu.Lock()
	for ch := range b.subs[streamID] {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}
