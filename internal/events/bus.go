package events

import (
	"sync"
	"time"
)

// Event is a lifecycle notification pushed to live subscribers
type Event struct {
	Type      string                 `json:"type"`
	RequestID string                 `json:"requestId"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	At        time.Time              `json:"at"`
}

// Bus fans lifecycle events out to live subscribers. Memory-backed and
// shared-backed implementations must be interchangeable; nothing may assume
// a process-wide singleton.
type Bus interface {
	Publish(event Event)
	// Subscribe registers a listener. The returned cancel function must be
	// called to release it.
	Subscribe() (<-chan Event, func())
}

const subscriberBuffer = 16

// MemoryBus is the default in-process Bus
type MemoryBus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewMemoryBus creates an empty in-process bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]chan Event)}
}

// Publish delivers the event to every subscriber. A subscriber that has
// fallen behind its buffer misses the event rather than blocking the
// publisher.
func (b *MemoryBus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *MemoryBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

var _ Bus = (*MemoryBus)(nil)
