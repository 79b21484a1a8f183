package eventbus

import (
	"context"
	"sync"
)

// Subscriber handles a delivered envelope. Handlers must be idempotent:
// delivery is at-least-once.
type Subscriber func(ctx context.Context, envelope Envelope) error

// InMemory is a process-local bus for tests and single-node deployments.
// Deliveries happen synchronously in Publish, in subscription order, and a
// copy of every envelope is recorded for assertions.
type InMemory struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	published   []Envelope
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

// Subscribe registers a handler for all subsequent publishes.
func (b *InMemory) Subscribe(fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, fn)
}

// Publish records the envelope and fans it out. The first subscriber error
// aborts the fan-out and surfaces, mimicking a broker write failure.
func (b *InMemory) Publish(ctx context.Context, envelope Envelope) error {
	b.mu.Lock()
	b.published = append(b.published, envelope)
	subscribers := make([]Subscriber, len(b.subscribers))
	copy(subscribers, b.subscribers)
	b.mu.Unlock()

	for _, fn := range subscribers {
		if err := fn(ctx, envelope); err != nil {
			return err
		}
	}
	return nil
}

// Published returns a copy of everything published so far, in order.
func (b *InMemory) Published() []Envelope {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Envelope, len(b.published))
	copy(out, b.published)
	return out
}

// PublishedFor filters the record to one member's stream, in order.
func (b *InMemory) PublishedFor(key string) []Envelope {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Envelope
	for _, envelope := range b.published {
		if envelope.Key() == key {
			out = append(out, envelope)
		}
	}
	return out
}
