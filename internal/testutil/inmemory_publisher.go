package testutil

import (
	"context"
	"sync"

	"github.com/cartpay/cartpay/internal/publisher"
)

var _ publisher.EventPublisher = (*InMemoryEventPublisher)(nil)

// PublishedEvent is one captured Publish call
type PublishedEvent struct {
	EventName string
	Payload   interface{}
}

// InMemoryEventPublisher records published events for assertions
type InMemoryEventPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
}

func NewInMemoryEventPublisher() *InMemoryEventPublisher {
	return &InMemoryEventPublisher{}
}

func (p *InMemoryEventPublisher) Publish(ctx context.Context, eventName string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, PublishedEvent{EventName: eventName, Payload: payload})
}

func (p *InMemoryEventPublisher) Events() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PublishedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// EventNames returns the names of all published events in order
func (p *InMemoryEventPublisher) EventNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.events))
	for _, e := range p.events {
		names = append(names, e.EventName)
	}
	return names
}

func (p *InMemoryEventPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
