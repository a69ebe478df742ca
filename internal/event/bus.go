package event

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

type subscriber struct {
	scope string
	ch    chan Event
}

type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string]subscriber
}

func NewBus() *InMemoryBus {
	return &InMemoryBus{
		subscribers: make(map[string]subscriber),
	}
}

func (b *InMemoryBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subscribers {
		if sub.scope != "" && sub.scope != e.Scope {
			continue
		}
		// Never block the publisher; a slow subscriber misses events.
		select {
		case sub.ch <- e:
		default:
			slog.Debug("dropping event for slow subscriber", "component", "event", "subscriber", id, "type", e.Type)
		}
	}
}

func (b *InMemoryBus) Subscribe(scope string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Event, 64)
	b.subscribers[id] = subscriber{scope: scope, ch: ch}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers, id)
			close(ch)
		})
	}

	return ch, unsubscribe
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(Event) {}
