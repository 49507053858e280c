package event

import (
	"sync"

	"github.com/google/uuid"
)

const subscriberBuffer = 100

type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	onDrop      func(Event)
}

type Option func(*InMemoryBus)

// WithDropHandler is called for every event a full subscriber could not take.
func WithDropHandler(fn func(Event)) Option {
	return func(b *InMemoryBus) {
		b.onDrop = fn
	}
}

func NewBus(opts ...Option) *InMemoryBus {
	b := &InMemoryBus{
		subscribers: make(map[string]chan Event),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *InMemoryBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		// publishers sit on the request path and must never block
		select {
		case ch <- e:
		default:
			if b.onDrop != nil {
				b.onDrop(e)
			}
		}
	}
}

func (b *InMemoryBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)
	b.subscribers[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			close(ch)
			delete(b.subscribers, id)
		})
	}

	return ch, unsubscribe
}
