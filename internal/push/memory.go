package push

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus for tests and single-binary setups.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string]Handler
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]Handler)}
}

func (b *MemoryBus) Subscribe(_ context.Context, topic string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[topic] = h

	return nil
}

func (b *MemoryBus) Unsubscribe(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs, topic)
}

// Publish delivers synchronously to the topic's handler, if any.
func (b *MemoryBus) Publish(topic string, payload []byte) {
	b.mu.Lock()
	h := b.subs[topic]
	b.mu.Unlock()

	if h != nil {
		h(topic, payload)
	}
}

// Subscribed reports whether a handler is registered for topic.
func (b *MemoryBus) Subscribed(topic string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.subs[topic]

	return ok
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs = make(map[string]Handler)

	return nil
}
