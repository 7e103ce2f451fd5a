package push

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBus carries push events over redis pub/sub. One PubSub per topic keeps
// Unsubscribe a plain close, which matches the monitor's swap-on-session-change
// lifecycle.
type RedisBus struct {
	client *redis.Client

	mu   sync.Mutex
	subs map[string]*redis.PubSub
}

func NewRedisBus(redisAddr string) (*RedisBus, error) {
	const op = "push.NewRedisBus"

	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisBus{
		client: client,
		subs:   make(map[string]*redis.PubSub),
	}, nil
}

func (b *RedisBus) Subscribe(ctx context.Context, topic string, h Handler) error {
	const op = "push.RedisBus.Subscribe"

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[topic]; ok {
		return fmt.Errorf("%s: already subscribed to %q", op, topic)
	}

	sub := b.client.Subscribe(ctx, topic)

	// force the subscription onto the wire before returning
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("%s: %w", op, err)
	}

	b.subs[topic] = sub

	go func() {
		for msg := range sub.Channel() {
			h(msg.Channel, []byte(msg.Payload))
		}
	}()

	return nil
}

func (b *RedisBus) Unsubscribe(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[topic]; ok {
		_ = sub.Close()
		delete(b.subs, topic)
	}
}

// Publish is used by the authoritative side and by integration tooling; the
// monitor itself only consumes.
func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	const op = "push.RedisBus.Publish"

	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	for topic, sub := range b.subs {
		_ = sub.Close()
		delete(b.subs, topic)
	}
	b.mu.Unlock()

	return b.client.Close()
}
