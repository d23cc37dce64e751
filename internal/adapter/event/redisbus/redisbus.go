// Package redisbus is the EventAdapter backend for the standard profile:
// a single Redis pub/sub channel shared by every process, so a cache
// invalidation on one node reaches every other node's query result
// cache. Grounded on the teacher's go-redis usage in
// internal/infrastructure/lock and internal/infrastructure/cache.
package redisbus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/agent-memory/agent-memory/internal/adapter/event"
	"github.com/agent-memory/agent-memory/internal/metrics"
)

// Bus publishes and subscribes over one Redis pub/sub channel, fanning
// incoming messages out to every locally registered handler from a
// single reader goroutine.
type Bus struct {
	client  *redis.Client
	channel string
	m       *metrics.Registry

	mu       sync.Mutex
	pubsub   *redis.PubSub
	handlers map[int]event.Handler
	nextID   int
}

// New constructs a Bus bound to channel on client.
func New(client *redis.Client, channel string, m *metrics.Registry) *Bus {
	return &Bus{client: client, channel: channel, m: m, handlers: make(map[int]event.Handler)}
}

// Publish JSON-encodes evt and publishes it to the shared channel.
func (b *Bus) Publish(ctx context.Context, evt event.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Subscribe ensures the shared subscription's reader goroutine is
// running and registers h against every message it receives.
func (b *Bus) Subscribe(ctx context.Context, h event.Handler) (event.Unsubscribe, error) {
	b.mu.Lock()
	if b.pubsub == nil {
		b.pubsub = b.client.Subscribe(ctx, b.channel)
		go b.readLoop(b.pubsub.Channel())
	}
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
	return unsub, nil
}

func (b *Bus) readLoop(msgCh <-chan *redis.Message) {
	for msg := range msgCh {
		var evt event.Event
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
			if b.m != nil {
				b.m.CacheErrors.WithLabelValues("event_bus", "decode").Inc()
			}
			continue
		}
		b.mu.Lock()
		handlers := make([]event.Handler, 0, len(b.handlers))
		for _, h := range b.handlers {
			handlers = append(handlers, h)
		}
		b.mu.Unlock()
		for _, h := range handlers {
			h(evt)
		}
	}
}

// Close tears down the shared subscription.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub == nil {
		return nil
	}
	err := b.pubsub.Close()
	b.pubsub = nil
	b.handlers = make(map[int]event.Handler)
	return err
}
