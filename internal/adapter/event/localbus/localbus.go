// Package localbus is the in-process EventAdapter backend for the lite
// profile: each subscriber gets a bounded buffered channel and its own
// fan-out goroutine; a publisher never blocks on a slow subscriber.
// Grounded on the teacher's internal/realtime bus (subscriber registry
// behind a mutex, drop-and-count on a full channel).
package localbus

import (
	"context"
	"sync"

	"github.com/agent-memory/agent-memory/internal/adapter/event"
	"github.com/agent-memory/agent-memory/internal/metrics"
)

const defaultBufferSize = 64

type subscriber struct {
	id int
	ch chan event.Event
}

// Bus is an in-process, buffered-channel fan-out event bus.
type Bus struct {
	mu          sync.Mutex
	subscribers map[int]*subscriber
	nextID      int
	bufferSize  int
	closed      bool
	m           *metrics.Registry
}

// New constructs a Bus. bufferSize <= 0 uses defaultBufferSize.
func New(bufferSize int, m *metrics.Registry) *Bus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Bus{
		subscribers: make(map[int]*subscriber),
		bufferSize:  bufferSize,
		m:           m,
	}
}

// Publish fans evt out to every subscriber's channel, dropping (and
// counting) on any subscriber whose channel is currently full.
func (b *Bus) Publish(ctx context.Context, evt event.Event) error {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- evt:
		default:
			if b.m != nil {
				b.m.EventBusDropped.Inc()
			}
		}
	}
	return nil
}

// Subscribe registers h, running it in its own goroutine over a bounded
// channel fed by Publish.
func (b *Bus) Subscribe(ctx context.Context, h event.Handler) (event.Unsubscribe, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errClosed
	}
	id := b.nextID
	b.nextID++
	s := &subscriber{id: id, ch: make(chan event.Event, b.bufferSize)}
	b.subscribers[id] = s
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case evt, ok := <-s.ch:
				if !ok {
					return
				}
				h(evt)
			case <-ctx.Done():
				return
			}
		}
	}()

	unsub := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(s.ch)
		}
		b.mu.Unlock()
	}
	return unsub, nil
}

// Close tears down every subscriber channel.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, s := range b.subscribers {
		close(s.ch)
		delete(b.subscribers, id)
	}
	return nil
}

var errClosed = errClosedError{}

type errClosedError struct{}

func (errClosedError) Error() string { return "localbus: closed" }
