package bus

import (
	"context"
	"errors"
	"sync"

	"main/internal/model/enum"
)

var (
	ErrQueueFull    = errors.New("event queue full")
	ErrQueueClosed  = errors.New("event queue closed")
	ErrInvalidTopic = errors.New("invalid topic")
)

// Event is the unit passed through the in-memory bus.
type Event struct {
	Topic  enum.Topic
	TsNano int64
	Data   any
}

// Bus is a bounded, non-blocking topic bus. Publishing never blocks the
// hot path; all handlers run on the single Run goroutine, so each
// subscriber observes events in publish order (at-least-once,
// in-process). The closed flag and the channel close share mu, so a
// publish in flight can never hit a closing channel.
type Bus struct {
	ch chan Event

	mu       sync.RWMutex
	closed   bool
	handlers map[enum.Topic][]func(Event)
}

// New allocates a bus with the given queue capacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 1
	}
	return &Bus{
		ch:       make(chan Event, capacity),
		handlers: make(map[enum.Topic][]func(Event)),
	}
}

// Subscribe registers a handler for a topic. Subscribing after Run has
// started is allowed; the handler sees only events dispatched after
// registration.
func (b *Bus) Subscribe(topic enum.Topic, handler func(Event)) error {
	if !topic.IsAvailable() {
		return ErrInvalidTopic
	}
	if handler == nil {
		return errors.New("handler is nil")
	}
	b.mu.Lock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	b.mu.Unlock()
	return nil
}

// TryPublish enqueues an event without blocking.
func (b *Bus) TryPublish(e Event) error {
	if !e.Topic.IsAvailable() {
		return ErrInvalidTopic
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrQueueClosed
	}
	select {
	case b.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the bus from accepting new events. It waits for publishes
// already in flight before closing the channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}

// Run dispatches events until the context is done or the bus is closed
// and drained.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-b.ch:
			if !ok {
				return
			}
			b.dispatch(e)
		}
	}
}

func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	handlers := b.handlers[e.Topic]
	b.mu.RUnlock()
	for _, handler := range handlers {
		handler(e)
	}
}
