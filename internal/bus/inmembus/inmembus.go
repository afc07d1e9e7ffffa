// Package inmembus is an in-process implementation of internal/bus's
// Producer and Consumer ports, built on buffered Go channels. It is the
// only concrete bus binding this module ships — Kafka/Solace vendor
// bindings are out of scope — and is what the composition
// root and test suites wire up by default.
package inmembus

import (
	"context"
	"sync"

	"github.com/srviswan/positionengine/internal/bus"
)

type message struct {
	key   string
	value []byte
}

// Bus implements both bus.Producer and bus.Consumer in-process. It is
// safe for concurrent use.
type Bus struct {
	mu       sync.Mutex
	queues   map[string]chan message
	handlers map[string]bus.HandlerFunc
	depth    int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Bus whose per-topic queues have the given buffer depth.
func New(depth int) *Bus {
	if depth <= 0 {
		depth = 64
	}
	return &Bus{
		queues:   make(map[string]chan message),
		handlers: make(map[string]bus.HandlerFunc),
		depth:    depth,
	}
}

func (b *Bus) queueFor(topic string) chan message {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[topic]
	if !ok {
		q = make(chan message, b.depth)
		b.queues[topic] = q
	}
	return q
}

// Send implements bus.Producer.
func (b *Bus) Send(ctx context.Context, topic, key string, payload []byte) error {
	select {
	case b.queueFor(topic) <- message{key: key, value: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe implements bus.Consumer. Only one handler per topic is
// supported.
func (b *Bus) Subscribe(topic string, handler bus.HandlerFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

// Start launches one goroutine per subscribed topic, each draining its
// queue and invoking the registered handler. Start returns immediately;
// call Stop to shut the pump goroutines down.
func (b *Bus) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancel = cancel
	for topic, handler := range b.handlers {
		// b.mu is already held, so look the queue up directly rather
		// than through queueFor, which locks b.mu itself.
		q, ok := b.queues[topic]
		if !ok {
			q = make(chan message, b.depth)
			b.queues[topic] = q
		}
		h := handler
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for {
				select {
				case <-runCtx.Done():
					return
				case m := <-q:
					ack := func() error { return nil }
					_ = h(runCtx, m.key, m.value, ack)
				}
			}
		}()
	}
	b.mu.Unlock()
	return nil
}

// Stop cancels all pump goroutines and waits for them to exit.
func (b *Bus) Stop(ctx context.Context) error {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
