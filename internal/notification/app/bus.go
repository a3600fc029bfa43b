package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/labhub-io/labhub/internal/platform/messagebroker"
)

// FanoutSubject is the single logical channel every instance publishes
// outbound envelopes on and subscribes to at startup.
const FanoutSubject = "notify.fanout"

// Bus is the cluster-wide publish/subscribe channel used to fan envelopes
// out to whichever instance holds the target connection. Delivery is
// fire-and-forget: no acknowledgment flows back to the publisher.
type Bus interface {
	Publish(ctx context.Context, data []byte) error
	Subscribe(ctx context.Context, handler func(data []byte)) error
	Close() error
}

// MemoryBus is the in-process Bus for single-instance deployments and
// tests. Handlers run asynchronously, like a real broker's would.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers []func(data []byte)
	wg       sync.WaitGroup
}

// NewMemoryBus creates an in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// Publish hands the payload to every subscriber.
func (b *MemoryBus) Publish(_ context.Context, data []byte) error {
	b.mu.RLock()
	handlers := make([]func([]byte), len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h := h
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			h(data)
		}()
	}
	return nil
}

// Subscribe registers a handler for all future publishes.
func (b *MemoryBus) Subscribe(_ context.Context, handler func(data []byte)) error {
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
	return nil
}

// Close waits for in-flight handler invocations to finish.
func (b *MemoryBus) Close() error {
	b.wg.Wait()
	return nil
}

// NATSBus is the networked Bus for clustered deployments, one plain NATS
// subscription per instance (no queue group — every instance must see every
// envelope to check its local registry).
type NATSBus struct {
	client *messagebroker.NATSClient
	logger *slog.Logger
}

// NewNATSBus wraps an established NATS connection as a fan-out bus.
func NewNATSBus(client *messagebroker.NATSClient, logger *slog.Logger) *NATSBus {
	return &NATSBus{client: client, logger: logger.With("component", "nats_bus")}
}

// Publish publishes the envelope on the fan-out subject.
func (b *NATSBus) Publish(ctx context.Context, data []byte) error {
	return b.client.Publish(ctx, FanoutSubject, data)
}

// Subscribe subscribes to the fan-out subject until ctx is cancelled.
func (b *NATSBus) Subscribe(ctx context.Context, handler func(data []byte)) error {
	return b.client.Subscribe(ctx, FanoutSubject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// Close drains the underlying NATS connection.
func (b *NATSBus) Close() error {
	b.client.Close()
	return nil
}
