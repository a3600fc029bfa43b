package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/labhub-io/labhub/internal/notification/domain"
)

const publishTimeout = 5 * time.Second

// DispatcherConfig sizes the delivery worker pool.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
}

// Dispatcher decouples push delivery from the business operation that
// produced the message. Envelopes are drained by a fixed worker pool; each
// worker publishes on the fan-out bus for remote instances and delivers
// directly through the local registry, saving the self-publish round trip.
//
// When the queue is full the submitting goroutine performs the delivery
// itself (caller-runs): backpressure without silent message loss, at the
// cost of slowing the business path under overload.
type Dispatcher struct {
	bus      Bus
	registry *Registry
	logger   *slog.Logger
	origin   string

	queue chan domain.Envelope

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates the dispatcher and starts its workers. origin is
// this instance's identity, stamped on every envelope so the fan-out
// receiver can skip self-originated frames.
func NewDispatcher(bus Bus, registry *Registry, logger *slog.Logger, origin string, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 500
	}

	d := &Dispatcher{
		bus:      bus,
		registry: registry,
		logger:   logger.With("component", "dispatcher"),
		origin:   origin,
		queue:    make(chan domain.Envelope, cfg.QueueSize),
	}

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Origin returns this instance's envelope origin id.
func (d *Dispatcher) Origin() string { return d.origin }

// EnqueueForUser queues a notification addressed to one user.
func (d *Dispatcher) EnqueueForUser(userID int64, n domain.Notification) {
	d.enqueue(domain.Envelope{
		Origin:       d.origin,
		ReceiverID:   userID,
		Notification: n,
	})
}

// EnqueueBroadcast queues a notification addressed to every connected user.
func (d *Dispatcher) EnqueueBroadcast(n domain.Notification) {
	d.enqueue(domain.Envelope{
		Origin:       d.origin,
		Broadcast:    true,
		Notification: n,
	})
}

func (d *Dispatcher) enqueue(env domain.Envelope) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("Dispatcher closed, delivering on caller",
			"message_id", env.Notification.MessageID)
		d.deliver(env)
		return
	}

	select {
	case d.queue <- env:
		d.mu.Unlock()
		dispatchQueueDepthGauge.Inc()
	default:
		d.mu.Unlock()
		// Queue saturated: caller-runs.
		callerRunsCounter.Inc()
		d.deliver(env)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for env := range d.queue {
		dispatchQueueDepthGauge.Dec()
		d.deliver(env)
	}
}

func (d *Dispatcher) deliver(env domain.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		// Fatal to this envelope only; push is best-effort and the
		// recipient row is already persisted for the pull path.
		d.logger.Error("Failed to serialize envelope, dropping",
			"message_id", env.Notification.MessageID, "error", err)
		return
	}

	if d.bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := d.bus.Publish(ctx, data); err != nil {
			busPublishFailuresCounter.Inc()
			d.logger.Error("Fan-out publish failed, delivery degrades to local-only",
				"message_id", env.Notification.MessageID, "error", err)
		}
		cancel()
	}

	// This process may itself hold the target connection.
	d.deliverLocal(env, "local")
}

func (d *Dispatcher) deliverLocal(env domain.Envelope, path string) {
	payload, err := json.Marshal(env.Notification)
	if err != nil {
		d.logger.Error("Failed to serialize notification payload, dropping",
			"message_id", env.Notification.MessageID, "error", err)
		return
	}

	var delivered int
	if env.Broadcast {
		delivered = d.registry.Broadcast(payload)
	} else {
		delivered = d.registry.SendToUser(env.ReceiverID, payload)
	}
	if delivered > 0 {
		pushesDeliveredCounter.WithLabelValues(path).Add(float64(delivered))
		d.logger.Debug("Delivered notification locally",
			"message_id", env.Notification.MessageID,
			"receiver_id", env.ReceiverID,
			"broadcast", env.Broadcast,
			"connections", delivered,
			"path", path)
	}
}

// Close stops accepting queued work and waits for the workers to drain.
// Late enqueues still deliver synchronously on the caller.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}
