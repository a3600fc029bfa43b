package app

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/labhub-io/labhub/internal/notification/domain"
)

// FanoutReceiver consumes envelopes from the bus and delivers the ones
// matching locally-held connections. Envelopes this instance published are
// skipped (the dispatcher already delivered them directly); a target user
// with no local connection is silently ignored — they are simply connected
// elsewhere, or offline.
type FanoutReceiver struct {
	bus      Bus
	registry *Registry
	logger   *slog.Logger
	origin   string
}

// NewFanoutReceiver wires the bus subscription side of delivery.
func NewFanoutReceiver(bus Bus, registry *Registry, logger *slog.Logger, origin string) *FanoutReceiver {
	return &FanoutReceiver{
		bus:      bus,
		registry: registry,
		logger:   logger.With("component", "fanout_receiver"),
		origin:   origin,
	}
}

// Start subscribes to the fan-out channel. The subscription lives until ctx
// is cancelled.
func (f *FanoutReceiver) Start(ctx context.Context) error {
	return f.bus.Subscribe(ctx, f.handle)
}

func (f *FanoutReceiver) handle(data []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		f.logger.Error("Discarding undecodable fan-out envelope", "error", err, "data_len", len(data))
		return
	}

	if env.Origin == f.origin {
		return
	}

	payload, err := json.Marshal(env.Notification)
	if err != nil {
		f.logger.Error("Failed to serialize fan-out notification, dropping",
			"message_id", env.Notification.MessageID, "error", err)
		return
	}

	var delivered int
	if env.Broadcast {
		delivered = f.registry.Broadcast(payload)
	} else {
		delivered = f.registry.SendToUser(env.ReceiverID, payload)
	}
	if delivered > 0 {
		pushesDeliveredCounter.WithLabelValues("fanout").Add(float64(delivered))
		f.logger.Debug("Delivered fan-out notification",
			"message_id", env.Notification.MessageID,
			"receiver_id", env.ReceiverID,
			"broadcast", env.Broadcast,
			"connections", delivered)
	}
}
