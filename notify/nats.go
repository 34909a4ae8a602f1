package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// NATSBridge republishes hub events onto NATS so external consumers can
// follow pipeline progress. Publish failures are logged and skipped; the
// pipeline never depends on the bridge.
type NATSBridge struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewNATSBridge creates a bridge over an established connection.
func NewNATSBridge(nc *nats.Conn, logger *slog.Logger) (*NATSBridge, error) {
	if nc == nil {
		return nil, fmt.Errorf("NATS connection required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSBridge{nc: nc, logger: logger}, nil
}

// Run subscribes to the hub and republishes every event as JSON on its
// draft.events.<type> subject until the context is canceled or the hub
// closes.
func (b *NATSBridge) Run(ctx context.Context, hub *Hub) error {
	events, cancel := hub.Subscribe(256)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			b.publish(ev)
		}
	}
}

func (b *NATSBridge) publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("Failed to marshal event", "type", ev.Type, "error", err)
		return
	}
	subject := Subject(ev.Type)
	if err := b.nc.Publish(subject, data); err != nil {
		b.logger.Error("Failed to publish event",
			"subject", subject,
			"type", ev.Type,
			"error", err)
		return
	}
	b.logger.Debug("Published event", "subject", subject, "slug", ev.Slug)
}
