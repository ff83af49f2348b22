package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-rpc-service/internal/domain/model"
)

// EventDispatcher is the high-level contract for exporting connection events
// to the message bus, keeping callers agnostic of the transport.
type EventDispatcher interface {
	Publish(ctx context.Context, ev model.ConnectionEvent) error
	Publisher() message.Publisher
}

// Interface guard
var _ EventDispatcher = (*eventDispatcher)(nil)

type eventDispatcher struct {
	publisher message.Publisher
	exchange  string
}

func NewEventDispatcher(pub message.Publisher, exchange string) EventDispatcher {
	return &eventDispatcher{publisher: pub, exchange: exchange}
}

func (d *eventDispatcher) Publish(ctx context.Context, ev model.ConnectionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("kind", string(ev.Kind))
	msg.Metadata.Set("user_id", ev.UserID)
	msg.SetContext(ctx)

	if err := d.publisher.Publish(d.exchange, msg); err != nil {
		return fmt.Errorf("event dispatcher: publish to %s: %w", d.exchange, err)
	}
	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}

// BusBroadcaster adapts the dispatcher to the registry's broadcast seam.
// Export failures are logged and swallowed: the bus observes the lifecycle,
// it never participates in it.
type BusBroadcaster struct {
	dispatcher EventDispatcher
	logger     *slog.Logger
}

func NewBusBroadcaster(d EventDispatcher, logger *slog.Logger) *BusBroadcaster {
	return &BusBroadcaster{dispatcher: d, logger: logger}
}

func (b *BusBroadcaster) BroadcastEvent(ctx context.Context, ev model.ConnectionEvent) {
	if err := b.dispatcher.Publish(ctx, ev); err != nil {
		b.logger.Warn("connection event export failed",
			"kind", ev.Kind, "conn_id", ev.ConnectionID, "err", err)
	}
}
