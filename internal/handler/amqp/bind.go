package amqp

import (
	"context"
	"encoding/json"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
)

// DomainHandler is the functional signature of one bus listener.
type DomainHandler[T any] func(ctx context.Context, payload *T) error

// Bind connects watermill to domain logic: panic recovery, poison-pill
// protection on decode, ack/nack discipline. Undeliverable commands are
// acked; only genuine handler failures trigger the retry policy.
func Bind[T any](h *NotifyHandler, fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("bus handler panic recovered",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
			}
		}()

		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			h.logger.Error("bus command decode failed", "err", err, "msg_id", msg.UUID)
			return nil // ack: a malformed command never gets better on retry
		}

		return fn(msg.Context(), payload)
	}
}
