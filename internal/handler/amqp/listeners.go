package amqp

import (
	"context"
	"encoding/json"

	"github.com/webitel/im-rpc-service/internal/domain/model"
)

// NotifyV1 is the bus command asking this node to push a method call to a
// user's live connections. No reply is expected.
type NotifyV1 struct {
	UserID string          `json:"user_id"`
	Method string          `json:"method"`
	Param  json.RawMessage `json:"param,omitempty"`
}

// OnClientNotifyV1 pushes the command to every local connection of the user.
// Nodes the user is not connected to ack silently; fan-out across nodes comes
// from each node holding its own queue on the exchange.
func (h *NotifyHandler) OnClientNotifyV1(ctx context.Context, cmd *NotifyV1) error {
	if cmd.UserID == "" || cmd.Method == "" {
		h.logger.Warn("notify command missing user or method")
		return nil // ack: terminal
	}

	connIDs, err := h.registry.ConnectionsOf(ctx, cmd.UserID)
	if err != nil {
		return err // nack: store hiccup, retry policy applies
	}
	if len(connIDs) == 0 {
		return nil // ack: user not connected here
	}

	call := model.Call{Method: cmd.Method, Param: cmd.Param}
	sent := 0
	for _, connID := range connIDs {
		if h.hub.SendCall(connID, call) {
			sent++
		}
	}
	h.logger.Debug("notify pushed", "user_id", cmd.UserID, "method", cmd.Method, "sent", sent)
	return nil
}
