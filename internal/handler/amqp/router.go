// Package amqp consumes push commands from the message bus and fans them out
// to locally connected clients as fire-and-forget calls. It lets sibling
// services reach a user's live connections without speaking the websocket
// protocol themselves.
package amqp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
	"github.com/webitel/im-rpc-service/internal/adapter/pubsub"
	"github.com/webitel/im-rpc-service/internal/domain/registry"
	"github.com/webitel/im-rpc-service/internal/handler/ws"
)

const (
	// Exchange sibling services publish push commands to.
	NotifyExchange = "im_rpc.notify"

	// Queue prefix for this service's consumers.
	NotifyQueue = "im-rpc.notify-processor.v1"

	// Dead-letter topic for commands that exhaust their retries.
	NotifyPoisonTopic = "im-rpc.notify-processor.v1.poison"
)

func NewWatermillRouter(wmLogger watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{}, wmLogger)
}

// NotifyHandler routes bus commands to the websocket hub.
type NotifyHandler struct {
	hub        *ws.Hub
	registry   *registry.Registry
	logger     *slog.Logger
	dispatcher pubsub.EventDispatcher
}

func NewNotifyHandler(hub *ws.Hub, reg *registry.Registry, logger *slog.Logger, dispatcher pubsub.EventDispatcher) *NotifyHandler {
	return &NotifyHandler{hub: hub, registry: reg, logger: logger, dispatcher: dispatcher}
}

// RegisterHandlers binds every bus listener onto the router with the shared
// middleware chain.
func (h *NotifyHandler) RegisterHandlers(router *message.Router, subProvider *pubsub.SubscriberProvider) error {
	poison, err := middleware.PoisonQueue(h.dispatcher.Publisher(), NotifyPoisonTopic)
	if err != nil {
		return fmt.Errorf("poison queue setup: %w", err)
	}

	configs := []struct {
		name     string
		exchange string
		handler  message.NoPublishHandlerFunc
	}{
		{"on_client_notify", NotifyExchange, Bind(h, h.OnClientNotifyV1)},
	}

	for _, c := range configs {
		// One queue per handler per node keeps fan-out copies independent.
		instanceID := uuid.NewString()[:8]
		handlerQueue := fmt.Sprintf("%s.%s.%s", NotifyQueue, instanceID, c.name)

		sub, err := subProvider.Build(handlerQueue)
		if err != nil {
			return err
		}

		router.AddConsumerHandler(c.name, c.exchange, sub, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			NewRetryMiddleware().Middleware,
			poison,
			middleware.Timeout(time.Second*30),
		)
	}

	h.logger.Info("amqp pipeline ready", "queue", NotifyQueue)
	return nil
}
