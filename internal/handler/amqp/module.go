package amqp

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/webitel/im-rpc-service/config"
	"github.com/webitel/im-rpc-service/internal/adapter/pubsub"
	"github.com/webitel/im-rpc-service/internal/domain/registry"
	"github.com/webitel/im-rpc-service/internal/handler/ws"
	"go.uber.org/fx"
)

var Module = fx.Module("amqp-handler",
	fx.Invoke(func(
		lc fx.Lifecycle,
		cfg *config.Config,
		hub *ws.Hub,
		reg *registry.Registry,
		wmLogger watermill.LoggerAdapter,
		logger *slog.Logger,
	) error {
		if cfg.AMQP.URL == "" {
			return nil
		}

		router, err := NewWatermillRouter(wmLogger)
		if err != nil {
			return err
		}

		pub, err := pubsub.NewPublisherProvider(cfg.AMQP.URL, wmLogger).Build()
		if err != nil {
			return err
		}
		dispatcher := pubsub.NewEventDispatcher(pub, cfg.AMQP.Exchange)

		handler := NewNotifyHandler(hub, reg, logger, dispatcher)
		subProvider := pubsub.NewSubscriberProvider(cfg.AMQP.URL, wmLogger)
		if err := handler.RegisterHandlers(router, subProvider); err != nil {
			return err
		}

		lc.Append(fx.Hook{
			OnStart: func(_ context.Context) error {
				go func() {
					if err := router.Run(context.Background()); err != nil {
						logger.Error("amqp router stopped", "err", err)
					}
				}()
				return nil
			},
			OnStop: func(_ context.Context) error {
				return router.Close()
			},
		})
		return nil
	}),
)
