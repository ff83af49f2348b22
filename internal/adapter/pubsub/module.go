package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/webitel/im-rpc-service/config"
	"github.com/webitel/im-rpc-service/internal/domain/registry"
	"go.uber.org/fx"
)

var Module = fx.Module("pubsub",
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, reg *registry.Registry, wmLogger watermill.LoggerAdapter, logger *slog.Logger) error {
		if cfg.AMQP.URL == "" {
			logger.Info("amqp disabled, connection events stay local")
			return nil
		}

		pub, err := NewPublisherProvider(cfg.AMQP.URL, wmLogger).Build()
		if err != nil {
			return err
		}
		reg.AddBroadcaster(NewBusBroadcaster(NewEventDispatcher(pub, cfg.AMQP.Exchange), logger))

		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return pub.Close()
			},
		})
		return nil
	}),
)
