package service

import (
	"log/slog"

	"github.com/webitel/im-rpc-service/config"
	"github.com/webitel/im-rpc-service/internal/adapter/blob"
	"github.com/webitel/im-rpc-service/internal/domain/correlator"
	"github.com/webitel/im-rpc-service/internal/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("service",
	fx.Provide(
		correlator.NewTable,
		NewResolver,

		fx.Annotate(
			func(logger *slog.Logger, sender Sender, resolver *Resolver, pending *correlator.Table, m *metrics.Set, cfg *config.Config) *InvokeService {
				return NewInvokeService(logger, sender, resolver, pending, m, InvokeConfig{
					MaxConcurrentRequests: cfg.Invoke.MaxConcurrentRequests,
					RequestTimeout:        cfg.Invoke.RequestTimeout,
					SemaphoreTimeout:      cfg.Invoke.SemaphoreTimeout,
				})
			},
			fx.As(new(Invoker)),
		),

		func(blobs blob.Store, logger *slog.Logger, cfg *config.Config) *Decoder {
			return NewDecoder(blobs, logger, cfg.Invoke.TempFolder, cfg.Invoke.AutoDeleteTempFiles)
		},
	),
)
