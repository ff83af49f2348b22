package registry

import (
	"log/slog"

	"github.com/webitel/im-rpc-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("registry",
	fx.Provide(
		func(store ConnectionStore, logger *slog.Logger, cfg *config.Config) *Registry {
			return New(store, logger,
				WithStaleAge(cfg.Hub.StaleAge),
				WithAutoPurgeOffline(cfg.Hub.AutoPurgeOffline),
				WithBroadcastEvents(cfg.Hub.BroadcastConnectionEvents),
				WithTrackUserAgent(cfg.Hub.TrackUserAgent),
			)
		},
		fx.Annotate(
			func(r *Registry) UserLookup { return r },
			fx.As(new(UserLookup)),
		),
	),
)
