package sqlite

import (
	"context"

	"github.com/webitel/im-rpc-service/config"
	"github.com/webitel/im-rpc-service/internal/domain/registry"
	"go.uber.org/fx"
)

var Module = fx.Module("sqlite",
	fx.Provide(
		func(cfg *config.Config) (*Store, error) {
			return New(cfg.DB.Path)
		},
		fx.Annotate(
			func(s *Store) registry.ConnectionStore { return s },
			fx.As(new(registry.ConnectionStore)),
		),
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Store) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return s.Close()
			},
		})
	}),
)
