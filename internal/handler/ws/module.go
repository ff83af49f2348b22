package ws

import (
	"log/slog"

	"github.com/webitel/im-rpc-service/config"
	"github.com/webitel/im-rpc-service/internal/domain/correlator"
	"github.com/webitel/im-rpc-service/internal/domain/registry"
	"github.com/webitel/im-rpc-service/internal/metrics"
	"github.com/webitel/im-rpc-service/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ws-handler",
	fx.Provide(
		func(logger *slog.Logger, pending *correlator.Table, m *metrics.Set, cfg *config.Config) *Hub {
			return NewHub(logger, pending, m, cfg.Hub.ConnectionEventMethod)
		},
		func(h *Hub) service.Sender { return h },
		NewHandler,
	),
	// Lifecycle events reach peers through the same hub the correlator
	// sends through: there is only one connection space.
	fx.Invoke(func(reg *registry.Registry, hub *Hub) {
		reg.AddBroadcaster(hub)
	}),
)
