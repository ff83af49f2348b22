package cmd

import (
	"github.com/webitel/im-rpc-service/config"
	httpserver "github.com/webitel/im-rpc-service/infra/server/http"
	"github.com/webitel/im-rpc-service/infra/storage/sqlite"
	"github.com/webitel/im-rpc-service/internal/adapter/blob"
	"github.com/webitel/im-rpc-service/internal/adapter/pubsub"
	"github.com/webitel/im-rpc-service/internal/domain/registry"
	amqphandler "github.com/webitel/im-rpc-service/internal/handler/amqp"
	"github.com/webitel/im-rpc-service/internal/handler/api"
	"github.com/webitel/im-rpc-service/internal/handler/ws"
	"github.com/webitel/im-rpc-service/internal/metrics"
	"github.com/webitel/im-rpc-service/internal/service"
	"go.uber.org/fx"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			api.NewHandler,
		),
		// Cross-cutting concerns wrap the correlator without touching it.
		fx.Decorate(service.NewInstrumentedInvoker),
		metrics.Module,
		sqlite.Module,
		registry.Module,
		service.Module,
		blob.Module,
		ws.Module,
		httpserver.Module,
		pubsub.Module,
		amqphandler.Module,
	)
}
