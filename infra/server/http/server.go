// Package httpserver assembles the chi router and owns the listener
// lifecycle.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/webitel/im-rpc-service/config"
	"github.com/webitel/im-rpc-service/internal/adapter/blob"
	"github.com/webitel/im-rpc-service/internal/handler/api"
	"github.com/webitel/im-rpc-service/internal/handler/ws"
	"go.uber.org/fx"
)

func NewRouter(
	wsHandler *ws.Handler,
	apiHandler *api.Handler,
	blobHandler *blob.Handler,
	promReg *prometheus.Registry,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/ws", wsHandler.ServeHTTP)
	r.Route("/api", apiHandler.Routes)
	// Blob endpoints sit at the root so peer-produced paths match the
	// reference contract.
	r.Group(blobHandler.Routes)
	r.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	return r
}

var Module = fx.Module("http-server",
	fx.Provide(NewRouter),
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, router *chi.Mux, logger *slog.Logger) {
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		lc.Append(fx.Hook{
			OnStart: func(_ context.Context) error {
				go func() {
					logger.Info("http server listening", "addr", cfg.HTTP.Addr)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("http server failed", "err", err)
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
		})
	}),
)
