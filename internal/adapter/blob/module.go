package blob

import (
	"log/slog"

	"github.com/webitel/im-rpc-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("blob",
	fx.Provide(
		// The hub reads spillover payloads through this store. A configured
		// base URL selects the remote service; otherwise blobs live in a
		// local folder served by the Handler below.
		func(cfg *config.Config) Store {
			if cfg.Blob.BaseURL != "" {
				return NewHTTP(cfg.Blob.BaseURL)
			}
			return NewLocal(cfg.Blob.Root)
		},
		func(cfg *config.Config, logger *slog.Logger) *Handler {
			return NewHandler(NewLocal(cfg.Blob.Root), logger)
		},
	),
)
