package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/webitel/im-rpc-service/internal/domain/registry"
)

// Handler upgrades HTTP requests to the duplex frame channel and drives the
// connection lifecycle against the registry.
type Handler struct {
	logger   *slog.Logger
	hub      *Hub
	registry *registry.Registry
	upgrader websocket.Upgrader
}

func NewHandler(logger *slog.Logger, hub *Hub, reg *registry.Registry) *Handler {
	return &Handler{
		logger:   logger,
		hub:      hub,
		registry: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true }, // Security: adjust for production
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Identity comes from the authentication handshake in front of this
	// handler. An empty user id keeps the socket but the registry never
	// sees it: such connections are invisible to per-user targeting.
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
	}
	userAgent := r.UserAgent()
	connID := uuid.NewString()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "err", err)
		return
	}

	// Lifecycle writes run on a background context: the request context dies
	// with the handshake request on some servers, and close must still commit.
	ctx := context.WithoutCancel(r.Context())

	if err := h.registry.OnOpen(ctx, userID, connID, userAgent); err != nil {
		// A store failure is fatal to this open; the registry itself stays
		// consistent and the peer may redial.
		h.logger.Error("connection open rejected", "user_id", userID, "conn_id", connID, "err", err)
		conn.Close()
		return
	}

	peer := newPeer(conn, connID, userID, userAgent, h.logger)
	h.hub.Attach(peer)
	h.logger.Info("ws opened", "user_id", userID, "conn_id", connID)

	defer func() {
		h.hub.Detach(connID)
		if err := h.registry.OnClose(ctx, userID, connID); err != nil {
			h.logger.Error("connection close failed", "conn_id", connID, "err", err)
		}
		h.logger.Info("ws closed", "user_id", userID, "conn_id", connID)
	}()

	go peer.writePump()
	peer.readPump(h.hub.dispatch)
}
