// Package api is the HTTP control surface external collaborators use to
// reach the fabric: trigger invocations and inspect the registry.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/webitel/im-rpc-service/internal/domain/model"
	"github.com/webitel/im-rpc-service/internal/domain/registry"
	"github.com/webitel/im-rpc-service/internal/service"
)

type Handler struct {
	logger   *slog.Logger
	invoker  service.Invoker
	registry *registry.Registry
}

func NewHandler(logger *slog.Logger, invoker service.Invoker, reg *registry.Registry) *Handler {
	return &Handler{logger: logger, invoker: invoker, registry: reg}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/invoke", h.invoke)
	r.Get("/users", h.users)
	r.Get("/users/{userID}", h.user)
	r.Get("/stats", h.stats)
}

type invokeRequest struct {
	Target struct {
		Kind string   `json:"kind"` // all | user | users | connection | connections
		IDs  []string `json:"ids,omitempty"`
	} `json:"target"`
	Method string          `json:"method"`
	Param  json.RawMessage `json:"param,omitempty"`
}

func (h *Handler) invoke(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.Method == "" {
		http.Error(w, "missing method", http.StatusBadRequest)
		return
	}
	target, ok := parseTarget(req.Target.Kind, req.Target.IDs)
	if !ok {
		http.Error(w, "invalid target", http.StatusBadRequest)
		return
	}

	var param any
	if len(req.Param) > 0 {
		param = req.Param
	}

	resp, err := h.invoker.Invoke(r.Context(), target, req.Method, param)
	if err != nil {
		status := statusOf(err)
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, resp)
}

func (h *Handler) users(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.registry.SnapshotUsers(r.Context())
	if err != nil {
		h.logger.Error("user snapshot failed", "err", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, snaps)
}

type userDetail struct {
	UserID           string     `json:"user_id"`
	LastConnectAt    *time.Time `json:"last_connect_at,omitempty"`
	LastDisconnectAt *time.Time `json:"last_disconnect_at,omitempty"`
	Connections      []string   `json:"connections"`
}

// user serves one principal's record through the cached identity lookup, plus
// their live connection identifiers.
func (h *Handler) user(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	u, err := h.registry.Lookup(r.Context(), userID)
	if err != nil {
		h.logger.Error("user lookup failed", "user_id", userID, "err", err)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if u == nil {
		http.NotFound(w, r)
		return
	}

	connIDs, err := h.registry.ConnectionsOf(r.Context(), userID)
	if err != nil {
		h.logger.Error("user connections failed", "user_id", userID, "err", err)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if connIDs == nil {
		connIDs = []string{}
	}

	writeJSON(w, userDetail{
		UserID:           u.UserID,
		LastConnectAt:    u.LastConnectAt,
		LastDisconnectAt: u.LastDisconnectAt,
		Connections:      connIDs,
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	users, err := h.registry.CountUsers(r.Context())
	if err != nil {
		http.Error(w, "stats failed", http.StatusInternalServerError)
		return
	}
	conns, err := h.registry.CountConnections(r.Context())
	if err != nil {
		http.Error(w, "stats failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"users":       users,
		"connections": conns,
		"version":     model.ServerVersion,
	})
}

func parseTarget(kind string, ids []string) (model.Target, bool) {
	switch kind {
	case "all":
		return model.ToAll(), true
	case "user":
		if len(ids) != 1 {
			return model.Target{}, false
		}
		return model.ToUser(ids[0]), true
	case "users":
		return model.ToUsers(ids...), true
	case "connection":
		if len(ids) != 1 {
			return model.Target{}, false
		}
		return model.ToConnection(ids[0]), true
	case "connections":
		return model.ToConnections(ids...), true
	default:
		return model.Target{}, false
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrOverloaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrNoTarget), errors.Is(err, model.ErrInactiveConnection):
		return http.StatusNotFound
	case errors.Is(err, model.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
