package blob

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes a Store over the reference HTTP contract so that peers can
// upload spillover payloads the hub will later read under the same paths.
type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/upload/{folder}", h.upload)
	r.Delete("/upload", h.delete)
	r.Get("/download", h.download)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	folder := chi.URLParam(r, "folder")
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	path, err := h.store.Upload(r.Context(), data, name, folder)
	if err != nil {
		h.logger.Error("blob upload failed", "name", name, "folder", folder, "err", err)
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(path))
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	data, err := h.store.Read(r.Context(), path)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("blob read failed", "path", path, "err", err)
		http.Error(w, "read failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	ok, err := h.store.Delete(r.Context(), path)
	if err != nil {
		h.logger.Error("blob delete failed", "path", path, "err", err)
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
}
