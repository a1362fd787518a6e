// Package handlers provides HTTP handlers for the snapshot catalogue.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/alphascan/internal/modules/snapshots"
)

// Catalogue is the read side of snapshots.Store.
type Catalogue interface {
	List(ctx context.Context, limit int) ([]snapshots.Snapshot, error)
	Get(ctx context.Context, id string) (*snapshots.Snapshot, error)
	Verify(ctx context.Context, id string) error
}

// Handler handles snapshot HTTP requests
type Handler struct {
	catalogue Catalogue
	log       zerolog.Logger
}

// NewHandler creates a new snapshot handler
func NewHandler(catalogue Catalogue, log zerolog.Logger) *Handler {
	return &Handler{
		catalogue: catalogue,
		log:       log.With().Str("handler", "snapshots").Logger(),
	}
}

// HandleList handles GET /api/snapshots
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	list, err := h.catalogue.List(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list snapshots")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list snapshots"})
		return
	}
	if list == nil {
		list = []snapshots.Snapshot{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     list,
		"metadata": map[string]interface{}{"count": len(list)},
	})
}

// HandleGet handles GET /api/snapshots/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := h.catalogue.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, snapshots.ErrNotFound) {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Snapshot not found"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get snapshot")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to get snapshot"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": snap})
}

// HandleVerify handles POST /api/snapshots/{id}/verify
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.catalogue.Verify(r.Context(), id)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "valid": true})
	case errors.Is(err, snapshots.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Snapshot not found"})
	case errors.Is(err, snapshots.ErrChecksumMismatch):
		h.log.Warn().Str("id", id).Msg("Snapshot failed checksum verification")
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "valid": false})
	default:
		h.log.Error().Err(err).Str("id", id).Msg("Failed to verify snapshot")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to verify snapshot"})
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
