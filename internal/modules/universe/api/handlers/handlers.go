// Package handlers provides HTTP handlers for price history ingestion.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/alphascan/internal/modules/universe"
	"github.com/aristath/alphascan/internal/panel"
)

// maxUploadBytes bounds a single ingestion request.
const maxUploadBytes = 64 << 20

// PriceStore is the history database as seen by the API.
type PriceStore interface {
	UpsertPrices(ctx context.Context, prices []universe.DailyPrice) error
	Tickers(ctx context.Context) ([]string, error)
}

// Handlers serves the price universe.
type Handlers struct {
	store     PriceStore
	validator *universe.PriceValidator
	log       zerolog.Logger
}

// NewHandlers creates universe handlers.
func NewHandlers(store PriceStore, validator *universe.PriceValidator, log zerolog.Logger) *Handlers {
	return &Handlers{
		store:     store,
		validator: validator,
		log:       log.With().Str("module", "universe_handlers").Logger(),
	}
}

// IngestRequest is the JSON form of an upload.
type IngestRequest struct {
	Rows []universe.PriceRow `json:"rows"`
}

// IngestResponse reports what was stored.
type IngestResponse struct {
	Ingested     int                         `json:"ingested"`
	Tickers      int                         `json:"tickers"`
	Interpolated []universe.InterpolationLog `json:"interpolated"`
}

// HandleGetTickers handles GET /api/universe/tickers
func (h *Handlers) HandleGetTickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := h.store.Tickers(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list tickers")
		h.writeError(w, "Failed to list tickers", http.StatusInternalServerError)
		return
	}
	if tickers == nil {
		tickers = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  tickers,
		"count": len(tickers),
	})
}

// HandleIngestPrices handles POST /api/universe/prices
// A text/csv body is read as a history file, anything else as an
// IngestRequest. Bars are cleaned unless ?clean=false.
func (h *Handlers) HandleIngestPrices(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var (
		prices []universe.DailyPrice
		err    error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/csv" {
		prices, err = universe.ReadPrices(r.Body)
	} else {
		var req IngestRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			h.log.Debug().Err(decodeErr).Msg("Failed to decode ingest request")
			h.writeError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		prices, err = universe.PricesFromRows(req.Rows)
	}
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if len(prices) == 0 {
		h.writeError(w, "No price rows", http.StatusBadRequest)
		return
	}

	resp := IngestResponse{Interpolated: []universe.InterpolationLog{}}
	if r.URL.Query().Get("clean") != "false" {
		var logs []universe.InterpolationLog
		prices, logs = h.validator.Clean(prices)
		if logs != nil {
			resp.Interpolated = logs
		}
	}

	if err := h.store.UpsertPrices(r.Context(), prices); err != nil {
		h.writeFailure(w, err)
		return
	}

	seen := make(map[string]struct{})
	for _, p := range prices {
		seen[p.Ticker] = struct{}{}
	}
	resp.Ingested = len(prices)
	resp.Tickers = len(seen)

	h.log.Info().
		Int("bars", resp.Ingested).
		Int("tickers", resp.Tickers).
		Int("interpolated", len(resp.Interpolated)).
		Msg("Ingested price history")
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) writeFailure(w http.ResponseWriter, err error) {
	if errors.Is(err, panel.ErrValidation) {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.log.Error().Err(err).Msg("Price ingestion failed")
	h.writeError(w, "Price ingestion failed", http.StatusInternalServerError)
}

// writeJSON writes a JSON response with status code
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handlers) writeError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
