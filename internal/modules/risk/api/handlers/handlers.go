// Package handlers provides HTTP handlers for the kill switch.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/alphascan/internal/modules/risk"
	"github.com/aristath/alphascan/internal/panel"
)

// Handlers serves kill switch evaluations.
type Handlers struct {
	cfg risk.KillSwitchConfig
	log zerolog.Logger
}

// NewHandlers creates risk handlers using cfg as the default multipliers.
func NewHandlers(cfg risk.KillSwitchConfig, log zerolog.Logger) *Handlers {
	return &Handlers{
		cfg: cfg,
		log: log.With().Str("module", "risk_handlers").Logger(),
	}
}

// KillSwitchRequest carries the regime inputs. Multipliers are optional and
// fall back to the server defaults.
type KillSwitchRequest struct {
	SectorDrop1W      float64  `json:"sector_drop_1w"`
	ATR               float64  `json:"atr"`
	HistVolStd        float64  `json:"hist_vol_std"`
	ATRMultiplier     *float64 `json:"atr_multiplier,omitempty"`
	HistVolMultiplier *float64 `json:"hist_vol_multiplier,omitempty"`
}

// KillSwitchResponse reports the decision and the threshold compared against.
type KillSwitchResponse struct {
	Active    bool    `json:"active"`
	Threshold float64 `json:"threshold"`
}

// HandleKillSwitch handles POST /api/risk/kill-switch
func (h *Handlers) HandleKillSwitch(w http.ResponseWriter, r *http.Request) {
	var req KillSwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug().Err(err).Msg("Failed to decode kill switch request")
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cfg := h.cfg
	if req.ATRMultiplier != nil {
		cfg.ATRMultiplier = *req.ATRMultiplier
	}
	if req.HistVolMultiplier != nil {
		cfg.HistVolMultiplier = *req.HistVolMultiplier
	}
	if err := cfg.Validate(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, panel.ErrValidation) {
			status = http.StatusBadRequest
		}
		h.writeError(w, err.Error(), status)
		return
	}

	resp := KillSwitchResponse{
		Active:    risk.ShouldActivateKillSwitch(req.SectorDrop1W, req.ATR, req.HistVolStd, cfg),
		Threshold: risk.Threshold(req.ATR, req.HistVolStd, cfg),
	}
	if resp.Active {
		h.log.Info().
			Float64("drop_1w", req.SectorDrop1W).
			Float64("threshold", resp.Threshold).
			Msg("Kill switch active")
	}
	h.writeJSON(w, http.StatusOK, resp)
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
