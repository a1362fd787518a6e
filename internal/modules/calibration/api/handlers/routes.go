package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all calibration routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Post("/calibrate", h.HandleCalibrate) // Pick the best of a candidate set
	r.Post("/backtest", h.HandleBacktest)   // Backtest one weight vector
}
