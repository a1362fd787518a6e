package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all universe routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/universe", func(r chi.Router) {
		r.Get("/tickers", h.HandleGetTickers)   // Tickers with stored history
		r.Post("/prices", h.HandleIngestPrices) // Ingest CSV or JSON bars
	})
}
