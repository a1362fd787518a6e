// Package handlers provides HTTP handlers for scoring API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alphascan/internal/modules/factors"
	"github.com/aristath/alphascan/internal/modules/scoring"
	"github.com/aristath/alphascan/internal/modules/universe"
	"github.com/aristath/alphascan/internal/panel"
)

// Handlers provides HTTP handlers for scoring module
type Handlers struct {
	cfg scoring.Config
	log zerolog.Logger
}

// NewHandlers creates a new scoring handlers instance. cfg is the engine
// configuration requests start from.
func NewHandlers(cfg scoring.Config, log zerolog.Logger) *Handlers {
	return &Handlers{
		cfg: cfg,
		log: log.With().Str("module", "scoring_handlers").Logger(),
	}
}

// FactorsRequest carries the price rows to score. Factors optionally
// restricts the enabled modules by name ("RS", "Trend", ...). When
// BenchmarkTicker is set its closes, taken from Rows, drive excess returns.
type FactorsRequest struct {
	Rows            []universe.PriceRow `json:"rows"`
	Factors         []string            `json:"factors,omitempty"`
	BenchmarkTicker string              `json:"benchmark_ticker,omitempty"`
	Raw             bool                `json:"raw,omitempty"`
}

// FactorsResponse is the flattened factor matrix.
type FactorsResponse struct {
	Columns []string      `json:"columns"`
	Rows    []scoring.Row `json:"rows"`
}

// HandleComputeFactors handles POST /api/factors
func (h *Handlers) HandleComputeFactors(w http.ResponseWriter, r *http.Request) {
	var req FactorsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug().Err(err).Msg("Failed to decode factors request")
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	p, err := universe.PanelFromRows(req.Rows)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	cfg, err := h.selectFactors(req.Factors)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	var benchmark *factors.Benchmark
	if req.BenchmarkTicker != "" {
		benchmark, err = benchmarkFromPanel(p, req.BenchmarkTicker)
		if err != nil {
			h.writeFailure(w, err)
			return
		}
	}

	engine, err := scoring.NewEngine(cfg, benchmark, h.log)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	var m *scoring.Matrix
	if req.Raw {
		m, err = engine.ComputeRaw(p)
	} else {
		m, err = engine.ComputeMatrix(p)
	}
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, FactorsResponse{Columns: m.Columns(), Rows: m.Rows()})
}

// selectFactors returns the base config with only the named factors enabled.
// An empty list keeps the base selection.
func (h *Handlers) selectFactors(names []string) (scoring.Config, error) {
	cfg := h.cfg
	if len(names) == 0 {
		return cfg, nil
	}
	cfg.UseRS, cfg.UseTrend, cfg.UseSqueeze, cfg.UseMomentum, cfg.UseVolume = false, false, false, false, false
	for _, name := range names {
		switch name {
		case factors.NameRS:
			cfg.UseRS = true
		case factors.NameTrend:
			cfg.UseTrend = true
		case factors.NameSqueeze:
			cfg.UseSqueeze = true
		case factors.NameMomentum:
			cfg.UseMomentum = true
		case factors.NameVolume:
			cfg.UseVolume = true
		default:
			return cfg, &panel.ValidationError{Reason: "unknown factor " + name}
		}
	}
	return cfg, nil
}

func benchmarkFromPanel(p *panel.Panel, ticker string) (*factors.Benchmark, error) {
	closes, err := p.Column(panel.ColClose)
	if err != nil {
		return nil, err
	}
	idx := p.Index()
	rows := idx.Rows(ticker)
	if len(rows) == 0 {
		return nil, &panel.ValidationError{Reason: "benchmark ticker " + ticker + " has no rows"}
	}
	dates := make([]time.Time, len(rows))
	values := make([]float64, len(rows))
	for i, r := range rows {
		dates[i] = idx.Key(r).Date
		values[i] = closes.Values[r]
	}
	return factors.NewBenchmark(dates, values)
}

// writeFailure maps validation errors to 400 and anything else to 500.
func (h *Handlers) writeFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, panel.ErrValidation) {
		status = http.StatusBadRequest
	} else {
		h.log.Error().Err(err).Msg("Factor computation failed")
	}
	h.writeError(w, err.Error(), status)
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
