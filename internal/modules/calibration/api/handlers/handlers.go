// Package handlers provides HTTP handlers for backtests and calibration.
package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/alphascan/internal/modules/calibration"
	"github.com/aristath/alphascan/internal/modules/universe"
	"github.com/aristath/alphascan/internal/panel"
)

// Handlers serves backtest and calibration requests against posted rows.
type Handlers struct {
	backtester *calibration.Backtester
	calibrator *calibration.Calibrator
	log        zerolog.Logger
}

// NewHandlers creates calibration handlers.
func NewHandlers(bt *calibration.Backtester, cal *calibration.Calibrator, log zerolog.Logger) *Handlers {
	return &Handlers{
		backtester: bt,
		calibrator: cal,
		log:        log.With().Str("module", "calibration_handlers").Logger(),
	}
}

// CalibrateRequest carries the history and the weight candidates.
type CalibrateRequest struct {
	Rows       []universe.PriceRow   `json:"rows"`
	Candidates []calibration.Weights `json:"candidates"`
}

// EvaluationResponse is one candidate's score.
type EvaluationResponse struct {
	Weights calibration.Weights `json:"weights"`
	Sharpe  float64             `json:"sharpe"`
	Cached  bool                `json:"cached"`
}

// CalibrateResponse reports the winner and every evaluation in input order.
type CalibrateResponse struct {
	BestWeights calibration.Weights  `json:"best_weights"`
	Sharpe      float64              `json:"sharpe"`
	BestIndex   int                  `json:"best_index"`
	Evaluated   int                  `json:"evaluated"`
	Evaluations []EvaluationResponse `json:"evaluations"`
}

// BacktestRequest carries the history and one weight vector.
type BacktestRequest struct {
	Rows    []universe.PriceRow `json:"rows"`
	Weights calibration.Weights `json:"weights"`
}

// BacktestResponse is the per-date outcome of a backtest.
type BacktestResponse struct {
	Sharpe     float64   `json:"sharpe"`
	TotalCost  float64   `json:"total_cost"`
	Dates      []string  `json:"dates"`
	NetReturns []float64 `json:"net_returns"`
	Equity     []float64 `json:"equity"`
}

// HandleCalibrate handles POST /api/calibrate
func (h *Handlers) HandleCalibrate(w http.ResponseWriter, r *http.Request) {
	var req CalibrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug().Err(err).Msg("Failed to decode calibrate request")
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Candidates) == 0 {
		h.writeError(w, "At least one candidate is required", http.StatusBadRequest)
		return
	}

	p, err := universe.PanelFromRows(req.Rows)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	res, err := h.calibrator.Calibrate(r.Context(), p, req.Candidates)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	resp := CalibrateResponse{
		BestWeights: res.BestWeights,
		Sharpe:      res.BestSharpe,
		BestIndex:   res.BestIndex,
		Evaluated:   len(res.Evaluations),
		Evaluations: make([]EvaluationResponse, len(res.Evaluations)),
	}
	for i, e := range res.Evaluations {
		resp.Evaluations[i] = EvaluationResponse{Weights: e.Weights, Sharpe: finite(e.Sharpe), Cached: e.Cached}
	}
	resp.Sharpe = finite(resp.Sharpe)
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleBacktest handles POST /api/backtest
func (h *Handlers) HandleBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug().Err(err).Msg("Failed to decode backtest request")
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	p, err := universe.PanelFromRows(req.Rows)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	res, err := h.backtester.Run(p, req.Weights)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	resp := BacktestResponse{
		Sharpe:     finite(res.Sharpe),
		TotalCost:  finite(res.TotalCost),
		Dates:      make([]string, len(res.Dates)),
		NetReturns: make([]float64, len(res.NetReturns)),
		Equity:     make([]float64, len(res.Equity)),
	}
	for i, d := range res.Dates {
		resp.Dates[i] = d.Format("2006-01-02")
	}
	for i, v := range res.NetReturns {
		resp.NetReturns[i] = finite(v)
	}
	for i, v := range res.Equity {
		resp.Equity[i] = finite(v)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// finite replaces values JSON cannot carry with 0.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// writeFailure maps validation errors to 400 and anything else to 500.
func (h *Handlers) writeFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, panel.ErrValidation) {
		status = http.StatusBadRequest
	} else {
		h.log.Error().Err(err).Msg("Calibration request failed")
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
