package server

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/alphascan/internal/modules/scanner"
	"github.com/aristath/alphascan/internal/modules/snapshots"
	"github.com/aristath/alphascan/internal/panel"
)

// ScanService runs scans on demand and remembers the last one.
type ScanService interface {
	Execute(ctx context.Context) (*scanner.Output, error)
	Latest() *scanner.Output
}

// CandidateView is a candidate with undefined values as null.
type CandidateView struct {
	Ticker          string   `json:"ticker"`
	CompositeScore  float64  `json:"composite_score"`
	VolAdjShares    float64  `json:"vol_adj_shares"`
	EstEntryPrice   float64  `json:"est_entry_price"`
	EstSlippageCost *float64 `json:"est_slippage_cost"`
	CapacityUsage   *float64 `json:"capacity_usage"`
	Significance    float64  `json:"significance"`
}

// ScanResponse is the wire form of a scan.
type ScanResponse struct {
	RunID            string              `json:"run_id"`
	AsOf             string              `json:"as_of"`
	Status           string              `json:"status"`
	KillSwitchActive bool                `json:"kill_switch_active"`
	Threshold        *float64            `json:"threshold"`
	BestWeights      map[string]float64  `json:"best_weights,omitempty"`
	BestSharpe       *float64            `json:"best_sharpe,omitempty"`
	Candidates       []CandidateView     `json:"candidates"`
	ReportPath       string              `json:"report_path,omitempty"`
	Snapshot         *snapshots.Snapshot `json:"snapshot,omitempty"`
}

func (s *Server) registerScanRoutes(r chi.Router) {
	r.Route("/scan", func(r chi.Router) {
		r.Post("/run", s.handleRunScan)      // Run a scan now
		r.Get("/latest", s.handleLatestScan) // Last successful scan
	})
}

// handleRunScan handles POST /api/scan/run
func (s *Server) handleRunScan(w http.ResponseWriter, r *http.Request) {
	out, err := s.cfg.Scans.Execute(r.Context())
	if err != nil {
		if errors.Is(err, panel.ErrValidation) {
			s.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Error().Err(err).Msg("Scan failed")
		s.writeError(w, "Scan failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, newScanResponse(out))
}

// handleLatestScan handles GET /api/scan/latest
func (s *Server) handleLatestScan(w http.ResponseWriter, r *http.Request) {
	out := s.cfg.Scans.Latest()
	if out == nil {
		s.writeError(w, "No scan has completed yet", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, newScanResponse(out))
}

func newScanResponse(out *scanner.Output) ScanResponse {
	resp := ScanResponse{
		RunID:            out.RunID,
		AsOf:             out.AsOf.Format(time.DateOnly),
		Status:           out.Status,
		KillSwitchActive: out.KillSwitchActive,
		Threshold:        defined(out.Threshold),
		Candidates:       make([]CandidateView, len(out.Candidates)),
		ReportPath:       out.ReportPath,
		Snapshot:         out.Snapshot,
	}
	if out.Calibration != nil {
		resp.BestWeights = out.Calibration.BestWeights
		resp.BestSharpe = defined(out.Calibration.BestSharpe)
	}
	for i, c := range out.Candidates {
		resp.Candidates[i] = CandidateView{
			Ticker:          c.Ticker,
			CompositeScore:  c.CompositeScore,
			VolAdjShares:    c.VolAdjShares,
			EstEntryPrice:   c.EstEntryPrice,
			EstSlippageCost: defined(c.EstSlippageCost),
			CapacityUsage:   defined(c.CapacityUsage),
			Significance:    c.Significance,
		}
	}
	return resp
}

func defined(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
