// Package reporting writes the scanner deliverable workbook.
package reporting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/aristath/alphascan/internal/panel"
)

// CandidatesSheet is the name of the ranked candidates sheet.
const CandidatesSheet = "Top 20 Candidates"

// CalibrationSheet holds the run summary when one is supplied.
const CalibrationSheet = "Calibration"

// Headers are the candidate sheet columns, in order.
var Headers = []string{
	"Rank",
	"Ticker",
	"Composite Score",
	"Vol_Adj_Shares",
	"Est_Entry_Price",
	"Est_Slippage_Cost",
	"Capacity_Usage",
	"Significance",
}

// Candidate is one row of the deliverable.
type Candidate struct {
	Ticker          string  `json:"ticker"`
	CompositeScore  float64 `json:"composite_score"`
	VolAdjShares    float64 `json:"vol_adj_shares"`
	EstEntryPrice   float64 `json:"est_entry_price"`
	EstSlippageCost float64 `json:"est_slippage_cost"`
	CapacityUsage   float64 `json:"capacity_usage"`
	Significance    float64 `json:"significance"`
}

// Summary describes the calibration behind a report.
type Summary struct {
	RunID            string
	BestWeights      map[string]float64
	BestSharpe       float64
	Evaluated        int
	KillSwitchActive bool
}

// ResultsFilename is "scanner_results_<YYYY-MM-DD>.xlsx".
func ResultsFilename(runDate time.Time) string {
	return fmt.Sprintf("scanner_results_%s.xlsx", runDate.Format("2006-01-02"))
}

// Rank orders candidates by composite score, highest first. Equal scores keep
// their input order; undefined scores sort last.
func Rank(candidates []Candidate) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].CompositeScore, out[j].CompositeScore
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a > b
	})
	return out
}

// WriteScannerResults writes candidates to an xlsx workbook. When outputPath
// is a directory the file is named by ResultsFilename(runDate) inside it.
// A zero runDate means today. Returns the written path.
func WriteScannerResults(outputPath string, candidates []Candidate, runDate time.Time) (string, error) {
	return WriteReport(outputPath, candidates, runDate, nil)
}

// WriteReport is WriteScannerResults with an optional calibration summary
// sheet.
func WriteReport(outputPath string, candidates []Candidate, runDate time.Time, summary *Summary) (string, error) {
	for i, c := range candidates {
		if c.Ticker == "" {
			return "", fmt.Errorf("%w: candidate %d has no ticker", panel.ErrValidation, i)
		}
	}
	if runDate.IsZero() {
		runDate = time.Now()
	}

	path := outputPath
	if info, err := os.Stat(outputPath); err == nil && info.IsDir() {
		path = filepath.Join(outputPath, ResultsFilename(runDate))
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", CandidatesSheet); err != nil {
		return "", fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := writeRow(f, CandidatesSheet, 1, toCells(Headers)); err != nil {
		return "", err
	}
	for i, c := range Rank(candidates) {
		row := []interface{}{
			i + 1,
			c.Ticker,
			cell(c.CompositeScore),
			cell(c.VolAdjShares),
			money(c.EstEntryPrice),
			money(c.EstSlippageCost),
			cell(c.CapacityUsage),
			cell(c.Significance),
		}
		if err := writeRow(f, CandidatesSheet, i+2, row); err != nil {
			return "", err
		}
	}

	if summary != nil {
		if err := writeSummary(f, summary, runDate); err != nil {
			return "", err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	return path, nil
}

func writeSummary(f *excelize.File, s *Summary, runDate time.Time) error {
	if _, err := f.NewSheet(CalibrationSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	rows := [][]interface{}{
		{"Run Date", runDate.Format("2006-01-02")},
		{"Run ID", s.RunID},
		{"Candidates Evaluated", s.Evaluated},
		{"Best Sharpe", cell(s.BestSharpe)},
		{"Kill Switch Active", s.KillSwitchActive},
		{},
		{"Factor", "Weight"},
	}
	names := make([]string, 0, len(s.BestWeights))
	for name := range s.BestWeights {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rows = append(rows, []interface{}{name, s.BestWeights[name]})
	}

	for i, row := range rows {
		if err := writeRow(f, CalibrationSheet, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	if len(values) == 0 {
		return nil
	}
	addr, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to address row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, addr, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// cell leaves undefined values blank.
func cell(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// money rounds half away from zero to cents.
func money(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
