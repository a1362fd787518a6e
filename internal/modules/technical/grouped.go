// Package technical applies single-series formulas independently within each
// ticker of a panel.
//
// Every operation follows the same partition/merge step: split the series
// into one time-ordered slice per ticker, run the plain formula on that
// slice, and scatter the result back to the original row positions. Rows of
// different tickers are never mixed, and the output keeps the input index.
package technical

import (
	"github.com/aristath/alphascan/internal/panel"
	"github.com/aristath/alphascan/pkg/formulas"
)

// SeriesFunc transforms one ticker's time-ordered values into an output of
// the same length.
type SeriesFunc func(values []float64) []float64

// MultiSeriesFunc transforms several aligned per-ticker inputs.
type MultiSeriesFunc func(inputs [][]float64) []float64

// GroupApply runs fn per ticker and merges the results in key order.
func GroupApply(s panel.Series, fn SeriesFunc) panel.Series {
	out := GroupApplyN(s.Index, [][]float64{s.Values}, func(inputs [][]float64) []float64 {
		return fn(inputs[0])
	})
	return panel.NewSeries(s.Name, s.Index, out)
}

// GroupApplyN is GroupApply over several columns sharing idx.
func GroupApplyN(idx *panel.Index, columns [][]float64, fn MultiSeriesFunc) []float64 {
	out := make([]float64, idx.Len())
	for _, ticker := range idx.Tickers() {
		rows := idx.Rows(ticker)

		// Partition
		inputs := make([][]float64, len(columns))
		for c, col := range columns {
			part := make([]float64, len(rows))
			for i, row := range rows {
				part[i] = col[row]
			}
			inputs[c] = part
		}

		// Merge
		result := fn(inputs)
		for i, row := range rows {
			out[row] = result[i]
		}
	}
	return out
}

// MovingAverage is the per-ticker simple moving average.
func MovingAverage(s panel.Series, window int) panel.Series {
	return GroupApply(s, func(v []float64) []float64 { return formulas.SMA(v, window) })
}

// RateOfChange is the per-ticker percentage rate of change.
func RateOfChange(s panel.Series, window int) panel.Series {
	return GroupApply(s, func(v []float64) []float64 { return formulas.ROC(v, window) })
}

// RollingApply applies fn to each exact trailing window per ticker.
func RollingApply(s panel.Series, window int, fn formulas.Reducer) panel.Series {
	return GroupApply(s, func(v []float64) []float64 { return formulas.RollingApply(v, window, fn) })
}

// RollingStdDev is the per-ticker trailing sample standard deviation.
func RollingStdDev(s panel.Series, window int) panel.Series {
	return GroupApply(s, func(v []float64) []float64 { return formulas.RollingStdDev(v, window) })
}

// Shift lags each ticker's series by n observations.
func Shift(s panel.Series, n int) panel.Series {
	return GroupApply(s, func(v []float64) []float64 { return formulas.Shift(v, n) })
}

// Slope is (s[t] - s[t-window]) / window per ticker.
func Slope(s panel.Series, window int) panel.Series {
	denom := float64(window)
	if window < 1 {
		denom = 1
	}
	return GroupApply(s, func(v []float64) []float64 {
		diff := formulas.Diff(v, window)
		for i := range diff {
			diff[i] /= denom
		}
		return diff
	})
}

// LogReturns is the per-ticker daily log return.
func LogReturns(s panel.Series) panel.Series {
	return GroupApply(s, formulas.LogReturns)
}

// AverageTrueRange computes ATR per ticker from the panel's high, low and
// close columns.
func AverageTrueRange(p *panel.Panel, window int) (panel.Series, error) {
	if err := panel.RequireColumns(p, panel.ColHigh, panel.ColLow, panel.ColClose); err != nil {
		return panel.Series{}, err
	}
	high, _ := p.Column(panel.ColHigh)
	low, _ := p.Column(panel.ColLow)
	closes, _ := p.Column(panel.ColClose)

	out := GroupApplyN(p.Index(), [][]float64{high.Values, low.Values, closes.Values}, func(in [][]float64) []float64 {
		return formulas.ATR(in[0], in[1], in[2], window)
	})
	return panel.NewSeries("atr", p.Index(), out), nil
}
