package formulas

import (
	"math"
)

// TradingDaysPerYear is the annualization factor for daily series.
const TradingDaysPerYear = 252

// AnnualizedSharpe calculates the annualized Sharpe ratio of periodic
// returns with a zero risk-free rate.
//
// Sharpe Ratio Formula:
//
//	Sharpe = (mean(returns) × periodsPerYear) / (popStdDev(returns) × sqrt(periodsPerYear))
//
// Args:
//
//	returns: Periodic net returns (daily for periodsPerYear = 252)
//	periodsPerYear: Number of periods per year
//
// Returns:
//
//	Sharpe ratio, or 0 when the denominator is zero or undefined (flat or
//	single-observation series)
func AnnualizedSharpe(returns []float64, periodsPerYear int) float64 {
	if len(returns) == 0 || periodsPerYear <= 0 {
		return 0
	}

	mu := Mean(returns) * float64(periodsPerYear)
	sigma := PopStdDev(returns) * math.Sqrt(float64(periodsPerYear))
	if !(sigma > 0) || math.IsNaN(mu) {
		return 0
	}
	return mu / sigma
}

// EquityCurve returns the cumulative product of (1 + r).
func EquityCurve(returns []float64) []float64 {
	out := make([]float64, len(returns))
	equity := 1.0
	for i, r := range returns {
		equity *= 1.0 + r
		out[i] = equity
	}
	return out
}
