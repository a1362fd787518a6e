package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// TrueRange calculates the True Range of each bar.
//
// Formula:
//
//	TR = max(high - low, |high - prevClose|, |low - prevClose|)
//
// The first bar has no previous close, so its TR is high - low.
func TrueRange(high, low, close []float64) []float64 {
	n := len(close)
	out := nanSlice(n)
	if n == 0 || len(high) != n || len(low) != n {
		return out
	}

	if !hasNaN(high) && !hasNaN(low) && !hasNaN(close) {
		if n > 1 {
			copy(out[1:], talib.TRange(high, low, close)[1:])
		}
		out[0] = high[0] - low[0]
		return out
	}

	for i := 0; i < n; i++ {
		prevClose := math.NaN()
		if i > 0 {
			prevClose = close[i-1]
		}
		out[i] = maxDefined(high[i]-low[i], math.Abs(high[i]-prevClose), math.Abs(low[i]-prevClose))
	}
	return out
}

// ATR calculates the Average True Range as a simple mean of the trailing
// window of true ranges (not Wilder smoothing).
func ATR(high, low, close []float64, window int) []float64 {
	return SMA(TrueRange(high, low, close), window)
}

// maxDefined ignores NaN terms; all-NaN input yields NaN.
func maxDefined(vals ...float64) float64 {
	best := math.NaN()
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(best) || v > best {
			best = v
		}
	}
	return best
}
