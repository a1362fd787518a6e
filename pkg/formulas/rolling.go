package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// SMA calculates the Simple Moving Average over a trailing window.
//
// Values are undefined (NaN) until window observations exist, and any NaN
// inside a window makes that window undefined. No partial windows.
//
// Args:
//
//	values: Time-ordered observations of a single series
//	window: Number of trailing observations (must be >= 1)
func SMA(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 0 || len(values) < window {
		return out
	}
	if hasNaN(values) {
		return RollingApply(values, window, Mean)
	}

	// go-talib leaves the lookback period zeroed; replace it with NaN
	sma := talib.Sma(values, window)
	copy(out[window-1:], sma[window-1:])
	return out
}

// RollingApply applies fn to every complete trailing window.
// Windows containing NaN produce NaN.
func RollingApply(values []float64, window int, fn Reducer) []float64 {
	out := nanSlice(len(values))
	if window <= 0 {
		return out
	}
	for end := window; end <= len(values); end++ {
		w := values[end-window : end]
		if hasNaN(w) {
			continue
		}
		out[end-1] = fn(w)
	}
	return out
}

// RollingStdDev calculates the trailing sample standard deviation.
func RollingStdDev(values []float64, window int) []float64 {
	return RollingApply(values, window, SampleStdDev)
}

// Shift lags values by n positions (n > 0) or leads them (n < 0).
// Positions without a source value are NaN.
func Shift(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	for i := range values {
		src := i - n
		if src >= 0 && src < len(values) {
			out[i] = values[src]
		}
	}
	return out
}

// ROC calculates the percentage Rate of Change.
//
// Formula:
//
//	ROC[t] = (value[t] / value[t-window] - 1) * 100
//
// Undefined where the lagged value is missing, zero or NaN.
func ROC(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 0 {
		return out
	}
	for i := window; i < len(values); i++ {
		prev := values[i-window]
		if prev == 0 || math.IsNaN(prev) || math.IsNaN(values[i]) {
			continue
		}
		out[i] = (values[i]/prev - 1.0) * 100.0
	}
	return out
}

// LogReturns calculates ln(p[t] / p[t-1]). The first value and any value
// next to a non-positive or NaN price are undefined.
func LogReturns(prices []float64) []float64 {
	out := nanSlice(len(prices))
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if !(prev > 0) || !(cur > 0) {
			continue
		}
		out[i] = math.Log(cur / prev)
	}
	return out
}

// Diff returns values[t] - values[t-n].
func Diff(values []float64, n int) []float64 {
	lagged := Shift(values, n)
	out := make([]float64, len(values))
	for i := range values {
		out[i] = values[i] - lagged[i]
	}
	return out
}
