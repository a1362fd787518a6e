package formulas

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Reducer collapses one trailing window into a single value.
type Reducer func(window []float64) float64

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	return stat.Mean(data, nil)
}

// Max returns the largest value of the window
func Max(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	return floats.Max(data)
}

// Min returns the smallest value of the window
func Min(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	return floats.Min(data)
}

// SampleStdDev calculates the sample standard deviation (n-1 denominator).
// Undefined for fewer than two observations.
func SampleStdDev(data []float64) float64 {
	if len(data) < 2 {
		return math.NaN()
	}
	return stat.StdDev(data, nil)
}

// PopStdDev calculates the population standard deviation (n denominator).
func PopStdDev(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	return stat.PopStdDev(data, nil)
}

// Sum adds the defined values of data, skipping NaN.
func Sum(data []float64) float64 {
	total := 0.0
	for _, v := range data {
		if !math.IsNaN(v) {
			total += v
		}
	}
	return total
}

// SafeDiv divides a by b, returning NaN when b is zero or either side is NaN.
func SafeDiv(a, b float64) float64 {
	if b == 0 || math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return a / b
}

// Sign returns -1, 0 or +1, and NaN for NaN input.
func Sign(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return math.NaN()
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// FillNaN returns a copy of values with NaN replaced by fill.
func FillNaN(values []float64, fill float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = fill
		} else {
			out[i] = v
		}
	}
	return out
}

// OrZero returns 0 for NaN and v otherwise.
func OrZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
