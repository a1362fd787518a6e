package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertSeries(t *testing.T, expected, actual []float64, delta float64) {
	t.Helper()
	require.Len(t, actual, len(expected))
	for i := range expected {
		if math.IsNaN(expected[i]) {
			assert.True(t, math.IsNaN(actual[i]), "index %d: expected NaN, got %v", i, actual[i])
			continue
		}
		assert.InDelta(t, expected[i], actual[i], delta, "index %d", i)
	}
}

var nan = math.NaN()

func TestSMA(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		window   int
		expected []float64
	}{
		{
			name:     "exact window semantics",
			values:   []float64{1, 2, 3, 4, 5},
			window:   3,
			expected: []float64{nan, nan, 2, 3, 4},
		},
		{
			name:     "window of one is identity",
			values:   []float64{4, 5, 6},
			window:   1,
			expected: []float64{4, 5, 6},
		},
		{
			name:     "shorter than window",
			values:   []float64{1, 2},
			window:   3,
			expected: []float64{nan, nan},
		},
		{
			name:     "nan poisons only its windows",
			values:   []float64{1, nan, 3, 4, 5, 6},
			window:   2,
			expected: []float64{nan, nan, nan, 3.5, 4.5, 5.5},
		},
		{
			name:     "non-positive window",
			values:   []float64{1, 2, 3},
			window:   0,
			expected: []float64{nan, nan, nan},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertSeries(t, tt.expected, SMA(tt.values, tt.window), 1e-9)
		})
	}
}

func TestROC(t *testing.T) {
	values := []float64{100, 110, 0, 121, 50}
	got := ROC(values, 1)
	assertSeries(t, []float64{nan, 10, -100, nan, (50.0/121.0 - 1) * 100}, got, 1e-6)

	got = ROC(values, 2)
	assertSeries(t, []float64{nan, nan, -100, 10, nan}, got, 1e-9)
}

func TestRollingApply_MaxMin(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5, 9, 2}

	assertSeries(t, []float64{nan, nan, 4, 4, 5, 9, 9}, RollingApply(values, 3, Max), 0)
	assertSeries(t, []float64{nan, nan, 1, 1, 1, 1, 2}, RollingApply(values, 3, Min), 0)
}

func TestRollingStdDev_IsSampleStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	got := RollingStdDev(values, 8)

	// Sample variance of this classic dataset is 32/7
	assert.InDelta(t, math.Sqrt(32.0/7.0), got[7], 1e-12)
	for i := 0; i < 7; i++ {
		assert.True(t, math.IsNaN(got[i]))
	}
}

func TestShift(t *testing.T) {
	assertSeries(t, []float64{nan, 1, 2}, Shift([]float64{1, 2, 3}, 1), 0)
	assertSeries(t, []float64{2, 3, nan}, Shift([]float64{1, 2, 3}, -1), 0)
}

func TestLogReturns(t *testing.T) {
	got := LogReturns([]float64{100, 110, 0, 121})
	assertSeries(t, []float64{nan, math.Log(1.1), nan, nan}, got, 1e-12)
}

func TestTrueRangeAndATR(t *testing.T) {
	high := []float64{10, 12, 11, 15}
	low := []float64{9, 10, 8, 12}
	close := []float64{9.5, 11, 9, 14}

	// Bar 0: 10-9=1
	// Bar 1: max(2, |12-9.5|=2.5, |10-9.5|=0.5) = 2.5
	// Bar 2: max(3, |11-11|=0, |8-11|=3) = 3
	// Bar 3: max(3, |15-9|=6, |12-9|=3) = 6
	tr := TrueRange(high, low, close)
	assertSeries(t, []float64{1, 2.5, 3, 6}, tr, 1e-12)

	atr := ATR(high, low, close, 2)
	assertSeries(t, []float64{nan, 1.75, 2.75, 4.5}, atr, 1e-12)
}

func TestTrueRange_NaNInputsUseDefinedTerms(t *testing.T) {
	high := []float64{10, 12}
	low := []float64{9, 10}
	close := []float64{nan, 11}

	tr := TrueRange(high, low, close)
	assertSeries(t, []float64{1, 2}, tr, 1e-12)
}
