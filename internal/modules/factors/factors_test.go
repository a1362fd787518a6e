package factors

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/alphascan/internal/panel"
	testingpkg "github.com/aristath/alphascan/internal/testing"
)

func allFactors(t *testing.T) []Factor {
	rs, err := NewRS(DefaultRSConfig(), nil)
	require.NoError(t, err)
	trend, err := NewTrend(DefaultTrendConfig())
	require.NoError(t, err)
	squeeze, err := NewSqueeze(DefaultSqueezeConfig())
	require.NoError(t, err)
	momentum, err := NewMomentum(DefaultMomentumConfig())
	require.NoError(t, err)
	volume, err := NewVolume(DefaultVolumeConfig())
	require.NoError(t, err)
	return []Factor{rs, trend, squeeze, momentum, volume}
}

func TestFactors_RawDefinedForEveryKey(t *testing.T) {
	bars := append(
		testingpkg.RandomWalkBars("AAA", 300, 1, 0.0005, 0.01, 1e6),
		testingpkg.RandomWalkBars("BBB", 300, 2, -0.0002, 0.02, 5e5)...,
	)
	p := testingpkg.NewPanel(t, bars)

	for _, f := range allFactors(t) {
		t.Run(f.Name(), func(t *testing.T) {
			raw, err := f.Compute(p)
			require.NoError(t, err)
			assert.Equal(t, RawName(f.Name()), raw.Name)
			assert.Same(t, p.Index(), raw.Index)
			for i, v := range raw.Values {
				require.False(t, math.IsNaN(v), "row %d", i)
				require.False(t, math.IsInf(v, 0), "row %d", i)
			}
		})
	}
}

func TestFactors_MissingColumns(t *testing.T) {
	bars := testingpkg.TrendingBars("AAA", 30, 100, 0.01, 1000)
	noVolume, err := panel.Normalize(testingpkg.TableFromBars(bars, false))
	require.NoError(t, err)

	volume, err := NewVolume(DefaultVolumeConfig())
	require.NoError(t, err)

	_, err = volume.Compute(noVolume)
	require.Error(t, err)
	assert.ErrorIs(t, err, panel.ErrValidation)
	assert.Contains(t, err.Error(), "volume")

	// Factors without a volume dependency still work
	momentum, err := NewMomentum(DefaultMomentumConfig())
	require.NoError(t, err)
	_, err = momentum.Compute(noVolume)
	assert.NoError(t, err)
}

func TestMomentum_Blend(t *testing.T) {
	p := testingpkg.NewPanel(t, testingpkg.TrendingBars("AAA", 30, 100, 0.01, 1000))
	momentum, err := NewMomentum(DefaultMomentumConfig())
	require.NoError(t, err)

	raw, err := momentum.Compute(p)
	require.NoError(t, err)

	roc10 := (math.Pow(1.01, 10) - 1) * 100
	roc20 := (math.Pow(1.01, 20) - 1) * 100

	assert.Equal(t, 0.0, raw.Values[5])
	assert.InDelta(t, 0.6*roc10, raw.Values[15], 1e-9)
	assert.InDelta(t, 0.6*roc10+0.4*roc20, raw.Values[29], 1e-9)
}

func TestSqueeze_FlatSeries(t *testing.T) {
	p := testingpkg.NewPanel(t, testingpkg.FlatBars([]string{"AAA"}, 260, 100, 1000))
	squeeze, err := NewSqueeze(DefaultSqueezeConfig())
	require.NoError(t, err)

	raw, err := squeeze.Compute(p)
	require.NoError(t, err)

	// Before any window fills every term is 0
	assert.Equal(t, 0.0, raw.Values[10])
	// Zero Bollinger width is inside the Keltner channel; range equals ATR20
	assert.InDelta(t, 0.4+0.3, raw.Values[100], 1e-9)
	// Once ATR252 exists the volatility ratio is -1
	assert.InDelta(t, 0.4-0.3+0.3, raw.Values[259], 1e-9)
}

func TestTrend_RisingSeries(t *testing.T) {
	p := testingpkg.NewPanel(t, testingpkg.TrendingBars("AAA", 260, 100, 0.002, 1000))
	trend, err := NewTrend(DefaultTrendConfig())
	require.NoError(t, err)

	raw, err := trend.Compute(p)
	require.NoError(t, err)

	assert.Equal(t, 0.0, raw.Values[10])
	// Cross state alone contributes 0.35 once SMA200 exists
	assert.Greater(t, raw.Values[259], 0.35)
}

// trailingMean is the mean of v[i-w+1..i], NaN before the window fills.
func trailingMean(v []float64, w, i int) float64 {
	if i+1 < w {
		return math.NaN()
	}
	sum := 0.0
	for _, x := range v[i+1-w : i+1] {
		sum += x
	}
	return sum / float64(w)
}

// pctChange is (v[i]/v[i-w] - 1) * 100, NaN before the lag exists.
func pctChange(v []float64, w, i int) float64 {
	if i < w {
		return math.NaN()
	}
	return (v[i]/v[i-w] - 1) * 100
}

// weighted sums weight·value pairs, skipping undefined values.
func weighted(pairs ...[2]float64) float64 {
	sum := 0.0
	for _, p := range pairs {
		if !math.IsNaN(p[1]) {
			sum += p[0] * p[1]
		}
	}
	return sum
}

func closesOf(bars []testingpkg.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func TestTrend_Blend(t *testing.T) {
	bars := testingpkg.TrendingBars("AAA", 260, 100, 0.01, 1000)
	p := testingpkg.NewPanel(t, bars)
	trend, err := NewTrend(DefaultTrendConfig())
	require.NoError(t, err)

	raw, err := trend.Compute(p)
	require.NoError(t, err)

	c := closesOf(bars)
	expected := func(i int) float64 {
		sma20 := trailingMean(c, 20, i)
		sma50 := trailingMean(c, 50, i)
		sma200 := trailingMean(c, 200, i)
		cross := math.NaN()
		if !math.IsNaN(sma50) && !math.IsNaN(sma200) {
			cross = 1
			if sma50 < sma200 {
				cross = -1
			}
		}
		slope50, slope200 := math.NaN(), math.NaN()
		if i >= 20 {
			slope50 = (sma50 - trailingMean(c, 50, i-20)) / 20
			slope200 = (sma200 - trailingMean(c, 200, i-20)) / 20
		}
		return weighted(
			[2]float64{0.35, cross},
			[2]float64{0.25, (c[i] - sma200) / sma200},
			[2]float64{0.20, slope50},
			[2]float64{0.10, slope200},
			[2]float64{0.10, (c[i] - sma20) / sma20},
		)
	}

	tests := []struct {
		name string
		row  int
	}{
		{"no window filled", 10},
		{"short distance only", 30},
		{"medium slope joins", 100},
		{"cross and long distance join", 210},
		{"every term defined", 259},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, expected(tt.row), raw.Values[tt.row], 1e-8)
		})
	}

	assert.Equal(t, 0.0, raw.Values[10])
	assert.InDelta(t, 0.10*(c[30]-trailingMean(c, 20, 30))/trailingMean(c, 20, 30), raw.Values[30], 1e-12)
}

func TestVolume_Blend(t *testing.T) {
	bars := testingpkg.TrendingBars("AAA", 80, 100, 0.01, 1000)
	for i := range bars {
		bars[i].Volume = 1000 * math.Pow(1.02, float64(i))
	}
	p := testingpkg.NewPanel(t, bars)
	volume, err := NewVolume(DefaultVolumeConfig())
	require.NoError(t, err)

	raw, err := volume.Compute(p)
	require.NoError(t, err)

	c := closesOf(bars)
	v := make([]float64, len(bars))
	for i, b := range bars {
		v[i] = b.Volume
	}
	expected := func(i int) float64 {
		volROC := pctChange(v, 20, i)
		return weighted(
			[2]float64{0.35, v[i] / trailingMean(v, 20, i)},
			[2]float64{0.25, v[i] / trailingMean(v, 50, i)},
			[2]float64{0.25, volROC},
			[2]float64{0.15, -(pctChange(c, 20, i) - volROC)},
		)
	}

	tests := []struct {
		name string
		row  int
	}{
		{"no window filled", 10},
		{"short volume ratio only", 19},
		{"rates of change join", 30},
		{"every term defined", 60},
		{"last row", 79},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, expected(tt.row), raw.Values[tt.row], 1e-8)
		})
	}

	assert.Equal(t, 0.0, raw.Values[10])
	assert.InDelta(t, 0.35*v[19]/trailingMean(v, 20, 19), raw.Values[19], 1e-9)

	// Constant volume leaves the two ratios at 1 and only price drives the
	// divergence term
	flat := testingpkg.TrendingBars("BBB", 60, 100, 0.01, 1000)
	flatRaw, err := volume.Compute(testingpkg.NewPanel(t, flat))
	require.NoError(t, err)
	roc20 := (math.Pow(1.01, 20) - 1) * 100
	assert.InDelta(t, 0.6-0.15*roc20, flatRaw.Values[55], 1e-9)
}

func TestRS_WithoutBenchmarkUsesOwnROC(t *testing.T) {
	p := testingpkg.NewPanel(t, testingpkg.TrendingBars("AAA", 30, 100, 0.01, 1000))
	rs, err := NewRS(RSConfig{ShortWindow: 5, MidWindow: 10, LongWindow: 15, VeryLongWindow: 20}, nil)
	require.NoError(t, err)

	raw, err := rs.Compute(p)
	require.NoError(t, err)

	roc := func(n float64) float64 { return (math.Pow(1.01, n) - 1) * 100 }
	assert.InDelta(t, 0.1*roc(5)+0.3*roc(10)+0.3*roc(15)+0.3*roc(20), raw.Values[25], 1e-9)
	assert.InDelta(t, 0.1*roc(5)+0.3*roc(10), raw.Values[12], 1e-9)
}

func TestRS_BenchmarkExcess(t *testing.T) {
	bars := testingpkg.TrendingBars("AAA", 40, 100, 0.01, 1000)
	p := testingpkg.NewPanel(t, bars)

	// Benchmark identical to the asset: zero excess everywhere
	dates := make([]time.Time, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		dates[i] = b.Date
		closes[i] = b.Close
	}
	bench, err := NewBenchmark(dates, closes)
	require.NoError(t, err)

	cfg := RSConfig{ShortWindow: 5, MidWindow: 10, LongWindow: 15, VeryLongWindow: 20}
	rs, err := NewRS(cfg, bench)
	require.NoError(t, err)

	raw, err := rs.Compute(p)
	require.NoError(t, err)
	for i, v := range raw.Values {
		assert.InDelta(t, 0.0, v, 1e-9, "row %d", i)
	}

	// Flat benchmark: excess equals the asset's own ROC
	flat := make([]float64, len(bars))
	for i := range flat {
		flat[i] = 50
	}
	flatBench, err := NewBenchmark(dates, flat)
	require.NoError(t, err)
	rsFlat, err := NewRS(cfg, flatBench)
	require.NoError(t, err)
	rsOwn, err := NewRS(cfg, nil)
	require.NoError(t, err)

	withFlat, err := rsFlat.Compute(p)
	require.NoError(t, err)
	own, err := rsOwn.Compute(p)
	require.NoError(t, err)
	assert.InDeltaSlice(t, own.Values, withFlat.Values, 1e-9)
}

func TestRS_SetBenchmark(t *testing.T) {
	bars := testingpkg.TrendingBars("AAA", 40, 100, 0.01, 1000)
	p := testingpkg.NewPanel(t, bars)
	dates := make([]time.Time, len(bars))
	for i, b := range bars {
		dates[i] = b.Date
	}
	same, err := NewBenchmark(dates, closesOf(bars))
	require.NoError(t, err)

	cfg := RSConfig{ShortWindow: 5, MidWindow: 10, LongWindow: 15, VeryLongWindow: 20}
	rs, err := NewRS(cfg, nil)
	require.NoError(t, err)
	own, err := rs.Compute(p)
	require.NoError(t, err)

	rs.SetBenchmark(same)
	assert.Same(t, same, rs.Benchmark())
	excess, err := rs.Compute(p)
	require.NoError(t, err)
	for i, v := range excess.Values {
		assert.InDelta(t, 0.0, v, 1e-9, "row %d", i)
	}

	rs.SetBenchmark(nil)
	again, err := rs.Compute(p)
	require.NoError(t, err)
	assert.Equal(t, own.Values, again.Values)
}

func TestBenchmark_Fingerprint(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC) }
	a := BenchmarkFromMap(map[time.Time]float64{d(4): 10, d(5): 11})
	b := BenchmarkFromMap(map[time.Time]float64{d(4): 10, d(5): 11})
	later := BenchmarkFromMap(map[time.Time]float64{d(4): 10, d(5): 11, d(6): 12})

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), later.Fingerprint())
}

func TestBenchmark_AsOfForwardFills(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC) }
	bench := BenchmarkFromMap(map[time.Time]float64{d(4): 10, d(6): 12})

	assert.True(t, math.IsNaN(bench.AsOf(d(3))))
	assert.Equal(t, 10.0, bench.AsOf(d(4)))
	assert.Equal(t, 10.0, bench.AsOf(d(5)))
	assert.Equal(t, 12.0, bench.AsOf(d(9)))
	assert.Equal(t, 2, bench.Len())

	_, err := NewBenchmark([]time.Time{d(4)}, nil)
	assert.ErrorIs(t, err, panel.ErrValidation)
}

func TestConfigValidation(t *testing.T) {
	_, err := NewTrend(TrendConfig{SMAShort: 20, SMAMed: 50, SMALong: 0, SlopeWindow: 20})
	assert.ErrorIs(t, err, panel.ErrValidation)

	_, err = NewMomentum(MomentumConfig{ROCShort: -1, ROCLong: 20})
	assert.ErrorIs(t, err, panel.ErrValidation)

	cfg := DefaultSqueezeConfig()
	cfg.BBStd = 0
	_, err = NewSqueeze(cfg)
	assert.ErrorIs(t, err, panel.ErrValidation)
}

func TestScoreFromRaw(t *testing.T) {
	assert.Equal(t, "RS_score", ScoreFromRaw("RS_raw"))
	assert.Equal(t, "Trend_score", ScoreName(NameTrend))
	assert.Equal(t, "other", ScoreFromRaw("other"))
}
