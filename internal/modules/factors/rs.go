package factors

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/aristath/alphascan/internal/modules/technical"
	"github.com/aristath/alphascan/internal/panel"
)

// RSConfig holds the relative strength horizons in trading days.
type RSConfig struct {
	ShortWindow    int `json:"short_window" yaml:"short_window" validate:"min=1"`         // ~1M
	MidWindow      int `json:"mid_window" yaml:"mid_window" validate:"min=1"`             // ~3M
	LongWindow     int `json:"long_window" yaml:"long_window" validate:"min=1"`           // ~6M
	VeryLongWindow int `json:"very_long_window" yaml:"very_long_window" validate:"min=1"` // ~12M
}

// DefaultRSConfig returns the 21/63/126/252 day horizons.
func DefaultRSConfig() RSConfig {
	return RSConfig{ShortWindow: 21, MidWindow: 63, LongWindow: 126, VeryLongWindow: 252}
}

// Benchmark is a close-price series indexed by date only (e.g. SPY).
type Benchmark struct {
	dates  []time.Time
	closes []float64
}

// NewBenchmark builds a benchmark from parallel date and close slices. Dates
// are truncated to days and sorted; a repeated date keeps its last close.
func NewBenchmark(dates []time.Time, closes []float64) (*Benchmark, error) {
	if len(dates) != len(closes) {
		return nil, fmt.Errorf("%w: benchmark has %d dates and %d closes", panel.ErrValidation, len(dates), len(closes))
	}
	byDay := make(map[time.Time]float64, len(dates))
	for i, d := range dates {
		byDay[panel.Day(d)] = closes[i]
	}
	return BenchmarkFromMap(byDay), nil
}

// BenchmarkFromMap builds a benchmark from a date → close map.
func BenchmarkFromMap(closes map[time.Time]float64) *Benchmark {
	b := &Benchmark{}
	byDay := make(map[time.Time]float64, len(closes))
	for d, c := range closes {
		byDay[panel.Day(d)] = c
	}
	for d := range byDay {
		b.dates = append(b.dates, d)
	}
	sort.Slice(b.dates, func(i, j int) bool { return b.dates[i].Before(b.dates[j]) })
	b.closes = make([]float64, len(b.dates))
	for i, d := range b.dates {
		b.closes[i] = byDay[d]
	}
	return b
}

// Len returns the number of benchmark observations.
func (b *Benchmark) Len() int { return len(b.dates) }

// AsOf returns the last close on or before d, NaN before the first
// observation.
func (b *Benchmark) AsOf(d time.Time) float64 {
	d = panel.Day(d)
	i := sort.Search(len(b.dates), func(i int) bool { return b.dates[i].After(d) })
	if i == 0 {
		return math.NaN()
	}
	return b.closes[i-1]
}

// Fingerprint hashes the observations.
func (b *Benchmark) Fingerprint() string {
	h := sha256.New()
	var buf [8]byte
	for i, d := range b.dates {
		binary.LittleEndian.PutUint64(buf[:], uint64(d.Unix()))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(b.closes[i]))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Aligned maps the benchmark onto every key of idx by forward fill.
func (b *Benchmark) Aligned(idx *panel.Index) panel.Series {
	out := make([]float64, idx.Len())
	for i := range out {
		out[i] = b.AsOf(idx.Key(i).Date)
	}
	return panel.NewSeries("benchmark", idx, out)
}

// RS is the relative strength factor: excess rate of change against a
// benchmark over four horizons, or the asset's own rate of change when no
// benchmark is supplied.
type RS struct {
	cfg       RSConfig
	benchmark atomic.Pointer[Benchmark]
}

// NewRS validates cfg. benchmark may be nil.
func NewRS(cfg RSConfig, benchmark *Benchmark) (*RS, error) {
	if err := panel.ValidateConfig("rs", cfg); err != nil {
		return nil, err
	}
	f := &RS{cfg: cfg}
	f.benchmark.Store(benchmark)
	return f, nil
}

// SetBenchmark swaps the benchmark used by later Compute calls. nil falls
// back to the asset's own rate of change.
func (f *RS) SetBenchmark(b *Benchmark) { f.benchmark.Store(b) }

// Benchmark returns the current benchmark, nil when none is set.
func (f *RS) Benchmark() *Benchmark { return f.benchmark.Load() }

// Name implements Factor.
func (f *RS) Name() string { return NameRS }

// Required implements Factor.
func (f *RS) Required() []string {
	return []string{panel.LevelDate, panel.LevelTicker, panel.ColClose}
}

// Compute implements Factor.
func (f *RS) Compute(p *panel.Panel) (panel.Series, error) {
	closes, err := requireAndClose(p, f.Required())
	if err != nil {
		return panel.Series{}, err
	}

	benchmark := f.benchmark.Load()
	var bench panel.Series
	if benchmark != nil {
		bench = benchmark.Aligned(p.Index())
	}

	horizon := func(window int) []float64 {
		asset := technical.RateOfChange(closes, window).Values
		if benchmark == nil {
			return asset
		}
		excess := make([]float64, len(asset))
		benchROC := technical.RateOfChange(bench, window).Values
		for i := range asset {
			excess[i] = asset[i] - benchROC[i]
		}
		return excess
	}

	return blend(RawName(NameRS), p.Index(),
		term{0.1, horizon(f.cfg.ShortWindow)},
		term{0.3, horizon(f.cfg.MidWindow)},
		term{0.3, horizon(f.cfg.LongWindow)},
		term{0.3, horizon(f.cfg.VeryLongWindow)},
	), nil
}
