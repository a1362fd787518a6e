// Package factors computes the raw technical factor scores of a panel.
//
// Each factor validates its required columns, computes a fixed linear blend
// of sub-indicators per (date, ticker) and returns a series named
// "<Name>_raw". Undefined sub-indicator values are replaced with 0 before
// blending, so raw factors are defined for every key of the panel.
package factors

import (
	"math"
	"strings"

	"github.com/aristath/alphascan/internal/panel"
	"github.com/aristath/alphascan/pkg/formulas"
)

// Factor names, in the order the engine evaluates them.
const (
	NameRS       = "RS"
	NameTrend    = "Trend"
	NameSqueeze  = "Squeeze"
	NameMomentum = "Momentum"
	NameVolume   = "Volume"
)

const (
	rawSuffix   = "_raw"
	scoreSuffix = "_score"
)

// Factor turns a normalized panel into one raw score per (date, ticker).
type Factor interface {
	Name() string
	Required() []string
	Compute(p *panel.Panel) (panel.Series, error)
}

// RawName returns the raw series name of a factor, e.g. "RS_raw".
func RawName(name string) string { return name + rawSuffix }

// ScoreName returns the normalized score column name, e.g. "RS_score".
func ScoreName(name string) string { return name + scoreSuffix }

// ScoreFromRaw maps "X_raw" to "X_score". Other names are returned unchanged.
func ScoreFromRaw(raw string) string {
	if strings.HasSuffix(raw, rawSuffix) {
		return strings.TrimSuffix(raw, rawSuffix) + scoreSuffix
	}
	return raw
}

// term is one weighted sub-indicator of a blend.
type term struct {
	weight float64
	values []float64
}

// blend computes Σ weight·value with undefined values treated as 0.
func blend(name string, idx *panel.Index, terms ...term) panel.Series {
	out := make([]float64, idx.Len())
	for _, t := range terms {
		for i, v := range t.values {
			if math.IsNaN(v) {
				continue
			}
			out[i] += t.weight * v
		}
	}
	return panel.NewSeries(name, idx, out)
}

// ratio divides a by b per row, undefined where b is zero or either is NaN.
func ratio(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = formulas.SafeDiv(a[i], b[i])
	}
	return out
}

// distance is (a - b) / b per row.
func distance(a, b []float64) []float64 {
	diff := make([]float64, len(a))
	for i := range a {
		diff[i] = a[i] - b[i]
	}
	return ratio(diff, b)
}

func requireAndClose(p *panel.Panel, required []string) (panel.Series, error) {
	if err := panel.RequireColumns(p, required...); err != nil {
		return panel.Series{}, err
	}
	return p.Column(panel.ColClose)
}
