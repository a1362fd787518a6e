package scoring

import (
	"math"
	"sort"

	"github.com/aristath/alphascan/internal/panel"
	"github.com/aristath/alphascan/pkg/formulas"
)

// Normalization methods.
const (
	MethodRank   = "rank"
	MethodZScore = "zscore"
)

// RankNormalize maps each date's cross-section onto [lower, upper] by rank.
//
// Ranks are 1-based with ties averaged; a value of rank r in a cross-section
// of n members becomes lower + (r-1)(upper-lower)/(n-1). A cross-section
// with at most one member maps to 0. Undefined values are not ranked and
// stay undefined, but still count towards n.
func RankNormalize(s panel.Series, lower, upper float64) panel.Series {
	out := make([]float64, s.Len())
	idx := s.Index
	for d := 0; d < idx.NumDates(); d++ {
		rows := idx.CrossSection(d)
		n := len(rows)
		if n <= 1 {
			for _, r := range rows {
				out[r] = 0
			}
			continue
		}

		ranks := averageRanks(s.Values, rows)
		scale := (upper - lower) / float64(n-1)
		for i, r := range rows {
			if math.IsNaN(ranks[i]) {
				out[r] = math.NaN()
				continue
			}
			out[r] = lower + (ranks[i]-1)*scale
		}
	}
	return panel.NewSeries(s.Name, idx, out)
}

// averageRanks ranks values[rows] ascending, averaging tied positions. NaN
// values get a NaN rank.
func averageRanks(values []float64, rows []int) []float64 {
	ranks := make([]float64, len(rows))
	order := make([]int, 0, len(rows))
	for i, r := range rows {
		if math.IsNaN(values[r]) {
			ranks[i] = math.NaN()
			continue
		}
		order = append(order, i)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[rows[order[a]]] < values[rows[order[b]]]
	})

	for start := 0; start < len(order); {
		end := start + 1
		for end < len(order) && values[rows[order[end]]] == values[rows[order[start]]] {
			end++
		}
		// Positions start..end-1 share the mean of ranks start+1..end
		avg := float64(start+1+end) / 2
		for k := start; k < end; k++ {
			ranks[order[k]] = avg
		}
		start = end
	}
	return ranks
}

// ZScoreNormalize standardizes each date's cross-section with the population
// standard deviation. A cross-section with zero or undefined dispersion maps
// to 0.
func ZScoreNormalize(s panel.Series) panel.Series {
	out := make([]float64, s.Len())
	idx := s.Index
	for d := 0; d < idx.NumDates(); d++ {
		rows := idx.CrossSection(d)
		group := make([]float64, 0, len(rows))
		for _, r := range rows {
			if !math.IsNaN(s.Values[r]) {
				group = append(group, s.Values[r])
			}
		}

		mu := formulas.Mean(group)
		sigma := formulas.PopStdDev(group)
		for _, r := range rows {
			if !(sigma > 0) {
				out[r] = 0
				continue
			}
			out[r] = (s.Values[r] - mu) / sigma
		}
	}
	return panel.NewSeries(s.Name, idx, out)
}
