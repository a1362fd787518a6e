package panel

import "math"

// Series is one numeric value per key of an index. Undefined values are NaN.
type Series struct {
	Name   string
	Index  *Index
	Values []float64
}

// NewSeries wraps values, which must have one entry per row of idx.
func NewSeries(name string, idx *Index, values []float64) Series {
	return Series{Name: name, Index: idx, Values: values}
}

// Constant returns a series filled with v.
func Constant(name string, idx *Index, v float64) Series {
	values := make([]float64, idx.Len())
	for i := range values {
		values[i] = v
	}
	return Series{Name: name, Index: idx, Values: values}
}

// Undefined returns an all-NaN series.
func Undefined(name string, idx *Index) Series {
	return Constant(name, idx, math.NaN())
}

// Len returns the number of rows.
func (s Series) Len() int { return len(s.Values) }

// At returns the value stored for k, or NaN when k is absent.
func (s Series) At(k Key) float64 {
	i, ok := s.Index.Lookup(k)
	if !ok {
		return math.NaN()
	}
	return s.Values[i]
}

// Rename returns the same values under a new name.
func (s Series) Rename(name string) Series {
	s.Name = name
	return s
}

// Reindex maps the series onto idx, with NaN wherever a key is absent.
func (s Series) Reindex(idx *Index) Series {
	if s.Index.Equal(idx) {
		return Series{Name: s.Name, Index: idx, Values: s.Values}
	}
	out := make([]float64, idx.Len())
	for i := range out {
		out[i] = s.At(idx.Key(i))
	}
	return Series{Name: s.Name, Index: idx, Values: out}
}

// Map applies fn to every value.
func (s Series) Map(fn func(float64) float64) Series {
	out := make([]float64, len(s.Values))
	for i, v := range s.Values {
		out[i] = fn(v)
	}
	return Series{Name: s.Name, Index: s.Index, Values: out}
}

// FillNaN replaces undefined values with v.
func (s Series) FillNaN(v float64) Series {
	return s.Map(func(x float64) float64 {
		if math.IsNaN(x) {
			return v
		}
		return x
	})
}

// Align reindexes every series onto the union of their indexes.
func Align(series ...Series) ([]Series, *Index) {
	indexes := make([]*Index, len(series))
	for i, s := range series {
		indexes[i] = s.Index
	}
	union := Union(indexes...)
	out := make([]Series, len(series))
	for i, s := range series {
		out[i] = s.Reindex(union)
	}
	return out, union
}

// Zip aligns a and b and combines them value by value.
func Zip(name string, a, b Series, fn func(x, y float64) float64) Series {
	aligned, idx := Align(a, b)
	out := make([]float64, idx.Len())
	for i := range out {
		out[i] = fn(aligned[0].Values[i], aligned[1].Values[i])
	}
	return Series{Name: name, Index: idx, Values: out}
}
