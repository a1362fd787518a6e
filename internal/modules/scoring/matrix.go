package scoring

import (
	"math"

	"github.com/aristath/alphascan/internal/panel"
)

// Matrix is a set of factor columns sharing one panel index. Column order is
// fixed at construction and depends only on which factors were enabled.
type Matrix struct {
	index   *panel.Index
	names   []string
	columns map[string][]float64
}

// NewMatrix assembles series onto idx, in the given order.
func NewMatrix(idx *panel.Index, series ...panel.Series) *Matrix {
	m := &Matrix{index: idx, columns: make(map[string][]float64, len(series))}
	for _, s := range series {
		m.names = append(m.names, s.Name)
		m.columns[s.Name] = s.Reindex(idx).Values
	}
	return m
}

// Index returns the shared key index.
func (m *Matrix) Index() *panel.Index { return m.index }

// Len returns the number of rows.
func (m *Matrix) Len() int { return m.index.Len() }

// Columns returns the column names in matrix order.
func (m *Matrix) Columns() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Has reports whether the matrix carries name.
func (m *Matrix) Has(name string) bool {
	_, ok := m.columns[name]
	return ok
}

// Column returns a read-only view of one column.
func (m *Matrix) Column(name string) (panel.Series, bool) {
	values, ok := m.columns[name]
	if !ok {
		return panel.Series{}, false
	}
	return panel.NewSeries(name, m.index, values), true
}

// Row is one (date, ticker) entry of a matrix with its column values. NaN is
// reported as nil.
type Row struct {
	Date   string              `json:"date"`
	Ticker string              `json:"ticker"`
	Values map[string]*float64 `json:"values"`
}

// Rows flattens the matrix in key order.
func (m *Matrix) Rows() []Row {
	rows := make([]Row, m.index.Len())
	for i := range rows {
		k := m.index.Key(i)
		values := make(map[string]*float64, len(m.names))
		for _, name := range m.names {
			v := m.columns[name][i]
			if math.IsNaN(v) {
				values[name] = nil
				continue
			}
			values[name] = &v
		}
		rows[i] = Row{Date: k.Date.Format("2006-01-02"), Ticker: k.Ticker, Values: values}
	}
	return rows
}
