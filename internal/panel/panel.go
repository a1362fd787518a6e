// Package panel provides the (date, ticker) keyed table every stage of the
// screening pipeline operates on.
package panel

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"
	"time"
)

// Key level names. They are always present on a panel and cannot be used as
// column names.
const (
	LevelDate   = "date"
	LevelTicker = "ticker"
)

// Standard OHLCV column names.
const (
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColVolume = "volume"
)

// Table is the loose ingestion form. It either carries an explicit Index or
// plain Dates and Tickers columns, one entry per row.
type Table struct {
	Index   []Key
	Dates   []time.Time
	Tickers []string
	Columns map[string][]float64
}

// Panel is an immutable table keyed uniquely by (date, ticker), sorted by
// date then ticker.
type Panel struct {
	index   *Index
	columns map[string][]float64
	order   []string
}

// Normalize canonicalizes t into a sorted panel. It is idempotent:
// Normalize(p.Table()) returns a panel equal to p.
func Normalize(t Table) (*Panel, error) {
	var keys []Key
	switch {
	case t.Index != nil:
		keys = make([]Key, len(t.Index))
		copy(keys, t.Index)
	case t.Dates != nil && t.Tickers != nil:
		if len(t.Dates) != len(t.Tickers) {
			return nil, invalid("date column has %d rows, ticker column has %d", len(t.Dates), len(t.Tickers))
		}
		keys = make([]Key, len(t.Dates))
		for i := range t.Dates {
			keys[i] = Key{Date: t.Dates[i], Ticker: t.Tickers[i]}
		}
	default:
		return nil, ErrMissingKey
	}

	for name, col := range t.Columns {
		if name == LevelDate || name == LevelTicker {
			return nil, invalid("column %q collides with a key level", name)
		}
		if len(col) != len(keys) {
			return nil, invalid("column %q has %d rows, expected %d", name, len(col), len(keys))
		}
	}

	perm := make([]int, len(keys))
	for i := range keys {
		keys[i].Date = Day(keys[i].Date)
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool { return keys[perm[a]].Less(keys[perm[b]]) })

	sortedKeys := make([]Key, len(keys))
	for i, src := range perm {
		sortedKeys[i] = keys[src]
	}
	idx, err := buildIndex(sortedKeys)
	if err != nil {
		return nil, err
	}

	p := &Panel{index: idx, columns: make(map[string][]float64, len(t.Columns))}
	for name, col := range t.Columns {
		values := make([]float64, len(col))
		for i, src := range perm {
			values[i] = col[src]
		}
		p.columns[name] = values
		p.order = append(p.order, name)
	}
	sort.Strings(p.order)
	return p, nil
}

// Index returns the panel key index.
func (p *Panel) Index() *Index { return p.index }

// Len returns the number of rows.
func (p *Panel) Len() int { return p.index.Len() }

// Columns returns the column names in sorted order.
func (p *Panel) Columns() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Has reports whether name is a column or a key level.
func (p *Panel) Has(name string) bool {
	if name == LevelDate || name == LevelTicker {
		return true
	}
	_, ok := p.columns[name]
	return ok
}

// Column returns a copy of a column as a series.
func (p *Panel) Column(name string) (Series, error) {
	col, ok := p.columns[name]
	if !ok {
		return Series{}, &ValidationError{Missing: []string{name}}
	}
	values := make([]float64, len(col))
	copy(values, col)
	return Series{Name: name, Index: p.index, Values: values}, nil
}

// ColumnOrUndefined returns the column or an all-NaN series when absent.
func (p *Panel) ColumnOrUndefined(name string) Series {
	s, err := p.Column(name)
	if err != nil {
		return Undefined(name, p.index)
	}
	return s
}

// WithColumn returns a new panel with s added or replaced. s is reindexed
// onto the panel keys.
func (p *Panel) WithColumn(s Series) (*Panel, error) {
	if s.Name == LevelDate || s.Name == LevelTicker || s.Name == "" {
		return nil, invalid("invalid column name %q", s.Name)
	}
	aligned := s.Reindex(p.index)
	out := &Panel{index: p.index, columns: make(map[string][]float64, len(p.columns)+1)}
	for name, col := range p.columns {
		out.columns[name] = col
	}
	values := make([]float64, len(aligned.Values))
	copy(values, aligned.Values)
	out.columns[s.Name] = values
	out.order = make([]string, 0, len(out.columns))
	for name := range out.columns {
		out.order = append(out.order, name)
	}
	sort.Strings(out.order)
	return out, nil
}

// Tickers returns the sorted distinct tickers.
func (p *Panel) Tickers() []string { return p.index.Tickers() }

// Dates returns the sorted distinct dates.
func (p *Panel) Dates() []time.Time { return p.index.Dates() }

// Table converts the panel back to its keyed table form.
func (p *Panel) Table() Table {
	t := Table{Index: p.index.Keys(), Columns: make(map[string][]float64, len(p.columns))}
	for name, col := range p.columns {
		values := make([]float64, len(col))
		copy(values, col)
		t.Columns[name] = values
	}
	return t
}

// Equal reports whether both panels hold the same keys and columns. NaN
// compares equal to NaN.
func (p *Panel) Equal(o *Panel) bool {
	if !p.index.Equal(o.index) || len(p.order) != len(o.order) {
		return false
	}
	for name, col := range p.columns {
		other, ok := o.columns[name]
		if !ok {
			return false
		}
		for i := range col {
			if math.Float64bits(col[i]) != math.Float64bits(other[i]) &&
				!(math.IsNaN(col[i]) && math.IsNaN(other[i])) {
				return false
			}
		}
	}
	return true
}

// Fingerprint is a content hash of keys and columns, stable across
// processes. It identifies a panel in cache keys.
func (p *Panel) Fingerprint() string {
	h := sha256.New()
	var buf [8]byte
	for _, k := range p.index.keys {
		binary.LittleEndian.PutUint64(buf[:], uint64(k.Date.Unix()))
		h.Write(buf[:])
		h.Write([]byte(k.Ticker))
		h.Write([]byte{0})
	}
	for _, name := range p.order {
		h.Write([]byte(name))
		h.Write([]byte{0})
		for _, v := range p.columns[name] {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
