package panel

import (
	"sort"
	"time"
)

// Key is the compound (date, ticker) row key.
type Key struct {
	Date   time.Time
	Ticker string
}

// Less orders keys by date, then ticker.
func (k Key) Less(o Key) bool {
	if !k.Date.Equal(o.Date) {
		return k.Date.Before(o.Date)
	}
	return k.Ticker < o.Ticker
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Index is an immutable, sorted, duplicate-free set of keys together with
// the two partitions every computation needs: rows per ticker (date order)
// and rows per date (ticker order).
type Index struct {
	keys     []Key
	pos      map[Key]int
	tickers  []string
	byTicker map[string][]int
	dates    []time.Time
	byDate   [][]int
}

// NewIndex sorts keys and builds an index. Dates are truncated to UTC days.
// Duplicate keys are a validation error.
func NewIndex(keys []Key) (*Index, error) {
	sorted := make([]Key, len(keys))
	for i, k := range keys {
		sorted[i] = Key{Date: Day(k.Date), Ticker: k.Ticker}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	return buildIndex(sorted)
}

// buildIndex expects keys already sorted and day-truncated.
func buildIndex(keys []Key) (*Index, error) {
	idx := &Index{
		keys:     keys,
		pos:      make(map[Key]int, len(keys)),
		byTicker: make(map[string][]int),
	}
	for i, k := range keys {
		if k.Ticker == "" {
			return nil, invalid("empty ticker at row %d", i)
		}
		if _, dup := idx.pos[k]; dup {
			return nil, invalid("duplicate key (%s, %s)", k.Date.Format("2006-01-02"), k.Ticker)
		}
		idx.pos[k] = i
		if _, seen := idx.byTicker[k.Ticker]; !seen {
			idx.tickers = append(idx.tickers, k.Ticker)
		}
		idx.byTicker[k.Ticker] = append(idx.byTicker[k.Ticker], i)

		if n := len(idx.dates); n == 0 || !idx.dates[n-1].Equal(k.Date) {
			idx.dates = append(idx.dates, k.Date)
			idx.byDate = append(idx.byDate, nil)
		}
		last := len(idx.byDate) - 1
		idx.byDate[last] = append(idx.byDate[last], i)
	}
	sort.Strings(idx.tickers)
	return idx, nil
}

// Len returns the number of rows.
func (idx *Index) Len() int { return len(idx.keys) }

// Key returns the key at row i.
func (idx *Index) Key(i int) Key { return idx.keys[i] }

// Keys returns a copy of all keys in order.
func (idx *Index) Keys() []Key {
	out := make([]Key, len(idx.keys))
	copy(out, idx.keys)
	return out
}

// Lookup returns the row of k.
func (idx *Index) Lookup(k Key) (int, bool) {
	i, ok := idx.pos[Key{Date: Day(k.Date), Ticker: k.Ticker}]
	return i, ok
}

// Tickers returns the sorted distinct tickers.
func (idx *Index) Tickers() []string {
	out := make([]string, len(idx.tickers))
	copy(out, idx.tickers)
	return out
}

// Rows returns the rows of one ticker in date order. The slice must not be
// modified.
func (idx *Index) Rows(ticker string) []int { return idx.byTicker[ticker] }

// Dates returns the sorted distinct dates.
func (idx *Index) Dates() []time.Time {
	out := make([]time.Time, len(idx.dates))
	copy(out, idx.dates)
	return out
}

// NumDates returns the number of distinct dates.
func (idx *Index) NumDates() int { return len(idx.dates) }

// CrossSection returns the rows sharing the d-th date, in ticker order. The
// slice must not be modified.
func (idx *Index) CrossSection(d int) []int { return idx.byDate[d] }

// Equal reports whether both indexes hold the same keys in the same order.
func (idx *Index) Equal(o *Index) bool {
	if idx == o {
		return true
	}
	if idx == nil || o == nil || len(idx.keys) != len(o.keys) {
		return false
	}
	for i := range idx.keys {
		if !idx.keys[i].Date.Equal(o.keys[i].Date) || idx.keys[i].Ticker != o.keys[i].Ticker {
			return false
		}
	}
	return true
}

// Union returns the sorted union of the given indexes. When all inputs are
// equal the first one is returned unchanged.
func Union(indexes ...*Index) *Index {
	if len(indexes) == 0 {
		idx, _ := buildIndex(nil)
		return idx
	}
	first := indexes[0]
	same := true
	for _, o := range indexes[1:] {
		if !first.Equal(o) {
			same = false
			break
		}
	}
	if same {
		return first
	}

	seen := make(map[Key]struct{})
	var keys []Key
	for _, idx := range indexes {
		for _, k := range idx.keys {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	// Input keys are unique and non-empty by construction.
	idx, _ := buildIndex(keys)
	return idx
}
