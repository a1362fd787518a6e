package universe

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

const (
	// Validation thresholds
	maxPriceMultiplier    = 10.0   // Price > 10x average is abnormal
	minPriceMultiplier    = 0.1    // Price < 0.1x average is abnormal
	maxPriceChangePercent = 1000.0 // >1000% change is a spike
	minPriceChangePercent = -90.0  // <-90% change is a crash
	contextWindowDays     = 30     // Use last 30 bars for context
)

// InterpolationLog records when a price was interpolated
type InterpolationLog struct {
	Ticker            string    `json:"ticker"`
	Date              time.Time `json:"date"`
	OriginalClose     float64   `json:"original_close"`
	InterpolatedClose float64   `json:"interpolated_close"`
	Method            string    `json:"method"` // "linear", "forward_fill", "backward_fill", "no_interpolation"
	Reason            string    `json:"reason"`
}

// PriceValidator validates and interpolates abnormal prices
type PriceValidator struct {
	log zerolog.Logger
}

// NewPriceValidator creates a new price validator
func NewPriceValidator(log zerolog.Logger) *PriceValidator {
	return &PriceValidator{
		log: log.With().Str("component", "price_validator").Logger(),
	}
}

// ValidatePrice checks a bar against OHLC consistency and its recent
// history. context holds preceding valid bars, most recent first.
// Returns (isValid, reason)
func (v *PriceValidator) ValidatePrice(price DailyPrice, context []DailyPrice) (bool, string) {
	// 1. OHLC consistency checks (always applied, no context needed)
	if price.High < price.Low {
		return false, "high_below_low"
	}
	if price.High < price.Open {
		return false, "high_below_open"
	}
	if price.High < price.Close {
		return false, "high_below_close"
	}
	if price.Low > price.Open {
		return false, "low_above_open"
	}
	if price.Low > price.Close {
		return false, "low_above_close"
	}
	if price.Close <= 0 {
		return false, "non_positive_close"
	}

	if len(context) == 0 {
		return true, ""
	}

	// 2. Day-over-day change takes priority over average checks
	prevClose := context[0].Close
	if prevClose > 0 {
		changePercent := ((price.Close - prevClose) / prevClose) * 100.0
		if changePercent > maxPriceChangePercent {
			return false, "spike_detected"
		}
		if changePercent < minPriceChangePercent {
			return false, "crash_detected"
		}
	}

	// 3. Relative to the recent average
	recent := context
	if len(recent) > contextWindowDays {
		recent = recent[:contextWindowDays]
	}
	var sum float64
	for _, p := range recent {
		sum += p.Close
	}
	avgPrice := sum / float64(len(recent))
	if price.Close > avgPrice*maxPriceMultiplier {
		return false, "price_too_high"
	}
	if price.Close < avgPrice*minPriceMultiplier {
		return false, "price_too_low"
	}
	return true, ""
}

// InterpolatePrice replaces an abnormal bar using the nearest valid bars
// around it. Volume and date are preserved.
// Returns (interpolatedPrice, method)
func (v *PriceValidator) InterpolatePrice(price DailyPrice, before, after *DailyPrice) (DailyPrice, string) {
	interpolated := price

	switch {
	case before != nil && after != nil:
		total := after.Date.Sub(before.Date).Hours()
		if total <= 0 {
			break
		}
		frac := price.Date.Sub(before.Date).Hours() / total
		interpolated.Close = before.Close + (after.Close-before.Close)*frac

		// Carry the average intraday shape of the neighbours
		ratio := func(a, b float64) float64 { return (a/before.Close + b/after.Close) / 2.0 }
		interpolated.Open = interpolated.Close * ratio(before.Open, after.Open)
		interpolated.High = interpolated.Close * ratio(before.High, after.High)
		interpolated.Low = interpolated.Close * ratio(before.Low, after.Low)
		ensureOHLCConsistency(&interpolated)
		return interpolated, "linear"

	case before != nil:
		interpolated.Open, interpolated.High, interpolated.Low, interpolated.Close = before.Open, before.High, before.Low, before.Close
		return interpolated, "forward_fill"

	case after != nil:
		interpolated.Open, interpolated.High, interpolated.Low, interpolated.Close = after.Open, after.High, after.Low, after.Close
		return interpolated, "backward_fill"
	}

	ensureOHLCConsistency(&interpolated)
	return interpolated, "no_interpolation"
}

// ValidateAndInterpolate cleans the bars of one ticker, given in date
// order. Abnormal bars are replaced, never dropped.
// Returns (validatedPrices, interpolationLogs)
func (v *PriceValidator) ValidateAndInterpolate(prices []DailyPrice) ([]DailyPrice, []InterpolationLog) {
	result := make([]DailyPrice, 0, len(prices))
	logs := []InterpolationLog{}

	// context is the valid history, most recent first
	var context []DailyPrice
	valid := make([]bool, len(prices))
	for i, price := range prices {
		ok, _ := v.ValidatePrice(price, context)
		valid[i] = ok
		if ok {
			context = append([]DailyPrice{price}, context...)
			if len(context) > contextWindowDays {
				context = context[:contextWindowDays]
			}
		}
	}

	context = nil
	for i, price := range prices {
		if valid[i] {
			result = append(result, price)
			context = append([]DailyPrice{price}, context...)
			if len(context) > contextWindowDays {
				context = context[:contextWindowDays]
			}
			continue
		}
		_, reason := v.ValidatePrice(price, context)

		var before, after *DailyPrice
		if len(context) > 0 {
			before = &context[0]
		}
		for j := i + 1; j < len(prices); j++ {
			if valid[j] {
				after = &prices[j]
				break
			}
		}

		interpolated, method := v.InterpolatePrice(price, before, after)
		logs = append(logs, InterpolationLog{
			Ticker:            price.Ticker,
			Date:              price.Date,
			OriginalClose:     price.Close,
			InterpolatedClose: interpolated.Close,
			Method:            method,
			Reason:            reason,
		})
		v.log.Warn().
			Str("ticker", price.Ticker).
			Time("date", price.Date).
			Float64("original_close", price.Close).
			Float64("interpolated_close", interpolated.Close).
			Str("method", method).
			Str("reason", reason).
			Msg("Interpolated abnormal price")
		result = append(result, interpolated)
	}
	return result, logs
}

// Clean runs ValidateAndInterpolate per ticker. Output is ordered by ticker
// then date.
func (v *PriceValidator) Clean(prices []DailyPrice) ([]DailyPrice, []InterpolationLog) {
	sorted := make([]DailyPrice, len(prices))
	copy(sorted, prices)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Ticker != sorted[j].Ticker {
			return sorted[i].Ticker < sorted[j].Ticker
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})

	out := make([]DailyPrice, 0, len(sorted))
	var logs []InterpolationLog
	for start := 0; start < len(sorted); {
		end := start
		for end < len(sorted) && sorted[end].Ticker == sorted[start].Ticker {
			end++
		}
		cleaned, l := v.ValidateAndInterpolate(sorted[start:end])
		out = append(out, cleaned...)
		logs = append(logs, l...)
		start = end
	}
	return out, logs
}

// Helper function to ensure OHLC consistency
func ensureOHLCConsistency(price *DailyPrice) {
	// Ensure High >= all
	price.High = math.Max(price.High, price.Open)
	price.High = math.Max(price.High, price.Close)

	// Ensure Low <= all
	price.Low = math.Min(price.Low, price.Open)
	price.Low = math.Min(price.Low, price.Close)

	// Ensure High >= Low
	if price.High < price.Low {
		price.High = price.Low
	}
}
