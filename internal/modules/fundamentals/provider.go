// Package fundamentals defines the overlay interface for fundamental and
// sentiment scores supplied by an external model. Only a neutral provider is
// shipped; integrators plug in their own.
package fundamentals

import (
	"context"
	"time"
)

// Fundamental score keys.
const (
	FundQualityScore   = "fund_quality_score"
	FundValuationScore = "fund_valuation_score"
	FundRiskScore      = "fund_risk_score"
)

// Sentiment score keys.
const (
	NewsSentimentShortTerm  = "news_sentiment_short_term"
	NewsSentimentMediumTerm = "news_sentiment_medium_term"
	ControversyScore        = "controversy_score"
)

// FundamentalKeys and SentimentKeys list the keys every provider must return.
var (
	FundamentalKeys = []string{FundQualityScore, FundValuationScore, FundRiskScore}
	SentimentKeys   = []string{NewsSentimentShortTerm, NewsSentimentMediumTerm, ControversyScore}
)

// Scores maps score keys to values.
type Scores map[string]float64

// Provider supplies overlay scores as of a date.
type Provider interface {
	FundamentalScores(ctx context.Context, ticker string, asOf time.Time) (Scores, error)
	SentimentScores(ctx context.Context, ticker string, asOf time.Time) (Scores, error)
}

// FundamentalScoresBatch queries p for each ticker. The result is keyed by
// ticker; an empty ticker list yields an empty map.
func FundamentalScoresBatch(ctx context.Context, p Provider, tickers []string, asOf time.Time) (map[string]Scores, error) {
	return batch(ctx, tickers, func(ticker string) (Scores, error) {
		return p.FundamentalScores(ctx, ticker, asOf)
	})
}

// SentimentScoresBatch queries p for each ticker.
func SentimentScoresBatch(ctx context.Context, p Provider, tickers []string, asOf time.Time) (map[string]Scores, error) {
	return batch(ctx, tickers, func(ticker string) (Scores, error) {
		return p.SentimentScores(ctx, ticker, asOf)
	})
}

func batch(ctx context.Context, tickers []string, fetch func(string) (Scores, error)) (map[string]Scores, error) {
	out := make(map[string]Scores, len(tickers))
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := fetch(ticker)
		if err != nil {
			return nil, err
		}
		out[ticker] = s
	}
	return out, nil
}

// NeutralProvider returns zero for every key.
type NeutralProvider struct{}

// FundamentalScores implements Provider.
func (NeutralProvider) FundamentalScores(_ context.Context, _ string, _ time.Time) (Scores, error) {
	return zeros(FundamentalKeys), nil
}

// SentimentScores implements Provider.
func (NeutralProvider) SentimentScores(_ context.Context, _ string, _ time.Time) (Scores, error) {
	return zeros(SentimentKeys), nil
}

func zeros(keys []string) Scores {
	s := make(Scores, len(keys))
	for _, k := range keys {
		s[k] = 0
	}
	return s
}

// Overlay combines the fundamental scores into a single additive adjustment:
// quality plus valuation minus risk, averaged. Missing keys count as zero.
func Overlay(s Scores) float64 {
	return (s[FundQualityScore] + s[FundValuationScore] - s[FundRiskScore]) / 3
}
