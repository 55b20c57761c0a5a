// Package sizing converts a ticker's trailing return distribution into a
// capped, edge-maximizing fractional position size (fractional Kelly).
package sizing

import (
	"math"

	"github.com/aristath/quantfolio/internal/domain"
	"github.com/aristath/quantfolio/pkg/formulas"
)

const (
	// fallbackCap bounds the score-proportional fallback fraction.
	fallbackCap = 0.15
	// fallbackScale maps a perfect composite score to this fraction.
	fallbackScale = 0.20

	tradingDaysPerYear = 252
)

// Sizer computes Kelly fractions from daily excess returns.
type Sizer struct {
	// Cap clips the fraction, fractional Kelly against overbetting.
	Cap float64
	// MinSample is the smallest return sample sized with the estimator;
	// below it the score-proportional fallback applies.
	MinSample int
	// RiskFree is the annual risk-free rate used for excess returns.
	RiskFree float64
}

// NewSizer creates a position sizer.
func NewSizer(cap float64, minSample int, riskFree float64) *Sizer {
	return &Sizer{Cap: cap, MinSample: minSample, RiskFree: riskFree}
}

// Size computes the Kelly fraction for one ticker from its trailing daily
// returns: fraction = mean(excess) / variance(excess), clipped to [0, Cap].
// With fewer than MinSample observations the fraction falls back to a small
// size proportional to the composite score and the result is flagged.
//
// The estimator is monotonic: non-decreasing in mean excess return for
// fixed variance, non-increasing in variance for fixed mean.
func (s *Sizer) Size(ticker string, returns []float64, composite float64) domain.KellyResult {
	result := domain.KellyResult{
		Ticker:     ticker,
		SampleSize: len(returns),
	}

	if len(returns) < s.MinSample {
		result.Fallback = true
		result.Fraction = math.Min(fallbackCap, composite/100*fallbackScale)
		if result.Fraction < 0 {
			result.Fraction = 0
		}
		return result
	}

	dailyRF := s.RiskFree / tradingDaysPerYear
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - dailyRF
	}

	result.Edge = formulas.Mean(excess)
	result.Variance = formulas.Variance(excess)

	if result.Variance <= 0 {
		// Degenerate distribution: no basis for an edge estimate.
		result.Fraction = 0
		return result
	}

	fraction := result.Edge / result.Variance
	result.Fraction = math.Max(0, math.Min(s.Cap, fraction))
	return result
}
