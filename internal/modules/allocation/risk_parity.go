package allocation

import (
	"math"

	"github.com/aristath/quantfolio/internal/domain"
	"github.com/aristath/quantfolio/pkg/formulas"
)

// RiskParity seeds weights at inverse realized volatility, tilted by the
// composite score and the robustness multiplier, then applies the shared
// constraint pipeline.
type RiskParity struct {
	cons Constraints
}

// NewRiskParity creates a risk-parity allocator.
func NewRiskParity(cons Constraints) *RiskParity {
	return &RiskParity{cons: cons}
}

// Method returns the allocator identifier.
func (a *RiskParity) Method() string { return MethodRiskParity }

// Allocate seeds each ticker at (1/vol) × (score/100) × robustness.
// Tickers without a usable volatility estimate get the cross-sectional
// median volatility so they are neither favored nor excluded.
func (a *RiskParity) Allocate(in Input) (domain.AllocationResult, error) {
	if len(in.Tickers) < minEligible {
		return infeasibleResult(a.Method(), "fewer than 2 eligible tickers"), nil
	}

	fallbackVol := medianVolatility(in)

	seeds := make(map[string]float64, len(in.Tickers))
	for _, ticker := range in.Tickers {
		vol := in.Volatility[ticker]
		if vol <= 0 || math.IsNaN(vol) {
			vol = fallbackVol
		}
		score := in.Scores[ticker]
		seeds[ticker] = (1 / vol) * (score.Composite / 100) * robustnessOrDefault(score)
	}

	return applyConstraints(seeds, in, a.cons, a.Method()), nil
}

func medianVolatility(in Input) float64 {
	var vols []float64
	for _, ticker := range in.Tickers {
		if v := in.Volatility[ticker]; v > 0 && !math.IsNaN(v) {
			vols = append(vols, v)
		}
	}
	if len(vols) == 0 {
		return 0.20
	}
	return formulas.Median(vols)
}
