// Package allocation combines scores, robustness, Kelly fractions and a
// correlation estimate into a constrained portfolio weight vector. Three
// variants share one interface: KellyConstrained (default), EqualWeight
// and RiskParity.
package allocation

import (
	"sort"

	"github.com/aristath/quantfolio/internal/domain"
)

// Method identifiers carried in AllocationResult.Method.
const (
	MethodKellyConstrained = "kelly_constrained"
	MethodEqualWeight      = "equal_weight"
	MethodRiskParity       = "risk_parity"
)

// Input carries everything an allocator needs for one rebalance date.
// Returns series are aligned daily returns over the training window.
type Input struct {
	Tickers     []string
	Kelly       map[string]domain.KellyResult
	Scores      map[string]domain.FactorScore
	Returns     map[string][]float64
	Volatility  map[string]float64
	Sectors     map[string]string
	PrevWeights map[string]float64
}

// Constraints are the hard limits enforced on every allocation.
type Constraints struct {
	MaxNameWeight     float64
	MaxSectorWeight   float64
	TurnoverBudget    float64
	TargetGross       float64
	CorrelationTarget float64
	ShrinkageDelta    float64
}

// Allocator produces a constrained weight vector for one rebalance.
type Allocator interface {
	Allocate(in Input) (domain.AllocationResult, error)
	Method() string
}

// minEligible is the smallest ticker set worth allocating: a single-name
// portfolio is degenerate and refused.
const minEligible = 2

// infeasibleResult is the explicit empty allocation for < 2 eligible names.
func infeasibleResult(method, reason string) domain.AllocationResult {
	return domain.AllocationResult{
		Weights:  map[string]float64{},
		Method:   method,
		Feasible: false,
		Warnings: []string{reason},
	}
}

// RankTickers orders tickers by score descending, breaking ties by higher
// robustness, then lower realized volatility, then name for determinism.
func RankTickers(tickers []string, scores map[string]domain.FactorScore, volatility map[string]float64) []string {
	ranked := append([]string(nil), tickers...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		sa, sb := scores[a].Composite, scores[b].Composite
		if sa != sb {
			return sa > sb
		}
		ra, rb := robustnessOrDefault(scores[a]), robustnessOrDefault(scores[b])
		if ra != rb {
			return ra > rb
		}
		va, vb := volatility[a], volatility[b]
		if va != vb {
			return va < vb
		}
		return a < b
	})
	return ranked
}

// robustnessOrDefault treats missing robustness as neutral 0.5.
func robustnessOrDefault(s domain.FactorScore) float64 {
	if s.Robustness == nil {
		return 0.5
	}
	return *s.Robustness
}
