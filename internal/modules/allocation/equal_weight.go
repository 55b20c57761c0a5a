package allocation

import (
	"github.com/aristath/quantfolio/internal/domain"
)

// EqualWeight allocates the target gross evenly across eligible tickers.
// The constraint pipeline still applies, so sector caps and the turnover
// budget hold against the previous weights.
type EqualWeight struct {
	cons Constraints
}

// NewEqualWeight creates an equal-weight allocator.
func NewEqualWeight(cons Constraints) *EqualWeight {
	return &EqualWeight{cons: cons}
}

// Method returns the allocator identifier.
func (a *EqualWeight) Method() string { return MethodEqualWeight }

// Allocate assigns each eligible ticker an identical seed weight.
func (a *EqualWeight) Allocate(in Input) (domain.AllocationResult, error) {
	if len(in.Tickers) < minEligible {
		return infeasibleResult(a.Method(), "fewer than 2 eligible tickers"), nil
	}

	seeds := make(map[string]float64, len(in.Tickers))
	for _, ticker := range in.Tickers {
		seeds[ticker] = 1
	}

	return applyConstraints(seeds, in, a.cons, a.Method()), nil
}
