package allocation

import (
	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/domain"
)

// KellyConstrained is the default allocator: Kelly fractions scaled by
// score and robustness, penalized for pairwise correlation, then pushed
// through the hard-constraint pipeline.
type KellyConstrained struct {
	cons Constraints
	log  zerolog.Logger
}

// NewKellyConstrained creates the default allocator.
func NewKellyConstrained(cons Constraints, log zerolog.Logger) *KellyConstrained {
	return &KellyConstrained{
		cons: cons,
		log:  log.With().Str("component", "kelly_allocator").Logger(),
	}
}

// Method returns the allocator identifier.
func (a *KellyConstrained) Method() string { return MethodKellyConstrained }

// Allocate seeds each ticker at kelly × (score/100) × robustness, applies
// the correlation penalty, then the constraint pipeline. Fewer than two
// eligible tickers yields an explicit empty, infeasible result.
func (a *KellyConstrained) Allocate(in Input) (domain.AllocationResult, error) {
	if len(in.Tickers) < minEligible {
		return infeasibleResult(a.Method(), "fewer than 2 eligible tickers"), nil
	}

	penalties := correlationPenalties(in.Tickers, in.Returns, a.cons.CorrelationTarget, a.cons.ShrinkageDelta)

	seeds := make(map[string]float64, len(in.Tickers))
	for _, ticker := range in.Tickers {
		score := in.Scores[ticker]
		seed := in.Kelly[ticker].Fraction * (score.Composite / 100) * robustnessOrDefault(score)
		seeds[ticker] = seed * penalties[ticker]
	}

	result := applyConstraints(seeds, in, a.cons, a.Method())
	if result.FallbackApplied {
		a.log.Warn().
			Err(&domain.OptimizationInfeasibleError{Reason: result.Warnings[0]}).
			Msg("Kelly allocation degraded to equal weight")
	}
	return result, nil
}
