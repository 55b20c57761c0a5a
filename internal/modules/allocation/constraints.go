package allocation

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/quantfolio/internal/domain"
)

const weightEpsilon = 1e-9

// applyConstraints runs the shared hard-constraint pipeline over seed
// weights: long-only clip, per-name cap, per-sector cap, turnover budget
// against the previous weights, then renormalization to the target gross.
// Jointly infeasible constraints degrade to equal weight with a flag
// instead of failing.
func applyConstraints(seeds map[string]float64, in Input, cons Constraints, method string) domain.AllocationResult {
	result := domain.AllocationResult{
		Method:   method,
		Feasible: true,
	}

	weights := make(map[string]float64, len(seeds))
	clippedNegative := false
	for ticker, w := range seeds {
		if w < 0 {
			clippedNegative = true
			w = 0
		}
		weights[ticker] = w
	}
	if clippedNegative {
		result.Report = append(result.Report, domain.ConstraintBinding{
			Constraint: "long_only",
			Scope:      "portfolio",
			Limit:      0,
			Bound:      true,
		})
	}

	// All-zero seeds carry no ranking information; fall back to equal.
	if sum(weights) <= weightEpsilon {
		return equalWeightFallback(in, cons, method, "zero seed weights")
	}

	weights, ok := enforceCaps(weights, in, cons, &result)
	if !ok {
		return equalWeightFallback(in, cons, method, "name/sector caps jointly infeasible")
	}

	weights = enforceTurnover(weights, in.PrevWeights, cons.TurnoverBudget, &result)

	// Renormalize, then re-check turnover once: scaling after truncation
	// can push it back over the budget.
	weights = scaleTo(weights, cons.TargetGross)
	if turnover(weights, in.PrevWeights) > cons.TurnoverBudget+1e-6 {
		weights = enforceTurnover(weights, in.PrevWeights, cons.TurnoverBudget, &result)
		if s := sum(weights); math.Abs(s-cons.TargetGross) > 0.01 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("gross %.4f off target after turnover truncation", s))
		}
	}

	result.Weights = weights
	return result
}

// EnforceTurnoverBudget truncates the largest weight changes against prev
// until the budget holds, then renormalizes to gross and re-truncates once
// if the scaling pushed turnover back over. The backtester calls this
// during the ordered merge, where the true previous weights are first
// known; decisions themselves are computed in parallel without them.
func EnforceTurnoverBudget(weights, prev map[string]float64, budget, gross float64) (map[string]float64, domain.ConstraintBinding) {
	var scratch domain.AllocationResult
	out := enforceTurnover(weights, prev, budget, &scratch)
	binding := scratch.Report[len(scratch.Report)-1]
	if !binding.Bound {
		return weights, binding
	}

	out = scaleTo(out, gross)
	if turnover(out, prev) > budget+1e-6 {
		out = enforceTurnover(out, prev, budget, &scratch)
	}
	return out, binding
}

// equalWeightFallback is the documented heuristic for infeasible
// constraint sets: equal weight among eligible names, flagged.
func equalWeightFallback(in Input, cons Constraints, method, reason string) domain.AllocationResult {
	weights := make(map[string]float64, len(in.Tickers))
	w := cons.TargetGross / float64(len(in.Tickers))
	for _, ticker := range in.Tickers {
		weights[ticker] = w
	}
	return domain.AllocationResult{
		Weights:         weights,
		Method:          method,
		Feasible:        true,
		FallbackApplied: true,
		Warnings:        []string{"equal-weight fallback: " + reason},
	}
}

// enforceCaps water-fills weights to the target gross under per-name caps,
// then iteratively scales down sectors over their aggregate cap. Returns
// false when the caps cannot jointly absorb the target gross.
func enforceCaps(weights map[string]float64, in Input, cons Constraints, result *domain.AllocationResult) (map[string]float64, bool) {
	limits := make(map[string]float64, len(weights))
	for ticker := range weights {
		limits[ticker] = cons.MaxNameWeight
	}

	reportedName := map[string]bool{}
	reportedSector := map[string]bool{}

	for iter := 0; iter < 8; iter++ {
		filled, capped, ok := waterFill(weights, cons.TargetGross, limits)
		if !ok {
			return nil, false
		}
		for _, ticker := range capped {
			if !reportedName[ticker] && limits[ticker] == cons.MaxNameWeight {
				reportedName[ticker] = true
				result.Report = append(result.Report, domain.ConstraintBinding{
					Constraint: "name_cap",
					Scope:      ticker,
					Limit:      cons.MaxNameWeight,
					Value:      filled[ticker],
					Slack:      cons.MaxNameWeight - filled[ticker],
					Bound:      true,
				})
			}
		}
		weights = filled

		sectorSums := make(map[string]float64)
		for ticker, w := range weights {
			sectorSums[sectorOf(in, ticker)] += w
		}

		overCap := false
		for sector, s := range sectorSums {
			if s <= cons.MaxSectorWeight+weightEpsilon {
				continue
			}
			overCap = true
			if !reportedSector[sector] {
				reportedSector[sector] = true
				result.Report = append(result.Report, domain.ConstraintBinding{
					Constraint: "sector_cap",
					Scope:      sector,
					Limit:      cons.MaxSectorWeight,
					Value:      s,
					Slack:      cons.MaxSectorWeight - s,
					Bound:      true,
				})
			}
			scale := cons.MaxSectorWeight / s
			for ticker := range weights {
				if sectorOf(in, ticker) != sector {
					continue
				}
				weights[ticker] *= scale
				// Freeze capped-sector members so redistributed mass
				// flows to other sectors only.
				limits[ticker] = weights[ticker]
			}
		}
		if !overCap {
			return weights, true
		}
	}

	return nil, false
}

// waterFill scales weights proportionally to reach gross, clamping each
// name at its limit and redistributing the excess among unclamped names.
func waterFill(weights map[string]float64, gross float64, limits map[string]float64) (map[string]float64, []string, bool) {
	out := make(map[string]float64, len(weights))
	free := make(map[string]float64, len(weights))
	for ticker, w := range weights {
		if w > 0 {
			free[ticker] = w
		} else {
			out[ticker] = 0
		}
	}

	var capped []string
	remaining := gross
	for len(free) > 0 {
		var freeSum float64
		for _, w := range free {
			freeSum += w
		}
		if freeSum <= weightEpsilon {
			break
		}
		scale := remaining / freeSum

		clamped := false
		for ticker, w := range free {
			if w*scale > limits[ticker]+weightEpsilon {
				out[ticker] = limits[ticker]
				remaining -= limits[ticker]
				capped = append(capped, ticker)
				delete(free, ticker)
				clamped = true
			}
		}
		if !clamped {
			for ticker, w := range free {
				out[ticker] = w * scale
			}
			sort.Strings(capped)
			return out, capped, true
		}
		if remaining < -weightEpsilon {
			return nil, nil, false
		}
	}

	// Every name hit its limit; feasible only if the caps absorbed gross.
	if remaining > 1e-6 {
		return nil, nil, false
	}
	sort.Strings(capped)
	return out, capped, true
}

// enforceTurnover truncates the largest weight changes first until the
// turnover budget holds: each |change| is clipped at the level lambda
// where the clipped changes sum to the budget.
func enforceTurnover(weights, prev map[string]float64, budget float64, result *domain.AllocationResult) map[string]float64 {
	total := turnover(weights, prev)

	binding := domain.ConstraintBinding{
		Constraint: "turnover_budget",
		Scope:      "portfolio",
		Limit:      budget,
		Value:      total,
		Slack:      budget - total,
		Bound:      total > budget+weightEpsilon,
	}
	result.Report = append(result.Report, binding)
	if !binding.Bound {
		return weights
	}

	names := unionKeys(weights, prev)
	deltas := make([]float64, len(names))
	for i, ticker := range names {
		deltas[i] = math.Abs(weights[ticker] - prev[ticker])
	}

	lambda := clipLevel(deltas, budget)

	out := make(map[string]float64, len(names))
	for _, ticker := range names {
		delta := weights[ticker] - prev[ticker]
		clipped := math.Min(math.Abs(delta), lambda)
		w := prev[ticker] + math.Copysign(clipped, delta)
		if w > weightEpsilon {
			out[ticker] = w
		}
	}
	return out
}

// clipLevel finds lambda such that sum(min(delta_i, lambda)) == budget.
func clipLevel(deltas []float64, budget float64) float64 {
	sorted := append([]float64(nil), deltas...)
	sort.Float64s(sorted)

	var below float64
	for i, d := range sorted {
		above := len(sorted) - i
		// If all remaining deltas were clipped at d, the total would be:
		if below+float64(above)*d >= budget {
			return (budget - below) / float64(above)
		}
		below += d
	}
	// Budget not binding at any level (caller already checked it was).
	return sorted[len(sorted)-1]
}

func scaleTo(weights map[string]float64, gross float64) map[string]float64 {
	s := sum(weights)
	if s <= weightEpsilon {
		return weights
	}
	out := make(map[string]float64, len(weights))
	factor := gross / s
	for ticker, w := range weights {
		if w > weightEpsilon {
			out[ticker] = w * factor
		}
	}
	return out
}

func sectorOf(in Input, ticker string) string {
	if s, ok := in.Sectors[ticker]; ok && s != "" {
		return s
	}
	return "Unknown"
}

func sum(weights map[string]float64) float64 {
	var s float64
	for _, w := range weights {
		s += w
	}
	return s
}

func turnover(weights, prev map[string]float64) float64 {
	var t float64
	for _, ticker := range unionKeys(weights, prev) {
		t += math.Abs(weights[ticker] - prev[ticker])
	}
	return t
}

func unionKeys(a, b map[string]float64) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var names []string
	for k := range a {
		if !seen[k] {
			seen[k] = true
			names = append(names, k)
		}
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}
