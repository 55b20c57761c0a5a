package allocation

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// correlationPenalties computes a multiplicative weight penalty per ticker
// from a shrunk correlation matrix of the training-window returns.
//
// The matrix is shrunk toward identity by delta to stabilize the estimate.
// A ticker whose highest pairwise correlation exceeds the target is scaled
// down linearly toward zero at perfect correlation, halved again beyond
// 0.8, and floored at 0.1 so no name is eliminated by correlation alone.
func correlationPenalties(tickers []string, returns map[string][]float64, target, delta float64) map[string]float64 {
	penalties := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		penalties[t] = 1.0
	}
	if len(tickers) < 2 {
		return penalties
	}

	// Align on the shortest series.
	minLen := math.MaxInt32
	for _, t := range tickers {
		if len(returns[t]) < minLen {
			minLen = len(returns[t])
		}
	}
	if minLen < 2 {
		return penalties
	}

	data := mat.NewDense(minLen, len(tickers), nil)
	for j, t := range tickers {
		series := returns[t]
		series = series[len(series)-minLen:]
		for i, v := range series {
			data.Set(i, j, v)
		}
	}

	corr := mat.NewSymDense(len(tickers), nil)
	stat.CorrelationMatrix(corr, data, nil)

	// Shrink toward identity.
	n := len(tickers)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := (1 - delta) * corr.At(i, j)
			if i == j {
				v += delta
			}
			corr.SetSym(i, j, v)
		}
	}

	for i, t := range tickers {
		maxCorr := 0.0
		for j := range tickers {
			if i == j {
				continue
			}
			if c := math.Abs(corr.At(i, j)); c > maxCorr {
				maxCorr = c
			}
		}
		if maxCorr <= target {
			continue
		}
		penalty := 1 - (maxCorr-target)/(1-target)
		if maxCorr > 0.8 {
			penalty *= 0.5
		}
		penalties[t] = math.Max(0.1, penalty)
	}

	return penalties
}
