package scoring

import (
	"math"

	"github.com/aristath/quantfolio/internal/domain"
	"github.com/aristath/quantfolio/internal/panel"
	"github.com/aristath/quantfolio/pkg/formulas"
)

// robustness measures score stability by recomputing each ticker's
// composite over equal sub-windows of the view. The score is 1/(1+CV) of
// the sub-window composites, in (0, 1]. Tickers with composites in fewer
// than 3 usable sub-windows get nil.
func (e *Engine) robustness(view *panel.View, regime domain.Regime) map[string]*float64 {
	subWindows := e.cfg.SubWindows
	if subWindows < 3 {
		subWindows = 3
	}
	width := view.Len() / subWindows
	if width < e.cfg.MinSubWindowDays {
		return map[string]*float64{}
	}

	samples := make(map[string][]float64)
	for i := 0; i < subWindows; i++ {
		lo := i * width
		hi := lo + width
		if i == subWindows-1 {
			hi = view.Len()
		}
		sub, err := view.Slice(lo, hi)
		if err != nil {
			continue
		}
		for ticker, fs := range e.scoreWindow(sub, regime) {
			samples[ticker] = append(samples[ticker], fs.Composite)
		}
	}

	out := make(map[string]*float64, len(samples))
	for ticker, composites := range samples {
		if len(composites) < 3 {
			continue
		}
		mean := formulas.Mean(composites)
		if mean <= 0 {
			continue
		}
		cv := formulas.StdDev(composites) / mean
		r := 1 / (1 + math.Abs(cv))
		out[ticker] = &r
	}
	return out
}
