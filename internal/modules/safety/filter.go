// Package safety gates tickers on liquidity and data quality before they
// are eligible for sizing or allocation. The gate is re-evaluated every
// rebalance; a previously safe ticker can become unsafe.
package safety

import (
	"fmt"

	"github.com/aristath/quantfolio/internal/panel"
	"github.com/aristath/quantfolio/pkg/formulas"
)

const volumeWindow = 30

// Filter rejects tickers below a liquidity floor or with too many missing
// observations in the window.
type Filter struct {
	// MinAvgVolume is the 30-day average volume floor in shares.
	MinAvgVolume float64
	// MaxMissingFrac is the tolerated fraction of zero-volume or
	// gap-filled bars in the window.
	MaxMissingFrac float64
}

// NewFilter creates a safety filter.
func NewFilter(minAvgVolume, maxMissingFrac float64) *Filter {
	return &Filter{
		MinAvgVolume:   minAvgVolume,
		MaxMissingFrac: maxMissingFrac,
	}
}

// Check reports whether a ticker passes the gate for this window, with a
// human-readable reason when it does not.
func (f *Filter) Check(view *panel.View, ticker string) (bool, string) {
	volumes := view.Volumes(ticker)
	if volumes == nil {
		return false, "unknown ticker"
	}
	if len(volumes) < volumeWindow {
		return false, fmt.Sprintf("only %d bars, need %d", len(volumes), volumeWindow)
	}

	recent := volumes[len(volumes)-volumeWindow:]
	avg := formulas.Mean(recent)
	if avg < f.MinAvgVolume {
		return false, fmt.Sprintf("30d avg volume %.0f below floor %.0f", avg, f.MinAvgVolume)
	}

	missing := view.FilledCount(ticker)
	for _, v := range view.Volumes(ticker) {
		if v == 0 {
			missing++
		}
	}
	frac := float64(missing) / float64(view.Len())
	if frac > f.MaxMissingFrac {
		return false, fmt.Sprintf("missing/zero fraction %.2f exceeds %.2f", frac, f.MaxMissingFrac)
	}

	return true, ""
}
