package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// CalculateRSI calculates the Relative Strength Index
//
// RSI Formula:
//
//	RSI = 100 - (100 / (1 + RS))
//	where RS = Average Gain / Average Loss over N periods
//
// Returns the current RSI value (0-100) or nil if insufficient data.
func CalculateRSI(closes []float64, length int) *float64 {
	if len(closes) < length+1 {
		return nil
	}

	rsi := talib.Rsi(closes, length)

	if len(rsi) > 0 && !math.IsNaN(rsi[len(rsi)-1]) {
		result := rsi[len(rsi)-1]
		return &result
	}

	return nil
}

// CalculateBollingerPercentB calculates Bollinger %B for the last bar:
// (price - lower band) / (upper band - lower band). 0 means the price sits
// at the lower band, 1 at the upper band, 0.5 at the moving average.
// Returns nil when there is insufficient data or a flat band.
func CalculateBollingerPercentB(closes []float64, length int, numStd float64) *float64 {
	if len(closes) < length {
		return nil
	}

	upper, _, lower := talib.BBands(closes, length, numStd, numStd, talib.SMA)
	last := len(closes) - 1
	width := upper[last] - lower[last]
	if math.IsNaN(width) || width <= 0 {
		return nil
	}

	pctB := (closes[last] - lower[last]) / width
	return &pctB
}
