package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Variance(data, nil)
}

// Median calculates the median of a slice of float64 values
func Median(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// AnnualizedVolatility calculates annualized volatility from daily returns
// Formula: Std Dev of Daily Returns × sqrt(252 trading days)
func AnnualizedVolatility(dailyReturns []float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	return StdDev(dailyReturns) * math.Sqrt(252)
}

// CalculateReturns converts prices to percentage returns
// Returns[i] = (Price[i] - Price[i-1]) / Price[i-1]
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	return returns
}

// Correlation calculates the Pearson correlation coefficient between two datasets
func Correlation(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Correlation(x, y, nil)
}

// ZScores standardizes a cross-section of values. A zero-variance or empty
// cross-section yields all zeros (neutral), never NaN.
func ZScores(data []float64) []float64 {
	z := make([]float64, len(data))
	if len(data) == 0 {
		return z
	}
	mean := Mean(data)
	std := stat.StdDev(data, nil)
	if std == 0 || math.IsNaN(std) {
		return z
	}
	for i, v := range data {
		z[i] = (v - mean) / std
	}
	return z
}

// ScoreFromZ maps a z-score to the 0-100 score scale using a clipped linear
// mapping: z is clipped to ±clipZ, then 50 + z/clipZ*50.
func ScoreFromZ(z, clipZ float64) float64 {
	if clipZ <= 0 {
		return 50
	}
	z = math.Max(-clipZ, math.Min(clipZ, z))
	return 50 + (z/clipZ)*50
}

// TStat computes the t-statistic of the mean of a sample against zero.
// Returns 0 when the sample is degenerate.
func TStat(sample []float64) float64 {
	n := len(sample)
	if n < 2 {
		return 0
	}
	std := StdDev(sample)
	if std == 0 {
		return 0
	}
	return Mean(sample) / (std / math.Sqrt(float64(n)))
}
