package formulas

import (
	"math"
)

// CalculateSharpeRatio calculates the annualized Sharpe ratio.
//
// Sharpe Ratio Formula:
//
//	Sharpe = (Portfolio Return - Risk-free Rate) / Standard Deviation of Returns
//	Annualized: Sharpe × sqrt(252) for daily returns
//
// Args:
//
//	returns: Array of periodic returns (daily, monthly, etc.)
//	riskFreeRate: Risk-free rate (annual, as decimal, e.g., 0.02 for 2%)
//	periodsPerYear: Number of periods per year (252 for daily, 12 for monthly)
//
// Returns:
//
//	Sharpe ratio or nil if insufficient data
func CalculateSharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) *float64 {
	if len(returns) < 2 {
		return nil
	}

	meanReturn := Mean(returns)

	stdDev := StdDev(returns)
	if stdDev == 0 {
		return nil
	}

	periodicRiskFree := riskFreeRate / float64(periodsPerYear)

	sharpe := (meanReturn - periodicRiskFree) / stdDev

	annualizedSharpe := sharpe * math.Sqrt(float64(periodsPerYear))

	return &annualizedSharpe
}

// CalculateSortinoRatio calculates the Sortino Ratio (downside deviation version of Sharpe)
// Only considers downside volatility (returns below the target/MAR)
func CalculateSortinoRatio(returns []float64, riskFreeRate float64, targetReturn float64, periodsPerYear int) *float64 {
	if len(returns) < 2 {
		return nil
	}

	meanReturn := Mean(returns)
	periodicMAR := targetReturn / float64(periodsPerYear)

	var downsideSquaredSum float64
	downsideCount := 0
	for _, ret := range returns {
		if ret < periodicMAR {
			deviation := ret - periodicMAR
			downsideSquaredSum += deviation * deviation
			downsideCount++
		}
	}
	if downsideCount == 0 {
		return nil
	}

	downsideDeviation := math.Sqrt(downsideSquaredSum / float64(downsideCount))
	if downsideDeviation == 0 {
		return nil
	}

	periodicRiskFree := riskFreeRate / float64(periodsPerYear)
	sortino := (meanReturn - periodicRiskFree) / downsideDeviation
	annualizedSortino := sortino * math.Sqrt(float64(periodsPerYear))

	return &annualizedSortino
}

// CalculateCalmarRatio calculates |annualized return / max drawdown|.
// Returns 0 when the drawdown is zero.
func CalculateCalmarRatio(annualReturn, maxDrawdown float64) float64 {
	if maxDrawdown == 0 {
		return 0
	}
	return math.Abs(annualReturn / maxDrawdown)
}

// TrackingError calculates the annualized standard deviation of the
// difference between portfolio and benchmark periodic returns.
// Returns nil when the series differ in length or are too short.
func TrackingError(portfolio, benchmark []float64, periodsPerYear int) *float64 {
	if len(portfolio) != len(benchmark) || len(portfolio) < 2 {
		return nil
	}

	diffs := make([]float64, len(portfolio))
	for i := range portfolio {
		diffs[i] = portfolio[i] - benchmark[i]
	}

	te := StdDev(diffs) * math.Sqrt(float64(periodsPerYear))
	return &te
}

// CalculateInformationRatio calculates alpha / tracking error.
// Returns 0 when the tracking error is degenerate.
func CalculateInformationRatio(alpha float64, trackingError float64) float64 {
	if trackingError <= 0 {
		return 0
	}
	return alpha / trackingError
}

// AnnualizeReturn converts a cumulative growth factor over n periods into
// an annualized rate: growth^(periodsPerYear/n) - 1.
func AnnualizeReturn(growth float64, n, periodsPerYear int) float64 {
	if n <= 0 || growth <= 0 {
		return 0
	}
	return math.Pow(growth, float64(periodsPerYear)/float64(n)) - 1
}
