package sizing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticReturns builds a deterministic return series with the requested
// mean and standard deviation by alternating around the mean.
func syntheticReturns(n int, mean, std float64) []float64 {
	rets := make([]float64, n)
	for i := range rets {
		if i%2 == 0 {
			rets[i] = mean + std
		} else {
			rets[i] = mean - std
		}
	}
	return rets
}

func TestSizeBasic(t *testing.T) {
	sizer := NewSizer(0.25, 20, 0.04)

	result := sizer.Size("AAA", syntheticReturns(252, 0.001, 0.01), 60)
	assert.Equal(t, "AAA", result.Ticker)
	assert.Equal(t, 252, result.SampleSize)
	assert.False(t, result.Fallback)
	assert.GreaterOrEqual(t, result.Fraction, 0.0)
	assert.LessOrEqual(t, result.Fraction, 0.25)
	assert.Greater(t, result.Variance, 0.0)
}

func TestSizeCapClipping(t *testing.T) {
	sizer := NewSizer(0.25, 20, 0.0)

	// Huge edge with tiny variance blows far past the cap.
	result := sizer.Size("AAA", syntheticReturns(100, 0.01, 0.001), 60)
	assert.Equal(t, 0.25, result.Fraction)
}

func TestSizeNegativeEdgeClipsToZero(t *testing.T) {
	sizer := NewSizer(0.25, 20, 0.04)

	result := sizer.Size("AAA", syntheticReturns(100, -0.002, 0.01), 60)
	assert.Equal(t, 0.0, result.Fraction)
	assert.Less(t, result.Edge, 0.0)
}

func TestSizeMonotonicInMean(t *testing.T) {
	sizer := NewSizer(0.25, 20, 0.04)

	prev := -1.0
	for _, mean := range []float64{0.0, 0.0002, 0.0005, 0.001, 0.002} {
		result := sizer.Size("AAA", syntheticReturns(252, mean, 0.01), 50)
		assert.GreaterOrEqual(t, result.Fraction, prev, "mean %v", mean)
		prev = result.Fraction
	}
}

func TestSizeMonotonicInVariance(t *testing.T) {
	sizer := NewSizer(0.25, 20, 0.04)

	prev := math.Inf(1)
	for _, std := range []float64{0.01, 0.04, 0.08, 0.12} {
		result := sizer.Size("AAA", syntheticReturns(252, 0.001, std), 50)
		assert.LessOrEqual(t, result.Fraction, prev, "std %v", std)
		prev = result.Fraction
	}
}

func TestSizeFallbackOnSmallSample(t *testing.T) {
	sizer := NewSizer(0.25, 20, 0.04)

	tests := []struct {
		name      string
		composite float64
		want      float64
	}{
		{"mid score", 50, 0.10},
		{"high score hits fallback cap", 90, 0.15},
		{"zero score", 0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sizer.Size("AAA", syntheticReturns(10, 0.001, 0.01), tt.composite)
			require.True(t, result.Fallback)
			assert.InDelta(t, tt.want, result.Fraction, 1e-9)
		})
	}
}

func TestSizeZeroVariance(t *testing.T) {
	sizer := NewSizer(0.25, 20, 0.0)

	constant := make([]float64, 50)
	for i := range constant {
		constant[i] = 0.001
	}
	result := sizer.Size("AAA", constant, 50)
	assert.False(t, result.Fallback)
	assert.Equal(t, 0.0, result.Fraction)
}
