package panel

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDates(n int) []time.Time {
	dates := make([]time.Time, 0, n)
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for len(dates) < n {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return dates
}

func constSlice(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func validInput(n int) Input {
	return Input{
		Dates:     testDates(n),
		Closes:    map[string][]float64{"AAA": constSlice(n, 100), "BBB": constSlice(n, 50)},
		Volumes:   map[string][]float64{"AAA": constSlice(n, 2e6), "BBB": constSlice(n, 3e6)},
		Benchmark: constSlice(n, 400),
		Sectors:   map[string]string{"AAA": "Technology", "BBB": "Energy"},
	}
}

func TestNewValidation(t *testing.T) {
	t.Run("valid panel", func(t *testing.T) {
		p, err := New(validInput(30))
		require.NoError(t, err)
		assert.Equal(t, 30, p.Len())
		assert.Equal(t, []string{"AAA", "BBB"}, p.Tickers())
		assert.Equal(t, "Technology", p.Sector("AAA"))
	})

	t.Run("rejects weekend dates", func(t *testing.T) {
		in := validInput(10)
		in.Dates[3] = time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC) // Saturday
		_, err := New(in)
		assert.ErrorContains(t, err, "non-business day")
	})

	t.Run("rejects non-increasing index", func(t *testing.T) {
		in := validInput(10)
		in.Dates[5] = in.Dates[4]
		_, err := New(in)
		assert.ErrorContains(t, err, "not strictly increasing")
	})

	t.Run("rejects length mismatch", func(t *testing.T) {
		in := validInput(10)
		in.Closes["AAA"] = constSlice(9, 100)
		_, err := New(in)
		assert.ErrorContains(t, err, "length")
	})

	t.Run("rejects invalid benchmark values", func(t *testing.T) {
		in := validInput(10)
		in.Benchmark[4] = math.NaN()
		_, err := New(in)
		assert.ErrorContains(t, err, "benchmark")
	})

	t.Run("rejects missing volume series", func(t *testing.T) {
		in := validInput(10)
		delete(in.Volumes, "BBB")
		_, err := New(in)
		assert.ErrorContains(t, err, "no volume series")
	})
}

func TestGapFilling(t *testing.T) {
	t.Run("interior gaps within tolerance are filled and flagged", func(t *testing.T) {
		in := validInput(20)
		for i := 5; i < 8; i++ {
			in.Closes["AAA"][i] = math.NaN()
		}
		p, err := New(in)
		require.NoError(t, err)

		v := p.Full()
		closes := v.Closes("AAA")
		for i := 5; i < 8; i++ {
			assert.Equal(t, 100.0, closes[i])
		}
		assert.Equal(t, 3, v.FilledCount("AAA"))
		assert.Equal(t, 0, v.FilledCount("BBB"))
	})

	t.Run("gaps beyond tolerance are rejected", func(t *testing.T) {
		in := validInput(20)
		for i := 5; i < 12; i++ {
			in.Closes["AAA"][i] = math.NaN()
		}
		_, err := New(in)
		assert.ErrorContains(t, err, "gap longer than")
	})

	t.Run("leading gap is rejected", func(t *testing.T) {
		in := validInput(20)
		in.Closes["AAA"][0] = math.NaN()
		_, err := New(in)
		assert.ErrorContains(t, err, "leading gap")
	})

	t.Run("missing volume becomes zero and is flagged", func(t *testing.T) {
		in := validInput(20)
		in.Volumes["AAA"][7] = math.NaN()
		p, err := New(in)
		require.NoError(t, err)
		assert.Equal(t, 0.0, p.Full().Volumes("AAA")[7])
		assert.Equal(t, 1, p.Full().FilledCount("AAA"))
	})
}

func TestWindowsAndSlices(t *testing.T) {
	p, err := New(validInput(60))
	require.NoError(t, err)

	v, err := p.Window(10, 40)
	require.NoError(t, err)
	assert.Equal(t, 30, v.Len())
	assert.Equal(t, p.Dates()[10], v.Start())
	assert.Equal(t, p.Dates()[39], v.End())
	assert.Len(t, v.Closes("AAA"), 30)
	assert.Len(t, v.Benchmark(), 30)

	sub, err := v.Slice(5, 15)
	require.NoError(t, err)
	assert.Equal(t, 10, sub.Len())
	assert.Equal(t, p.Dates()[15], sub.Start())

	_, err = p.Window(40, 10)
	assert.Error(t, err)
	_, err = v.Slice(0, 100)
	assert.Error(t, err)
}

func TestIndex(t *testing.T) {
	p, err := New(validInput(20))
	require.NoError(t, err)

	i, ok := p.Index(p.Dates()[7])
	require.True(t, ok)
	assert.Equal(t, 7, i)

	_, ok = p.Index(time.Date(1999, 1, 4, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestMonthEndIndices(t *testing.T) {
	// ~3 months of business days.
	p, err := New(validInput(65))
	require.NoError(t, err)

	ends := p.MonthEndIndices()
	require.NotEmpty(t, ends)

	dates := p.Dates()
	// Every listed index except the last is followed by a different month.
	for _, i := range ends[:len(ends)-1] {
		next := dates[i+1]
		cur := dates[i]
		assert.True(t, cur.Month() != next.Month() || cur.Year() != next.Year())
	}
	// The final panel day is always included.
	assert.Equal(t, p.Len()-1, ends[len(ends)-1])
}
