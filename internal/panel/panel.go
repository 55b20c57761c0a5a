// Package panel provides the aligned price/volume panel that every
// downstream component reads. A panel is validated once at construction and
// exposed as read-only window views: downstream code receives sub-slices of
// the backing arrays and must not mutate them.
package panel

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DefaultMaxGapDays is the longest interior run of missing closes that is
// forward-filled instead of rejected.
const DefaultMaxGapDays = 5

// Series holds one ticker's aligned OHLCV data. All slices have the same
// length as the panel's date index.
type Series struct {
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64

	// Filled marks positions where an interior close gap was forward-filled
	// during validation. Consumers treating filled bars as observations
	// (e.g. the safety filter) can count them here.
	Filled []bool
}

// Input is the raw material for a panel. Closes, Volumes and Benchmark are
// required; Opens/Highs/Lows, VolIndex and Sectors are optional.
type Input struct {
	Dates     []time.Time
	Closes    map[string][]float64
	Volumes   map[string][]float64
	Opens     map[string][]float64
	Highs     map[string][]float64
	Lows      map[string][]float64
	Benchmark []float64
	VolIndex  []float64
	Sectors   map[string]string

	// MaxGapDays overrides DefaultMaxGapDays when > 0.
	MaxGapDays int
}

// Panel is an immutable aligned (ticker, date) table with a benchmark and
// optional volatility-index series.
type Panel struct {
	dates     []time.Time
	tickers   []string
	series    map[string]*Series
	benchmark []float64
	volIndex  []float64
	sectors   map[string]string
}

// New validates the input and builds an immutable panel.
//
// Validation rules:
//   - the date index is non-empty, strictly increasing, business days only
//   - every ticker series and the benchmark have the same length as the index
//   - interior close gaps (NaN or non-positive) up to MaxGapDays are
//     forward-filled and flagged; longer gaps and leading gaps are errors
//   - missing volumes become zero and are flagged
func New(in Input) (*Panel, error) {
	if len(in.Dates) == 0 {
		return nil, fmt.Errorf("panel: empty date index")
	}
	maxGap := in.MaxGapDays
	if maxGap <= 0 {
		maxGap = DefaultMaxGapDays
	}

	for i, d := range in.Dates {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return nil, fmt.Errorf("panel: non-business day %s in index", d.Format("2006-01-02"))
		}
		if i > 0 && !in.Dates[i-1].Before(d) {
			return nil, fmt.Errorf("panel: date index not strictly increasing at %s", d.Format("2006-01-02"))
		}
	}

	n := len(in.Dates)
	if len(in.Benchmark) != n {
		return nil, fmt.Errorf("panel: benchmark length %d != index length %d", len(in.Benchmark), n)
	}
	for i, v := range in.Benchmark {
		if math.IsNaN(v) || v <= 0 {
			return nil, fmt.Errorf("panel: invalid benchmark value at %s", in.Dates[i].Format("2006-01-02"))
		}
	}
	if in.VolIndex != nil && len(in.VolIndex) != n {
		return nil, fmt.Errorf("panel: vol index length %d != index length %d", len(in.VolIndex), n)
	}

	tickers := make([]string, 0, len(in.Closes))
	for ticker := range in.Closes {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	series := make(map[string]*Series, len(tickers))
	for _, ticker := range tickers {
		closes := in.Closes[ticker]
		if len(closes) != n {
			return nil, fmt.Errorf("panel: %s closes length %d != index length %d", ticker, len(closes), n)
		}
		volumes := in.Volumes[ticker]
		if volumes == nil {
			return nil, fmt.Errorf("panel: %s has no volume series", ticker)
		}
		if len(volumes) != n {
			return nil, fmt.Errorf("panel: %s volumes length %d != index length %d", ticker, len(volumes), n)
		}

		s := &Series{
			Close:  append([]float64(nil), closes...),
			Volume: append([]float64(nil), volumes...),
			Filled: make([]bool, n),
		}
		if o := in.Opens[ticker]; len(o) == n {
			s.Open = append([]float64(nil), o...)
		}
		if h := in.Highs[ticker]; len(h) == n {
			s.High = append([]float64(nil), h...)
		}
		if l := in.Lows[ticker]; len(l) == n {
			s.Low = append([]float64(nil), l...)
		}

		if err := fillGaps(ticker, in.Dates, s, maxGap); err != nil {
			return nil, err
		}
		series[ticker] = s
	}

	sectors := make(map[string]string, len(in.Sectors))
	for k, v := range in.Sectors {
		sectors[k] = v
	}

	return &Panel{
		dates:     append([]time.Time(nil), in.Dates...),
		tickers:   tickers,
		series:    series,
		benchmark: append([]float64(nil), in.Benchmark...),
		volIndex:  append([]float64(nil), in.VolIndex...),
		sectors:   sectors,
	}, nil
}

func fillGaps(ticker string, dates []time.Time, s *Series, maxGap int) error {
	if missing(s.Close[0]) {
		return fmt.Errorf("panel: %s has a leading gap at %s", ticker, dates[0].Format("2006-01-02"))
	}

	run := 0
	for i := 1; i < len(s.Close); i++ {
		if missing(s.Close[i]) {
			run++
			if run > maxGap {
				return fmt.Errorf("panel: %s gap longer than %d days ending %s", ticker, maxGap, dates[i].Format("2006-01-02"))
			}
			s.Close[i] = s.Close[i-1]
			s.Filled[i] = true
		} else {
			run = 0
		}
		if math.IsNaN(s.Volume[i]) {
			s.Volume[i] = 0
			s.Filled[i] = true
		}
	}
	if math.IsNaN(s.Volume[0]) {
		s.Volume[0] = 0
		s.Filled[0] = true
	}
	return nil
}

func missing(v float64) bool {
	return math.IsNaN(v) || v <= 0
}

// Len returns the number of dates in the panel.
func (p *Panel) Len() int { return len(p.dates) }

// Dates returns the full date index. Callers must not mutate it.
func (p *Panel) Dates() []time.Time { return p.dates }

// Tickers returns the sorted ticker set.
func (p *Panel) Tickers() []string { return p.tickers }

// Sector returns the sector label for a ticker ("" when unknown).
func (p *Panel) Sector(ticker string) string { return p.sectors[ticker] }

// Sectors returns the ticker → sector map. Callers must not mutate it.
func (p *Panel) Sectors() map[string]string { return p.sectors }

// HasVolIndex reports whether a volatility-index series is present.
func (p *Panel) HasVolIndex() bool { return len(p.volIndex) > 0 }

// Index returns the position of a date in the index.
func (p *Panel) Index(date time.Time) (int, bool) {
	i := sort.Search(len(p.dates), func(i int) bool { return !p.dates[i].Before(date) })
	if i < len(p.dates) && p.dates[i].Equal(date) {
		return i, true
	}
	return 0, false
}

// Full returns a view spanning the whole panel.
func (p *Panel) Full() *View {
	return &View{p: p, lo: 0, hi: len(p.dates)}
}

// Window returns a read-only view over [lo, hi).
func (p *Panel) Window(lo, hi int) (*View, error) {
	if lo < 0 || hi > len(p.dates) || lo >= hi {
		return nil, fmt.Errorf("panel: invalid window [%d, %d) over %d dates", lo, hi, len(p.dates))
	}
	return &View{p: p, lo: lo, hi: hi}, nil
}

// MonthEndIndices returns the index of the last business day of each
// calendar month present in the panel.
func (p *Panel) MonthEndIndices() []int {
	var out []int
	for i := 0; i < len(p.dates); i++ {
		if i == len(p.dates)-1 {
			out = append(out, i)
			break
		}
		cur, next := p.dates[i], p.dates[i+1]
		if cur.Month() != next.Month() || cur.Year() != next.Year() {
			out = append(out, i)
		}
	}
	return out
}

// View is a read-only window over a panel. Accessors return sub-slices of
// the panel's backing arrays; callers must not mutate them.
type View struct {
	p      *Panel
	lo, hi int
}

// Slice returns a sub-view over [lo, hi) relative to this view.
func (v *View) Slice(lo, hi int) (*View, error) {
	if lo < 0 || hi > v.Len() || lo >= hi {
		return nil, fmt.Errorf("panel: invalid slice [%d, %d) over %d dates", lo, hi, v.Len())
	}
	return &View{p: v.p, lo: v.lo + lo, hi: v.lo + hi}, nil
}

// Len returns the number of dates in the view.
func (v *View) Len() int { return v.hi - v.lo }

// Start returns the first date of the view.
func (v *View) Start() time.Time { return v.p.dates[v.lo] }

// End returns the last date of the view (inclusive).
func (v *View) End() time.Time { return v.p.dates[v.hi-1] }

// Dates returns the view's date slice.
func (v *View) Dates() []time.Time { return v.p.dates[v.lo:v.hi] }

// Tickers returns the panel's ticker set.
func (v *View) Tickers() []string { return v.p.tickers }

// Sector returns the sector label for a ticker.
func (v *View) Sector(ticker string) string { return v.p.sectors[ticker] }

// HasTicker reports whether a ticker exists in the panel.
func (v *View) HasTicker(ticker string) bool {
	_, ok := v.p.series[ticker]
	return ok
}

// Closes returns the ticker's close series within the view, or nil for an
// unknown ticker.
func (v *View) Closes(ticker string) []float64 {
	s, ok := v.p.series[ticker]
	if !ok {
		return nil
	}
	return s.Close[v.lo:v.hi]
}

// Volumes returns the ticker's volume series within the view.
func (v *View) Volumes(ticker string) []float64 {
	s, ok := v.p.series[ticker]
	if !ok {
		return nil
	}
	return s.Volume[v.lo:v.hi]
}

// FilledCount returns how many bars in the view were gap-filled.
func (v *View) FilledCount(ticker string) int {
	s, ok := v.p.series[ticker]
	if !ok {
		return 0
	}
	count := 0
	for _, f := range s.Filled[v.lo:v.hi] {
		if f {
			count++
		}
	}
	return count
}

// Benchmark returns the benchmark series within the view.
func (v *View) Benchmark() []float64 { return v.p.benchmark[v.lo:v.hi] }

// VolIndex returns the volatility-index series within the view, or nil.
func (v *View) VolIndex() []float64 {
	if !v.p.HasVolIndex() {
		return nil
	}
	return v.p.volIndex[v.lo:v.hi]
}

// HasVolIndex reports whether a volatility-index series is present.
func (v *View) HasVolIndex() bool { return v.p.HasVolIndex() }
