package backtest

import (
	"time"

	"github.com/aristath/quantfolio/internal/config"
	"github.com/aristath/quantfolio/internal/panel"
)

// scheduleIndices returns the panel positions of the rebalance dates for
// the configured frequency. The schedule is monotonic; the final panel day
// is always included so the run ends on a decision point.
func scheduleIndices(p *panel.Panel, freq config.RebalanceFrequency) []int {
	monthEnds := p.MonthEndIndices()

	switch freq {
	case config.RebalanceWeekly:
		return weekEndIndices(p)
	case config.RebalanceQuarterly:
		var out []int
		dates := p.Dates()
		for _, i := range monthEnds {
			switch dates[i].Month() {
			case time.March, time.June, time.September, time.December:
				out = append(out, i)
			}
		}
		if len(out) == 0 || out[len(out)-1] != monthEnds[len(monthEnds)-1] {
			out = append(out, monthEnds[len(monthEnds)-1])
		}
		return out
	default:
		return monthEnds
	}
}

// weekEndIndices returns the last business day of each ISO week.
func weekEndIndices(p *panel.Panel) []int {
	dates := p.Dates()
	var out []int
	for i := 0; i < len(dates); i++ {
		if i == len(dates)-1 {
			out = append(out, i)
			break
		}
		y1, w1 := dates[i].ISOWeek()
		y2, w2 := dates[i+1].ISOWeek()
		if y1 != y2 || w1 != w2 {
			out = append(out, i)
		}
	}
	return out
}
