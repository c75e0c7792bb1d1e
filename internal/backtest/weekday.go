package backtest

import (
	"time"

	"github.com/newthinker/triggerlab/internal/core"
)

// TotalLabel names the aggregate row of the weekday breakdown
const TotalLabel = "Total/Average"

// fullWeek is Monday through Sunday in display order
var fullWeek = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
	time.Saturday, time.Sunday,
}

// WeekdayRow holds full-history statistics for one weekday
type WeekdayRow struct {
	Label         string  `json:"label"`
	Total         int     `json:"total"`
	Hits          int     `json:"hits"`
	Misses        int     `json:"misses"`
	HitRate       float64 `json:"hit_rate"`
	MissRate      float64 `json:"miss_rate"`
	AverageReturn float64 `json:"average_return"`
}

// WeekdayBreakdown lists weekdays with trades, Monday first, followed by the aggregate row
type WeekdayBreakdown struct {
	Rows  []WeekdayRow `json:"rows"`
	Total WeekdayRow   `json:"total"`
}

// BreakdownByWeekday partitions the whole set by weekday.
//
// The aggregate row sums the counts, but its rates and average are the plain mean of the
// per-weekday values rather than figures recomputed from the pooled trades.
func BreakdownByWeekday(trades TradeSet) (*WeekdayBreakdown, error) {
	if len(trades) == 0 {
		return nil, core.ErrNoTrades
	}

	type acc struct {
		total, hits int
		sum         float64
	}
	parts := make(map[time.Weekday]*acc)
	for _, t := range trades {
		a := parts[t.Weekday()]
		if a == nil {
			a = &acc{}
			parts[t.Weekday()] = a
		}
		r := t.Return()
		a.total++
		a.sum += r
		if r > 0 {
			a.hits++
		}
	}

	out := &WeekdayBreakdown{Total: WeekdayRow{Label: TotalLabel}}
	for _, d := range fullWeek {
		a, ok := parts[d]
		if !ok {
			continue
		}
		n := float64(a.total)
		row := WeekdayRow{
			Label:         d.String(),
			Total:         a.total,
			Hits:          a.hits,
			Misses:        a.total - a.hits,
			HitRate:       float64(a.hits) / n * 100,
			MissRate:      float64(a.total-a.hits) / n * 100,
			AverageReturn: a.sum / n * 100,
		}
		out.Rows = append(out.Rows, row)

		out.Total.Total += row.Total
		out.Total.Hits += row.Hits
		out.Total.Misses += row.Misses
		out.Total.HitRate += row.HitRate
		out.Total.MissRate += row.MissRate
		out.Total.AverageReturn += row.AverageReturn
	}

	k := float64(len(out.Rows))
	out.Total.HitRate /= k
	out.Total.MissRate /= k
	out.Total.AverageReturn /= k
	return out, nil
}
