// Package series holds the read-only price series consumed by the backtest engine.
package series

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/newthinker/triggerlab/internal/core"
)

// Series is a time-ordered sequence of bars for one instrument.
// Bars are strictly ascending by timestamp and never mutated after construction.
type Series struct {
	Symbol string
	Bars   []core.OHLCV
}

// Day is the slice of a series that falls on one calendar day
type Day struct {
	Date time.Time
	Bars []core.OHLCV
}

// Close returns the close of the day's last bar
func (d Day) Close() float64 {
	return d.Bars[len(d.Bars)-1].Close
}

// New validates ordering and prices and wraps bars into a Series.
// Unordered or duplicated timestamps are a caller contract violation; so are NaN or
// infinite prices, which parsers must drop before building a series.
func New(symbol string, bars []core.OHLCV) (*Series, error) {
	for i, b := range bars {
		if !finite(b.Open, b.High, b.Low, b.Close) {
			return nil, core.WrapError(core.ErrMalformedInput,
				fmt.Errorf("bar %d at %s has a non-finite price", i, b.Time))
		}
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return nil, core.WrapError(core.ErrUnorderedSeries,
				fmt.Errorf("bar %d at %s does not follow %s", i, bars[i].Time, bars[i-1].Time))
		}
	}
	return &Series{Symbol: symbol, Bars: bars}, nil
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Normalize sorts bars by time and drops repeated timestamps, keeping the first occurrence.
// Collaborators that parse uploads use it before calling New.
func Normalize(bars []core.OHLCV) []core.OHLCV {
	out := make([]core.OHLCV, len(bars))
	copy(out, bars)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })

	n := 0
	for i, b := range out {
		if i > 0 && b.Time.Equal(out[n-1].Time) {
			continue
		}
		out[n] = b
		n++
	}
	return out[:n]
}

// Len returns the number of bars
func (s *Series) Len() int {
	return len(s.Bars)
}

// Days groups bars by calendar day, in chronological order
func (s *Series) Days() []Day {
	var days []Day
	for _, b := range s.Bars {
		date := b.Date()
		if n := len(days); n > 0 && days[n-1].Date.Equal(date) {
			days[n-1].Bars = append(days[n-1].Bars, b)
			continue
		}
		days = append(days, Day{Date: date, Bars: []core.OHLCV{b}})
	}
	return days
}

// AsOf returns the last bar at or before t. Values are carried forward, never interpolated.
func (s *Series) AsOf(t time.Time) (core.OHLCV, bool) {
	i := sort.Search(len(s.Bars), func(i int) bool { return s.Bars[i].Time.After(t) })
	if i == 0 {
		return core.OHLCV{}, false
	}
	return s.Bars[i-1], true
}
