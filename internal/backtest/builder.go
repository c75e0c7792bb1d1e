package backtest

import (
	"time"

	"github.com/newthinker/triggerlab/internal/core"
	"github.com/newthinker/triggerlab/internal/series"
)

// entry is what a detector found for one day
type entry struct {
	date  time.Time
	time  time.Time
	price float64
}

// buildPriceTrade assembles a price-basis trade from an entry, the bars held and the exit bar.
// Ties on the extremes resolve to the earliest bar. ok is false when nothing was held.
func buildPriceTrade(e entry, side core.Side, held []core.OHLCV, exit core.OHLCV, day series.Day) (Trade, bool) {
	if len(held) == 0 {
		return Trade{}, false
	}

	hi, lo := held[0], held[0]
	for _, b := range held[1:] {
		if b.High > hi.High {
			hi = b
		}
		if b.Low < lo.Low {
			lo = b
		}
	}

	return Trade{
		Date:       e.date,
		Side:       side,
		Basis:      BasisPrice,
		EntryTime:  e.time,
		EntryPrice: e.price,
		ExitTime:   exit.Time,
		ExitPrice:  exit.Close,
		HighTime:   hi.Time,
		High:       hi.High,
		LowTime:    lo.Time,
		Low:        lo.Low,
		Day:        dayBar(day),
	}, true
}

// buildPercentTrade assembles a percent-basis trade for a daily bar.
// The whole session is the holding window, so extremes are the day's own moves.
func buildPercentTrade(d series.DailyBar, side core.Side, entryMove float64) Trade {
	date := d.Date()
	return Trade{
		Date:       date,
		Side:       side,
		Basis:      BasisPercent,
		EntryTime:  date,
		EntryPrice: entryMove,
		ExitTime:   date,
		ExitPrice:  d.CloseMove,
		HighTime:   date,
		High:       d.HighMove,
		LowTime:    date,
		Low:        d.LowMove,
		Day:        d.OHLCV,
		OpenMove:   d.OpenMove,
	}
}

// dayBar aggregates a day's intraday bars into one OHLC bar
func dayBar(day series.Day) core.OHLCV {
	first, last := day.Bars[0], day.Bars[len(day.Bars)-1]
	out := core.OHLCV{
		Symbol:   first.Symbol,
		Interval: core.IntervalDaily,
		Open:     first.Open,
		High:     first.High,
		Low:      first.Low,
		Close:    last.Close,
		Time:     day.Date,
	}
	for _, b := range day.Bars {
		out.High = max(out.High, b.High)
		out.Low = min(out.Low, b.Low)
		out.Volume += b.Volume
	}
	return out
}

// barsBetween returns the bars with from <= time <= to
func barsBetween(bars []core.OHLCV, from, to time.Time) []core.OHLCV {
	var out []core.OHLCV
	for _, b := range bars {
		if b.Time.Before(from) || b.Time.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}
