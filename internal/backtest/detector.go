package backtest

import (
	"github.com/newthinker/triggerlab/internal/core"
	"github.com/newthinker/triggerlab/internal/series"
)

// DetectTriggers runs the intraday trigger-crossing scan.
//
// For every day after the first, the trigger price is the previous trading day's close moved by
// threshold percent. The first bar whose high (threshold > 0) or low (threshold < 0) reaches it
// opens the trade at exactly the trigger price. The trade is closed at exit on the same day using
// the close of the last bar at or before that time. Days without a crossing, or whose crossing
// happens at or after exit, produce nothing. A zero threshold produces nothing.
func DetectTriggers(s *series.Series, threshold float64, exit series.Clock, side core.Side) TradeSet {
	if threshold == 0 {
		return nil
	}

	days := s.Days()
	var trades TradeSet
	for i := 1; i < len(days); i++ {
		prior := days[i-1].Close()
		if prior <= 0 {
			continue
		}
		day := days[i]
		trigger := prior * (1 + threshold/100)

		e, ok := firstCrossing(day, trigger, threshold > 0)
		if !ok {
			continue
		}

		exitAt := exit.On(day.Date)
		if !exitAt.After(e.time) {
			continue
		}
		exitBar, ok := s.AsOf(exitAt)
		if !ok {
			continue
		}

		held := barsBetween(day.Bars, e.time, exitAt)
		if t, ok := buildPriceTrade(e, side, held, exitBar, day); ok {
			trades = append(trades, t)
		}
	}
	return trades
}

// firstCrossing scans a day's bars in order for the first one touching trigger
func firstCrossing(day series.Day, trigger float64, upward bool) (entry, bool) {
	for _, b := range day.Bars {
		if (upward && b.High >= trigger) || (!upward && b.Low <= trigger) {
			return entry{date: day.Date, time: b.Time, price: trigger}, true
		}
	}
	return entry{}, false
}

// DetectWindow runs the fixed-time-window scan.
//
// Each day is restricted to bars whose time of day lies in [start, end]. The trade opens at the
// first bar's open and closes at the last bar's close. A start at or after end yields no trades.
func DetectWindow(s *series.Series, start, end series.Clock, side core.Side) TradeSet {
	if start.Compare(end) >= 0 {
		return nil
	}

	var trades TradeSet
	for _, day := range s.Days() {
		var held []core.OHLCV
		for _, b := range day.Bars {
			if series.ClockOf(b.Time).Within(start, end) {
				held = append(held, b)
			}
		}
		if len(held) == 0 {
			continue
		}

		first, last := held[0], held[len(held)-1]
		e := entry{date: day.Date, time: first.Time, price: first.Open}
		if t, ok := buildPriceTrade(e, side, held, last, day); ok {
			trades = append(trades, t)
		}
	}
	return trades
}

// DetectDaily runs the daily percentage-trigger scan over annotated daily bars.
//
// threshold is in percent. A day triggers at its open when the opening move already reaches the
// threshold, filling at the opening move. Otherwise it triggers when the high move (threshold > 0)
// or low move (threshold < 0) reaches it, filling exactly at the threshold.
func DetectDaily(days []series.DailyBar, threshold float64, side core.Side) TradeSet {
	if threshold == 0 {
		return nil
	}

	p := threshold / 100
	up := p > 0
	var trades TradeSet
	for _, d := range days {
		var fill float64
		switch {
		case up && d.OpenMove >= p, !up && d.OpenMove <= p:
			fill = d.OpenMove
		case up && d.HighMove >= p, !up && d.LowMove <= p:
			fill = p
		default:
			continue
		}
		trades = append(trades, buildPercentTrade(d, side, fill))
	}
	return trades
}
