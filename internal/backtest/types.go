package backtest

import (
	"time"

	"github.com/newthinker/triggerlab/internal/core"
)

// Basis tells how the prices of a Trade are expressed
type Basis string

const (
	// BasisPrice trades carry raw instrument prices; returns are ratios.
	BasisPrice Basis = "price"
	// BasisPercent trades carry moves against the prior close as decimal fractions;
	// returns are plain differences of those moves.
	BasisPercent Basis = "percent"
)

// Trade represents one simulated position, opened and closed on the same calendar day
type Trade struct {
	Date  time.Time `json:"date"`
	Side  core.Side `json:"side"`
	Basis Basis     `json:"basis"`

	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitTime   time.Time `json:"exit_time"`
	ExitPrice  float64   `json:"exit_price"`

	// Extremes reached while the position was open
	HighTime time.Time `json:"high_time"`
	High     float64   `json:"high"`
	LowTime  time.Time `json:"low_time"`
	Low      float64   `json:"low"`

	// Day is the raw OHLC of the trading day, kept for audit
	Day core.OHLCV `json:"day"`
	// OpenMove is the day's opening move, set for percent-basis trades only
	OpenMove float64 `json:"open_move,omitempty"`
}

// Return is the sign-adjusted result of the trade as a decimal fraction
func (t Trade) Return() float64 {
	return t.gain(t.EntryPrice, t.ExitPrice)
}

// Favorable is the best unrealized result reached between entry and exit
func (t Trade) Favorable() float64 {
	if t.Side == core.SideShort {
		return t.gain(t.EntryPrice, t.Low)
	}
	return t.gain(t.EntryPrice, t.High)
}

// Adverse is the worst unrealized result reached between entry and exit
func (t Trade) Adverse() float64 {
	if t.Side == core.SideShort {
		return t.gain(t.EntryPrice, t.High)
	}
	return t.gain(t.EntryPrice, t.Low)
}

// IsHit returns true if the trade was profitable. A flat trade is a miss.
func (t Trade) IsHit() bool {
	return t.Return() > 0
}

// Weekday of the trade date
func (t Trade) Weekday() time.Weekday {
	return t.Date.Weekday()
}

// gain measures moving from `from` to `to` in the trade's direction
func (t Trade) gain(from, to float64) float64 {
	var diff float64
	if t.Side == core.SideShort {
		diff = from - to
	} else {
		diff = to - from
	}
	if t.Basis == BasisPercent {
		return diff
	}
	if from == 0 {
		return 0
	}
	return diff / from
}

// TradeSet is an ordered, date-unique collection of trades from one run
type TradeSet []Trade

// Tail returns the last n trades, or all of them when fewer exist
func (ts TradeSet) Tail(n int) TradeSet {
	if n >= len(ts) {
		return ts
	}
	return ts[len(ts)-n:]
}

// OnWeekdays keeps trades that fall on one of the given weekdays.
// An empty filter keeps everything.
func (ts TradeSet) OnWeekdays(days []time.Weekday) TradeSet {
	if len(days) == 0 {
		return ts
	}
	want := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		want[d] = true
	}
	var out TradeSet
	for _, t := range ts {
		if want[t.Weekday()] {
			out = append(out, t)
		}
	}
	return out
}

// Returns lists the trade returns in order
func (ts TradeSet) Returns() []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = t.Return()
	}
	return out
}
