package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/newthinker/triggerlab/internal/core"
)

func TestTrade_ReturnBySide(t *testing.T) {
	long := Trade{Side: core.SideLong, Basis: BasisPrice, EntryPrice: 100, ExitPrice: 102, High: 103, Low: 99}
	assert.InDelta(t, 0.02, long.Return(), 1e-9)
	assert.InDelta(t, 0.03, long.Favorable(), 1e-9)
	assert.InDelta(t, -0.01, long.Adverse(), 1e-9)
	assert.True(t, long.IsHit())

	short := long
	short.Side = core.SideShort
	assert.InDelta(t, -0.02, short.Return(), 1e-9)
	assert.InDelta(t, 0.01, short.Favorable(), 1e-9)
	assert.InDelta(t, -0.03, short.Adverse(), 1e-9)
	assert.False(t, short.IsHit())
}

func TestTrade_PercentBasisSubtracts(t *testing.T) {
	tr := Trade{Side: core.SideLong, Basis: BasisPercent, EntryPrice: 0.02, ExitPrice: 0.035}
	assert.InDelta(t, 0.015, tr.Return(), 1e-12)
}

func TestTrade_ZeroEntry(t *testing.T) {
	tr := Trade{Side: core.SideLong, Basis: BasisPrice, ExitPrice: 5}
	assert.Zero(t, tr.Return())
}

func TestTrade_FlatIsMiss(t *testing.T) {
	tr := Trade{Side: core.SideLong, Basis: BasisPrice, EntryPrice: 10, ExitPrice: 10}
	assert.False(t, tr.IsHit())
}

func TestTradeSet_Tail(t *testing.T) {
	ts := weekdayTrades(0.01, 0.02, 0.03)
	assert.Len(t, ts.Tail(2), 2)
	assert.Equal(t, day(2), ts.Tail(2)[0].Date)
	assert.Len(t, ts.Tail(10), 3)
}

func TestTradeSet_OnWeekdays(t *testing.T) {
	ts := weekdayTrades(0.01, 0.02, 0.03, 0.04, 0.05, 0.06, 0.07)

	got := ts.OnWeekdays([]time.Weekday{time.Tuesday, time.Thursday})
	assert.Len(t, got, 2)
	assert.Equal(t, time.Tuesday, got[0].Weekday())
	assert.Equal(t, time.Thursday, got[1].Weekday())

	assert.Len(t, ts.OnWeekdays(nil), 7)
}
