package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/newthinker/triggerlab/internal/core"
	"github.com/newthinker/triggerlab/internal/series"
)

// 2024-01-01 is a Monday
func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func bar(d, hour, minute int, open, high, low, close float64) core.OHLCV {
	return core.OHLCV{
		Symbol:   "TEST",
		Interval: core.Interval15m,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    close,
		Time:     time.Date(2024, 1, d, hour, minute, 0, 0, time.UTC),
	}
}

func mustSeries(t *testing.T, bars ...core.OHLCV) *series.Series {
	t.Helper()
	s, err := series.New("TEST", bars)
	require.NoError(t, err)
	return s
}

// tradeOn builds a long price-basis trade on the given day returning r (decimal)
func tradeOn(d int, r float64) Trade {
	return Trade{
		Date:       day(d),
		Side:       core.SideLong,
		Basis:      BasisPrice,
		EntryPrice: 100,
		ExitPrice:  100 * (1 + r),
		High:       100 * (1 + max(r, 0)),
		Low:        100 * (1 + min(r, 0)),
	}
}

// weekdayTrades spreads returns over consecutive calendar days starting on Monday 2024-01-01
func weekdayTrades(returns ...float64) TradeSet {
	out := make(TradeSet, len(returns))
	for i, r := range returns {
		out[i] = tradeOn(i+1, r)
	}
	return out
}
