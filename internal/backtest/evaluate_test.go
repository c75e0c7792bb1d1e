package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/triggerlab/internal/core"
	"github.com/newthinker/triggerlab/internal/series"
)

func TestAggregate_Empty(t *testing.T) {
	r, err := Aggregate(nil, nil)
	require.NoError(t, err)
	assert.True(t, r.NoTrades)
	assert.Nil(t, r.Summary)
	assert.Nil(t, r.Recent)
	assert.Nil(t, r.RecentByWeekday)
	assert.Nil(t, r.Weekdays)
}

func TestAggregate_FewTradesKeepSummary(t *testing.T) {
	r, err := Aggregate(weekdayTrades(0.01, -0.01, 0.02), nil)
	require.NoError(t, err)
	assert.False(t, r.NoTrades)
	require.NotNil(t, r.Summary)
	assert.Equal(t, 3, r.Summary.TotalTrades)
	assert.Nil(t, r.Recent)
	assert.Nil(t, r.RecentByWeekday)
	require.NotNil(t, r.Weekdays)
	assert.Len(t, r.Weekdays.Rows, 3)
}

func TestAggregate_WeekdayFilterOnlyAffectsBreakdown(t *testing.T) {
	trades := weekdayTrades(repeat(14, 0.01)...)

	r, err := Aggregate(trades, []time.Weekday{time.Tuesday, time.Thursday})
	require.NoError(t, err)
	assert.Equal(t, 14, r.Summary.TotalTrades)
	require.Len(t, r.Weekdays.Rows, 2)
	assert.Equal(t, "Tuesday", r.Weekdays.Rows[0].Label)
	assert.Equal(t, "Thursday", r.Weekdays.Rows[1].Label)
	assert.Equal(t, 4, r.Weekdays.Total.Total)
}

func TestAggregate_FilterWithoutMatches(t *testing.T) {
	r, err := Aggregate(weekdayTrades(0.01), []time.Weekday{time.Friday})
	require.NoError(t, err)
	assert.NotNil(t, r.Summary)
	assert.Nil(t, r.Weekdays)
}

func TestAggregate_Idempotent(t *testing.T) {
	trades := weekdayTrades(0.01, -0.02, 0.03, 0.04, -0.05, 0.06)
	a, err := Aggregate(trades, nil)
	require.NoError(t, err)
	b, err := Aggregate(trades, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEvaluate_Modes(t *testing.T) {
	s := triggerSeries(t)

	r, err := Evaluate(s, Params{Mode: ModeTrigger, Threshold: 0.5, Side: core.SideLong, End: series.MustClock("15:55")})
	require.NoError(t, err)
	require.Len(t, r.Trades, 1)
	assert.InDelta(t, 0.4975, r.Summary.AverageReturn, 1e-3)

	r, err = Evaluate(s, Params{Mode: ModeWindow, Side: core.SideLong,
		Start: series.MustClock("10:00"), End: series.MustClock("16:00")})
	require.NoError(t, err)
	assert.Len(t, r.Trades, 1)

	r, err = Evaluate(s, Params{Mode: ModeDaily, Threshold: 1, Side: core.SideLong})
	require.NoError(t, err)
	require.Len(t, r.Trades, 1)
	assert.Equal(t, BasisPercent, r.Trades[0].Basis)
}

func TestEvaluate_InvalidParams(t *testing.T) {
	_, err := Evaluate(triggerSeries(t), Params{Mode: "weekly", Side: core.SideLong})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	_, err = Evaluate(triggerSeries(t), Params{Mode: ModeDaily, Side: "both"})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestDailyBars_FoldsIntradayDays(t *testing.T) {
	bars := dailyBars(triggerSeries(t))
	require.Len(t, bars, 2)
	assert.Equal(t, day(3), bars[1].Time)
	assert.InDelta(t, 100.0, bars[1].Open, 1e-9)
	assert.InDelta(t, 101.9, bars[1].High, 1e-9)
	assert.InDelta(t, 99.9, bars[1].Low, 1e-9)
	assert.InDelta(t, 101.8, bars[1].Close, 1e-9)
}

// repeatedDaily has two daily bars on 2024-01-02; the first one is the day
func repeatedDaily() []core.OHLCV {
	late := daily(2, 100, 110, 90, 95)
	late.Time = late.Time.Add(17 * time.Hour)
	return []core.OHLCV{
		daily(1, 100, 100, 100, 100),
		daily(2, 100, 102, 99.5, 100.5),
		late,
	}
}

func TestDailyBars_KeepsFirstOfRepeatedDailyBar(t *testing.T) {
	bars := dailyBars(mustSeries(t, repeatedDaily()...))
	require.Len(t, bars, 2)
	assert.Equal(t, day(2), bars[1].Time)
	assert.InDelta(t, 102.0, bars[1].High, 1e-9)
	assert.InDelta(t, 99.5, bars[1].Low, 1e-9)
	assert.InDelta(t, 100.5, bars[1].Close, 1e-9)
}

func TestEvaluate_DailyRepeatedDay(t *testing.T) {
	rep, err := Evaluate(mustSeries(t, repeatedDaily()...),
		Params{Mode: ModeDaily, Threshold: 1, Side: core.SideLong})
	require.NoError(t, err)
	require.Len(t, rep.Trades, 1)

	tr := rep.Trades[0]
	assert.InDelta(t, 0.01, tr.EntryPrice, 1e-9)
	assert.InDelta(t, 0.005, tr.ExitPrice, 1e-9)
	assert.InDelta(t, -0.005, tr.Return(), 1e-9)
}
