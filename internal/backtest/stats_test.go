package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/triggerlab/internal/core"
)

func TestSummarize(t *testing.T) {
	trades := weekdayTrades(0.02, -0.01, 0.03, 0)

	s, err := Summarize(trades)
	require.NoError(t, err)

	assert.Equal(t, 4, s.TotalTrades)
	assert.Equal(t, 2, s.Hits)
	assert.Equal(t, 2, s.Misses)
	assert.InDelta(t, 50.0, s.HitRate, 1e-9)
	assert.InDelta(t, 50.0, s.MissRate, 1e-9)
	assert.InDelta(t, 4.0, s.CumulativeReturn, 1e-9)
	assert.InDelta(t, 1.0, s.AverageReturn, 1e-9)
	assert.InDelta(t, 3.0, s.MaxReturn, 1e-9)
	assert.InDelta(t, -1.0, s.MinReturn, 1e-9)
	assert.InDelta(t, 3.0, s.BestExcursion, 1e-9)
	assert.InDelta(t, -1.0, s.WorstExcursion, 1e-9)
	assert.InDelta(t, 1.0, s.MaxDrawdown, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	s, err := Summarize(nil)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, core.ErrNoTrades)
}

func TestSummarize_RatesAddUp(t *testing.T) {
	s, err := Summarize(weekdayTrades(0.01, -0.02, 0.005, -0.001, 0, 0.3, -0.4))
	require.NoError(t, err)
	assert.Equal(t, s.TotalTrades, s.Hits+s.Misses)
	assert.InDelta(t, 100.0, s.HitRate+s.MissRate, 1e-9)
}

func TestCalculateMaxDrawdown(t *testing.T) {
	tests := []struct {
		name    string
		returns []float64
		want    float64
	}{
		{"empty", nil, 0},
		{"only gains", []float64{0.1, 0.1}, 0},
		{"first trade loses", []float64{-0.1}, 0.1},
		{"peak then trough", []float64{0.1, -0.5, 0.2}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calculateMaxDrawdown(tt.returns), 1e-9)
		})
	}
}
