package backtest

import (
	"github.com/newthinker/triggerlab/internal/core"
)

// Summary holds overall performance statistics of a TradeSet.
// Rates, returns and excursions are percentages.
type Summary struct {
	TotalTrades      int     `json:"total_trades"`
	Hits             int     `json:"hits"`
	Misses           int     `json:"misses"`
	HitRate          float64 `json:"hit_rate"`
	MissRate         float64 `json:"miss_rate"`
	CumulativeReturn float64 `json:"cumulative_return"` // sum of trade returns
	AverageReturn    float64 `json:"average_return"`
	MaxReturn        float64 `json:"max_return"`
	MinReturn        float64 `json:"min_return"`
	BestExcursion    float64 `json:"best_excursion"`
	WorstExcursion   float64 `json:"worst_excursion"`
	MaxDrawdown      float64 `json:"max_drawdown"` // compounded trade after trade
}

// Summarize computes overall statistics. An empty set has no summary and yields ErrNoTrades.
func Summarize(trades TradeSet) (*Summary, error) {
	if len(trades) == 0 {
		return nil, core.ErrNoTrades
	}

	first := trades[0]
	s := &Summary{
		TotalTrades:    len(trades),
		MaxReturn:      first.Return(),
		MinReturn:      first.Return(),
		BestExcursion:  first.Favorable(),
		WorstExcursion: first.Adverse(),
	}

	var total float64
	for _, t := range trades {
		r := t.Return()
		total += r
		if r > 0 {
			s.Hits++
		}
		s.MaxReturn = max(s.MaxReturn, r)
		s.MinReturn = min(s.MinReturn, r)
		s.BestExcursion = max(s.BestExcursion, t.Favorable())
		s.WorstExcursion = min(s.WorstExcursion, t.Adverse())
	}
	s.Misses = s.TotalTrades - s.Hits

	n := float64(s.TotalTrades)
	s.HitRate = float64(s.Hits) / n * 100
	s.MissRate = float64(s.Misses) / n * 100
	s.CumulativeReturn = total * 100
	s.AverageReturn = total / n * 100
	s.MaxReturn *= 100
	s.MinReturn *= 100
	s.BestExcursion *= 100
	s.WorstExcursion *= 100
	s.MaxDrawdown = calculateMaxDrawdown(trades.Returns()) * 100

	return s, nil
}

// calculateMaxDrawdown finds the largest peak-to-trough decline
func calculateMaxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	var maxDD float64
	peak := 1.0
	cumulative := 1.0

	for _, r := range returns {
		cumulative *= (1 + r)
		if cumulative > peak {
			peak = cumulative
		}
		if dd := (peak - cumulative) / peak; dd > maxDD {
			maxDD = dd
		}
	}

	return maxDD
}
