package backtest

import (
	"errors"
	"time"

	"github.com/newthinker/triggerlab/internal/core"
	"github.com/newthinker/triggerlab/internal/series"
)

// Report is the outcome of evaluating one rule over one series.
// Absent aggregations are nil; NoTrades flags an empty TradeSet.
type Report struct {
	Trades          TradeSet          `json:"trades"`
	NoTrades        bool              `json:"no_trades"`
	Summary         *Summary          `json:"summary,omitempty"`
	Recent          []WindowStats     `json:"recent,omitempty"`
	RecentByWeekday *WeekdayRecency   `json:"recent_by_weekday,omitempty"`
	Weekdays        *WeekdayBreakdown `json:"weekdays,omitempty"`
}

// Evaluate runs the detector selected by p over s and aggregates the trades.
// It is pure: the same series and parameters always give the same report.
func Evaluate(s *series.Series, p Params) (*Report, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	trades, err := Detect(s, p)
	if err != nil {
		return nil, err
	}
	return Aggregate(trades, p.Weekdays)
}

// Detect builds the TradeSet for the selected mode
func Detect(s *series.Series, p Params) (TradeSet, error) {
	switch p.Mode {
	case ModeTrigger:
		return DetectTriggers(s, p.Threshold, p.End, p.Side), nil
	case ModeWindow:
		return DetectWindow(s, p.Start, p.End, p.Side), nil
	case ModeDaily:
		days, err := series.Annotate(dailyBars(s))
		if err != nil {
			return nil, err
		}
		return DetectDaily(days, p.Threshold, p.Side), nil
	}
	return nil, core.ErrConfigInvalid
}

// dailyBars turns s into one bar per calendar day. Daily input keeps the first bar of a
// repeated day; intraday input is folded so uploads at any interval work in daily mode.
func dailyBars(s *series.Series) []core.OHLCV {
	if isDaily(s.Bars) {
		return series.CollapseDaily(s.Bars)
	}
	days := s.Days()
	out := make([]core.OHLCV, len(days))
	for i, d := range days {
		out[i] = dayBar(d)
	}
	return out
}

func isDaily(bars []core.OHLCV) bool {
	for _, b := range bars {
		if b.Interval != core.IntervalDaily {
			return false
		}
	}
	return true
}

// Aggregate reduces a TradeSet into every report view. Each view degrades on its own:
// a missing recency table does not hide the summary.
func Aggregate(trades TradeSet, weekdays []time.Weekday) (*Report, error) {
	r := &Report{Trades: trades, NoTrades: len(trades) == 0}
	if r.NoTrades {
		return r, nil
	}

	var err error
	if r.Summary, err = Summarize(trades); err != nil {
		return nil, err
	}
	if r.Recent, err = Recent(trades); absent(err) != nil {
		return nil, err
	}
	if r.RecentByWeekday, err = RecentByWeekday(trades); absent(err) != nil {
		return nil, err
	}
	if r.Weekdays, err = BreakdownByWeekday(trades.OnWeekdays(weekdays)); absent(err) != nil {
		return nil, err
	}
	return r, nil
}

// absent filters out errors that only mark a missing view
func absent(err error) error {
	if errors.Is(err, core.ErrInsufficientHistory) || errors.Is(err, core.ErrNoTrades) {
		return nil
	}
	return err
}
