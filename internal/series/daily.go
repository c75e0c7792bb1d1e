package series

import (
	"fmt"

	"github.com/newthinker/triggerlab/internal/core"
)

// DailyBar is a daily bar annotated with its moves relative to the previous close.
// Moves are decimal fractions: 0.02 is +2%.
type DailyBar struct {
	core.OHLCV
	PrevClose float64 `json:"prev_close"`
	OpenMove  float64 `json:"open_move"`
	HighMove  float64 `json:"high_move"`
	LowMove   float64 `json:"low_move"`
	CloseMove float64 `json:"close_move"`
}

// CollapseDaily normalizes bar times to their calendar day and keeps the first bar of each day.
// Input must be ordered by time.
func CollapseDaily(bars []core.OHLCV) []core.OHLCV {
	out := make([]core.OHLCV, 0, len(bars))
	seen := make(map[int64]struct{}, len(bars))
	for _, b := range bars {
		date := b.Date()
		key := date.Unix()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		b.Time = date
		out = append(out, b)
	}
	return out
}

// Annotate computes percentage moves of each day against the prior day's close.
// The first day has no prior close and is dropped, as is any day whose prior close is not positive.
// Days must be strictly ascending; anything else is a contract violation.
func Annotate(bars []core.OHLCV) ([]DailyBar, error) {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Date().After(bars[i-1].Date()) {
			return nil, core.WrapError(core.ErrUnorderedSeries,
				fmt.Errorf("daily bar %d on %s does not follow %s",
					i, bars[i].Date().Format("2006-01-02"), bars[i-1].Date().Format("2006-01-02")))
		}
	}

	out := make([]DailyBar, 0, max(len(bars)-1, 0))
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev <= 0 {
			continue
		}
		b := bars[i]
		out = append(out, DailyBar{
			OHLCV:     b,
			PrevClose: prev,
			OpenMove:  b.Open/prev - 1,
			HighMove:  b.High/prev - 1,
			LowMove:   b.Low/prev - 1,
			CloseMove: b.Close/prev - 1,
		})
	}
	return out, nil
}
