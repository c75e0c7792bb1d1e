package backtest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/newthinker/triggerlab/internal/core"
)

// RecencyWindows are the trailing trade counts reported by the recency tables
var RecencyWindows = []int{5, 10, 15, 20, 25}

// MinRecencyTrades is the smallest set for which recency is reported
const MinRecencyTrades = 5

// WindowStats summarizes the trailing N trades of a set
type WindowStats struct {
	Window        int     `json:"window"`
	AverageReturn float64 `json:"average_return"`
	HitRate       float64 `json:"hit_rate"`
}

// WeekdayWindowRow is one trailing-window row of the per-weekday recency table.
// Only weekdays with at least Window trades have a cell.
type WeekdayWindowRow struct {
	Window int
	Cells  map[time.Weekday]WindowStats
}

// MarshalJSON keys cells by weekday name
func (r WeekdayWindowRow) MarshalJSON() ([]byte, error) {
	cells := make(map[string]WindowStats, len(r.Cells))
	for d, s := range r.Cells {
		cells[d.String()] = s
	}
	return json.Marshal(struct {
		Window int                    `json:"window"`
		Cells  map[string]WindowStats `json:"cells"`
	}{r.Window, cells})
}

// UnmarshalJSON reads cells keyed by weekday name
func (r *WeekdayWindowRow) UnmarshalJSON(b []byte) error {
	var raw struct {
		Window int                    `json:"window"`
		Cells  map[string]WindowStats `json:"cells"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Window = raw.Window
	r.Cells = make(map[time.Weekday]WindowStats, len(raw.Cells))
	for name, s := range raw.Cells {
		d, ok := weekdayByName[name]
		if !ok {
			return fmt.Errorf("unknown weekday %q", name)
		}
		r.Cells[d] = s
	}
	return nil
}

var weekdayByName = func() map[string]time.Weekday {
	m := make(map[string]time.Weekday, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		m[d.String()] = d
	}
	return m
}()

// WeekdayRecency is the per-weekday recency table, rows ordered by window size
type WeekdayRecency struct {
	Weekdays []time.Weekday     `json:"weekdays"`
	Rows     []WeekdayWindowRow `json:"rows"`
}

// tradingWeek is Monday through Friday in display order
var tradingWeek = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
}

// Recent reports each satisfiable trailing window.
// Sets with fewer than MinRecencyTrades trades yield ErrInsufficientHistory.
func Recent(trades TradeSet) ([]WindowStats, error) {
	if len(trades) < MinRecencyTrades {
		return nil, core.ErrInsufficientHistory
	}

	var out []WindowStats
	for _, n := range RecencyWindows {
		if len(trades) < n {
			break
		}
		out = append(out, windowStats(trades, n))
	}
	return out, nil
}

// RecentByWeekday applies the trailing windows to each Monday-Friday partition independently.
// "Trailing N" counts trades on that weekday, not calendar days.
func RecentByWeekday(trades TradeSet) (*WeekdayRecency, error) {
	parts := make(map[time.Weekday]TradeSet, len(tradingWeek))
	for _, t := range trades {
		parts[t.Weekday()] = append(parts[t.Weekday()], t)
	}

	out := &WeekdayRecency{}
	present := make(map[time.Weekday]bool)
	for _, n := range RecencyWindows {
		row := WeekdayWindowRow{Window: n, Cells: make(map[time.Weekday]WindowStats)}
		for _, d := range tradingWeek {
			if len(parts[d]) < n {
				continue
			}
			row.Cells[d] = windowStats(parts[d], n)
			present[d] = true
		}
		if len(row.Cells) > 0 {
			out.Rows = append(out.Rows, row)
		}
	}

	if len(out.Rows) == 0 {
		return nil, core.ErrInsufficientHistory
	}
	for _, d := range tradingWeek {
		if present[d] {
			out.Weekdays = append(out.Weekdays, d)
		}
	}
	return out, nil
}

// windowStats computes mean return and hit rate of the last n trades
func windowStats(trades TradeSet, n int) WindowStats {
	tail := trades.Tail(n)
	var sum float64
	var hits int
	for _, t := range tail {
		r := t.Return()
		sum += r
		if r > 0 {
			hits++
		}
	}
	return WindowStats{
		Window:        n,
		AverageReturn: sum / float64(n) * 100,
		HitRate:       float64(hits) / float64(n) * 100,
	}
}
