// Package report renders backtest results for terminals and spreadsheets.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/newthinker/triggerlab/internal/backtest"
)

// WriteText prints a result as aligned tables
func WriteText(w io.Writer, res *backtest.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "=== TriggerLab %s ===\n", res.Symbol)
	fmt.Fprintf(tw, "Mode:\t%s\n", describe(res.Params))
	if !res.Start.IsZero() {
		fmt.Fprintf(tw, "Period:\t%s to %s\n", res.Start.Format(time.DateOnly), res.End.Format(time.DateOnly))
	}
	fmt.Fprintf(tw, "Bars:\t%d\n", res.Bars)
	fmt.Fprintf(tw, "Run:\t%s\n\n", res.ID)

	if res.Report == nil || res.NoTrades {
		fmt.Fprintln(tw, "No trades generated for these parameters.")
		return tw.Flush()
	}

	if s := res.Summary; s != nil {
		fmt.Fprintln(tw, "--- Summary ---")
		fmt.Fprintf(tw, "Trades:\t%d\n", s.TotalTrades)
		fmt.Fprintf(tw, "Hits / Misses:\t%d / %d\n", s.Hits, s.Misses)
		fmt.Fprintf(tw, "Hit rate:\t%s\n", pct(s.HitRate))
		fmt.Fprintf(tw, "Miss rate:\t%s\n", pct(s.MissRate))
		fmt.Fprintf(tw, "Cumulative return:\t%s\n", pct(s.CumulativeReturn))
		fmt.Fprintf(tw, "Average return:\t%s\n", pct(s.AverageReturn))
		fmt.Fprintf(tw, "Best / worst trade:\t%s / %s\n", pct(s.MaxReturn), pct(s.MinReturn))
		fmt.Fprintf(tw, "Best / worst excursion:\t%s / %s\n", pct(s.BestExcursion), pct(s.WorstExcursion))
		fmt.Fprintf(tw, "Max drawdown:\t%s\n\n", pct(s.MaxDrawdown))
	}

	if len(res.Recent) > 0 {
		fmt.Fprintln(tw, "--- Recent trades ---")
		fmt.Fprintln(tw, "Window\tAvg return\tHit rate")
		for _, r := range res.Recent {
			fmt.Fprintf(tw, "Last %d\t%s\t%s\n", r.Window, pct(r.AverageReturn), pct(r.HitRate))
		}
		fmt.Fprintln(tw)
	}

	if wr := res.RecentByWeekday; wr != nil {
		fmt.Fprintln(tw, "--- Recent trades by weekday ---")
		header := []string{"Window"}
		for _, d := range wr.Weekdays {
			header = append(header, d.String())
		}
		fmt.Fprintln(tw, strings.Join(header, "\t"))
		for _, row := range wr.Rows {
			cells := []string{fmt.Sprintf("Last %d", row.Window)}
			for _, d := range wr.Weekdays {
				c, ok := row.Cells[d]
				if !ok {
					cells = append(cells, "-")
					continue
				}
				cells = append(cells, fmt.Sprintf("%s (%s)", pct(c.AverageReturn), pct(c.HitRate)))
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		fmt.Fprintln(tw)
	}

	if wb := res.Weekdays; wb != nil {
		fmt.Fprintln(tw, "--- By weekday ---")
		fmt.Fprintln(tw, "Weekday\tTrades\tHits\tMisses\tHit rate\tMiss rate\tAvg return")
		for _, r := range append(wb.Rows, wb.Total) {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
				r.Label, r.Total, r.Hits, r.Misses, pct(r.HitRate), pct(r.MissRate), pct(r.AverageReturn))
		}
	}

	return tw.Flush()
}

// WriteTradesTable prints one line per trade, oldest first.
// Daily trades show their moves against the prior close instead of prices.
func WriteTradesTable(w io.Writer, trades backtest.TradeSet) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "--- Trades ---")
	fmt.Fprintln(tw, "Date\tDay\tEntry\tAt\tExit\tAt\tReturn\tBest\tWorst")
	for _, t := range trades {
		entryAt, exitAt := "open", "close"
		if t.Basis == backtest.BasisPrice {
			entryAt, exitAt = t.EntryTime.Format("15:04"), t.ExitTime.Format("15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.Date.Format(time.DateOnly), t.Weekday().String()[:3],
			level(t, t.EntryPrice), entryAt, level(t, t.ExitPrice), exitAt,
			pct(t.Return()*100), pct(t.Favorable()*100), pct(t.Adverse()*100))
	}
	return tw.Flush()
}

func level(t backtest.Trade, v float64) string {
	if t.Basis == backtest.BasisPercent {
		return pct(v * 100)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func describe(p backtest.Params) string {
	switch p.Mode {
	case backtest.ModeWindow:
		return fmt.Sprintf("window %s-%s, %s", p.Start, p.End, p.Side)
	case backtest.ModeDaily:
		return fmt.Sprintf("daily trigger %+.2f%%, %s", p.Threshold, p.Side)
	default:
		return fmt.Sprintf("trigger %+.2f%% exit %s, %s", p.Threshold, p.End, p.Side)
	}
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

var csvHeader = []string{
	"date", "weekday", "side", "basis",
	"entry_time", "entry_price", "exit_time", "exit_price",
	"high_time", "high", "low_time", "low",
	"day_open", "day_high", "day_low", "day_close",
	"return_pct", "favorable_pct", "adverse_pct",
}

// WriteTradesCSV exports a TradeSet, one row per trade.
// Percent-basis prices are written as moves, returns always as percentages.
func WriteTradesCSV(w io.Writer, trades backtest.TradeSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range trades {
		row := []string{
			t.Date.Format(time.DateOnly),
			t.Weekday().String(),
			string(t.Side),
			string(t.Basis),
			t.EntryTime.Format(time.DateTime), formatF(t.EntryPrice),
			t.ExitTime.Format(time.DateTime), formatF(t.ExitPrice),
			t.HighTime.Format(time.DateTime), formatF(t.High),
			t.LowTime.Format(time.DateTime), formatF(t.Low),
			formatF(t.Day.Open), formatF(t.Day.High), formatF(t.Day.Low), formatF(t.Day.Close),
			formatF(t.Return() * 100), formatF(t.Favorable() * 100), formatF(t.Adverse() * 100),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
