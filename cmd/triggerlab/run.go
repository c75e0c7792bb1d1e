package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/triggerlab/internal/backtest"
	"github.com/newthinker/triggerlab/internal/collector/csvfile"
	"github.com/newthinker/triggerlab/internal/config"
	"github.com/newthinker/triggerlab/internal/core"
	"github.com/newthinker/triggerlab/internal/logger"
	"github.com/newthinker/triggerlab/internal/report"
	"github.com/newthinker/triggerlab/internal/series"
)

var runFlags struct {
	file      string
	symbol    string
	asset     string
	from      string
	to        string
	mode      string
	threshold float64
	side      string
	exit      string
	start     string
	end       string
	weekdays  string
	csvOut    string
	trades    bool
	noRecord  bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest and print the report",
	Long: `Run a backtest over online history (--symbol with --from/--to) or over a CSV
export (--file). Parameters not given fall back to the backtest section of the config.`,
	Example: `  triggerlab run --symbol PETR4 --from 2024-01-01 --to 2024-02-15 --threshold 0.5 --exit 15:55
  triggerlab run --file petr4.csv --mode window --start 10:00 --end 17:00 --side short
  triggerlab run --symbol EURUSD --asset forex --from 2020-01-01 --mode daily --threshold -1`,
	RunE: runBacktest,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.file, "file", "", "CSV price file instead of online history")
	f.StringVar(&runFlags.symbol, "symbol", "", "instrument symbol")
	f.StringVar(&runFlags.asset, "asset", string(core.AssetStockBR), "asset class: stock_br, forex or crypto")
	f.StringVar(&runFlags.from, "from", "", "start date YYYY-MM-DD")
	f.StringVar(&runFlags.to, "to", "", "end date YYYY-MM-DD (default today)")
	f.StringVar(&runFlags.mode, "mode", "", "trigger, window or daily")
	f.Float64Var(&runFlags.threshold, "threshold", 0, "signed trigger move in percent")
	f.StringVar(&runFlags.side, "side", "", "long or short")
	f.StringVar(&runFlags.exit, "exit", "", "exit time HH:MM (trigger mode)")
	f.StringVar(&runFlags.start, "start", "", "window start HH:MM (window mode)")
	f.StringVar(&runFlags.end, "end", "", "window end HH:MM (window mode)")
	f.StringVar(&runFlags.weekdays, "weekdays", "", "comma separated weekdays kept in the weekday table")
	f.StringVar(&runFlags.csvOut, "csv-out", "", "write the trades to this CSV file")
	f.BoolVar(&runFlags.trades, "trades", false, "print every trade")
	f.BoolVar(&runFlags.noRecord, "no-record", false, "skip the archive and journal")

	runCmd.MarkFlagsMutuallyExclusive("file", "from")
	rootCmd.AddCommand(runCmd)
}

// runParams overlays the flags that were set on the configured defaults
func runParams(cmd *cobra.Command, defaults config.BacktestConfig) (backtest.Params, error) {
	cfg := defaults
	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Mode = runFlags.mode
	}
	if flags.Changed("threshold") {
		cfg.Threshold = runFlags.threshold
	}
	if flags.Changed("side") {
		cfg.Side = runFlags.side
	}
	if flags.Changed("exit") {
		cfg.ExitTime = runFlags.exit
	}
	if flags.Changed("start") {
		cfg.StartTime = runFlags.start
	}
	if flags.Changed("end") {
		cfg.EndTime = runFlags.end
	}
	if flags.Changed("weekdays") {
		cfg.Weekdays = strings.Split(runFlags.weekdays, ",")
	}
	return cfg.Params()
}

func runBacktest(cmd *cobra.Command, args []string) error {
	level := "warn"
	if debug {
		level = ""
	}
	log := logger.Must(logger.Options{Debug: debug, Level: level})
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	params, err := runParams(cmd, cfg.Backtest)
	if err != nil {
		return err
	}

	st, err := newStack(cfg, nil, log, !runFlags.noRecord)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var res *backtest.Result
	if runFlags.file != "" {
		res, err = runFile(ctx, st.backtester, params, log)
	} else {
		res, err = runOnline(ctx, st.backtester, params)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := report.WriteText(out, res); err != nil {
		return err
	}
	if runFlags.trades && len(res.Trades) > 0 {
		fmt.Fprintln(out)
		if err := report.WriteTradesTable(out, res.Trades); err != nil {
			return err
		}
	}

	if runFlags.csvOut != "" {
		if err := writeTradesFile(runFlags.csvOut, res.Trades); err != nil {
			return fmt.Errorf("writing %s: %w", runFlags.csvOut, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "trades written to %s\n", runFlags.csvOut)
	}
	return nil
}

func runOnline(ctx context.Context, bt *backtest.Backtester, params backtest.Params) (*backtest.Result, error) {
	if runFlags.symbol == "" || runFlags.from == "" {
		return nil, errors.New("--symbol and --from are required without --file")
	}
	asset := core.AssetClass(runFlags.asset)
	if !asset.Valid() {
		return nil, fmt.Errorf("unknown asset class %q", runFlags.asset)
	}

	from, err := time.Parse(time.DateOnly, runFlags.from)
	if err != nil {
		return nil, fmt.Errorf("invalid from date format (expected YYYY-MM-DD): %w", err)
	}
	to := time.Now().UTC().Truncate(24 * time.Hour)
	if runFlags.to != "" {
		if to, err = time.Parse(time.DateOnly, runFlags.to); err != nil {
			return nil, fmt.Errorf("invalid to date format (expected YYYY-MM-DD): %w", err)
		}
	}

	return bt.Run(ctx, backtest.Request{
		Symbol: runFlags.symbol,
		Asset:  asset,
		Start:  from,
		End:    to,
		Params: params,
	})
}

func runFile(ctx context.Context, bt *backtest.Backtester, params backtest.Params, log *zap.Logger) (*backtest.Result, error) {
	f, err := os.Open(runFlags.file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	symbol := runFlags.symbol
	if symbol == "" {
		symbol = strings.TrimSuffix(filepath.Base(runFlags.file), filepath.Ext(runFlags.file))
	}

	parsed, err := csvfile.Parse(f, csvfile.Options{Symbol: symbol, Intraday: params.Mode.Intraday()})
	if err != nil {
		return nil, err
	}
	if parsed.Dropped > 0 {
		log.Warn("dropped malformed rows", zap.String("file", runFlags.file), zap.Int("rows", parsed.Dropped))
	}
	if len(parsed.Bars) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no valid rows in %s", runFlags.file))
	}

	s, err := series.New(symbol, parsed.Bars)
	if err != nil {
		return nil, err
	}
	return bt.EvaluateSeries(ctx, s, params)
}

func writeTradesFile(path string, trades backtest.TradeSet) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteTradesCSV(f, trades); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
