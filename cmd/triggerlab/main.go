package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "triggerlab",
	Short: "triggerlab - intraday trigger backtests",
	Long: `triggerlab replays a fixed entry rule over historical prices and reports
how the resulting trades performed, overall, recently and by weekday.
History comes from Yahoo Finance or from a local CSV export.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
