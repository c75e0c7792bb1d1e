package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/triggerlab/internal/api"
	"github.com/newthinker/triggerlab/internal/api/job"
	"github.com/newthinker/triggerlab/internal/logger"
	"github.com/newthinker/triggerlab/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Must(logger.Options{Debug: debug})
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	st, err := newStack(cfg, reg, log, true)
	if err != nil {
		return err
	}
	defer st.Close()

	deps := api.Dependencies{
		Backtester: st.backtester,
		Jobs:       job.NewStore(cfg.Server.MaxJobs, time.Duration(cfg.Server.JobTTLHours)*time.Hour),
		Defaults:   cfg.Backtest,
		Metrics:    reg,
	}
	// nil pointers must not become non-nil interfaces
	if st.archive != nil {
		deps.Archive = st.archive
	}
	if st.journal != nil {
		deps.Index = st.journal
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	server, err := api.NewServer(api.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		APIKey:         cfg.Server.APIKey,
		MetricsPath:    metricsPath,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
	}, deps, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	log.Info("starting triggerlab server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("archive", st.archive != nil),
		zap.Bool("journal", st.journal != nil),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info("shutting down triggerlab server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
