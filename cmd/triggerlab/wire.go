package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/newthinker/triggerlab/internal/backtest"
	"github.com/newthinker/triggerlab/internal/collector"
	"github.com/newthinker/triggerlab/internal/collector/cache"
	"github.com/newthinker/triggerlab/internal/collector/yahoo"
	"github.com/newthinker/triggerlab/internal/config"
	"github.com/newthinker/triggerlab/internal/metrics"
	"github.com/newthinker/triggerlab/internal/storage/archive"
	"github.com/newthinker/triggerlab/internal/storage/journal"
)

func loadConfig(log *zap.Logger) (*config.Config, error) {
	if cfgFile == "" {
		log.Debug("no config file specified, using defaults and environment")
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// stack is everything a command needs to run backtests
type stack struct {
	backtester *backtest.Backtester
	archive    *archive.Archive
	journal    *journal.Journal
}

func (s *stack) Close() error {
	if s.journal != nil {
		return s.journal.Close()
	}
	return nil
}

func newProvider(cfg config.CollectorConfig, reg *metrics.Registry) (collector.Provider, error) {
	y, err := yahoo.New(yahoo.Options{
		BaseURL:         cfg.BaseURL,
		Timeout:         cfg.Timeout,
		Timezone:        cfg.Timezone,
		MaxIntradayDays: cfg.MaxIntradayDays,
	})
	if err != nil {
		return nil, fmt.Errorf("creating yahoo collector: %w", err)
	}
	if cfg.CacheSize == 0 {
		return y, nil
	}

	opts := cache.Options{MaxEntries: cfg.CacheSize, TTL: cfg.CacheTTL}
	if reg != nil {
		opts.OnLookup = reg.RecordCacheLookup
	}
	return cache.New(y, opts), nil
}

func newArchive(cfg config.ArchiveConfig) (*archive.Archive, error) {
	var store archive.Storage
	switch cfg.Type {
	case "localfs":
		fs, err := archive.NewLocalFS(cfg.Path)
		if err != nil {
			return nil, err
		}
		store = fs
	case "s3":
		s3, err := archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		store = s3
	default:
		return nil, nil
	}
	return archive.New(store), nil
}

// newStack wires the collector, recorders and backtester. reg may be nil.
func newStack(cfg *config.Config, reg *metrics.Registry, log *zap.Logger, record bool) (*stack, error) {
	provider, err := newProvider(cfg.Collector, reg)
	if err != nil {
		return nil, err
	}

	opts := []backtest.Option{
		backtest.WithLogger(log),
		backtest.WithIntradayInterval(cfg.Collector.IntradayInterval),
	}
	if reg != nil {
		opts = append(opts, backtest.WithMetrics(reg))
	}

	s := &stack{}
	if record {
		if s.archive, err = newArchive(cfg.Archive); err != nil {
			return nil, fmt.Errorf("creating archive: %w", err)
		}
		if s.archive != nil {
			opts = append(opts, backtest.WithRecorder(s.archive))
		}

		if cfg.Journal.Enabled {
			if s.journal, err = journal.Open(cfg.Journal.Path, log); err != nil {
				return nil, errors.Join(fmt.Errorf("opening journal: %w", err), s.Close())
			}
			opts = append(opts, backtest.WithRecorder(s.journal))
		}
	}

	s.backtester = backtest.New(provider, opts...)
	return s, nil
}
