package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/triggerlab/internal/collector"
	"github.com/newthinker/triggerlab/internal/core"
	"github.com/newthinker/triggerlab/internal/metrics"
	"github.com/newthinker/triggerlab/internal/series"
)

// Run statuses reported to metrics
const (
	StatusOK    = "ok"
	StatusEmpty = "empty"
	StatusError = "error"
)

// Recorder persists finished runs. A failing recorder is logged, never fatal.
type Recorder interface {
	Record(ctx context.Context, res *Result) error
}

// Request describes a run against a history provider
type Request struct {
	Symbol string          `json:"symbol"`
	Asset  core.AssetClass `json:"asset"`
	Start  time.Time       `json:"start"`
	End    time.Time       `json:"end"`
	Params Params          `json:"params"`
}

// Result is a finished run with its identity and report
type Result struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Asset     core.AssetClass `json:"asset,omitempty"`
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`
	Params    Params          `json:"params"`
	Bars      int             `json:"bars"`
	CreatedAt time.Time       `json:"created_at"`
	*Report
}

// Backtester fetches history and evaluates rules over it
type Backtester struct {
	provider         collector.Provider
	logger           *zap.Logger
	metrics          *metrics.Registry
	recorders        []Recorder
	intradayInterval string
	now              func() time.Time
}

// Option configures a Backtester
type Option func(*Backtester)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(b *Backtester) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics records run counters on m
func WithMetrics(m *metrics.Registry) Option {
	return func(b *Backtester) { b.metrics = m }
}

// WithRecorder adds a sink for finished runs
func WithRecorder(r Recorder) Option {
	return func(b *Backtester) {
		if r != nil {
			b.recorders = append(b.recorders, r)
		}
	}
}

// WithIntradayInterval sets the bar interval requested for intraday modes
func WithIntradayInterval(interval string) Option {
	return func(b *Backtester) {
		if interval != "" {
			b.intradayInterval = interval
		}
	}
}

// New creates a Backtester. provider may be nil when only EvaluateSeries is used.
func New(provider collector.Provider, opts ...Option) *Backtester {
	b := &Backtester{
		provider:         provider,
		logger:           zap.NewNop(),
		intradayInterval: core.Interval15m,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run fetches the requested history and evaluates the rule over it
func (b *Backtester) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Params.Validate(); err != nil {
		return nil, err
	}
	if req.Symbol == "" {
		return nil, core.ErrSymbolInvalid
	}
	if !req.End.IsZero() && req.End.Before(req.Start) {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("end %s before start %s",
			req.End.Format(time.DateOnly), req.Start.Format(time.DateOnly)))
	}
	if b.provider == nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("no history provider configured"))
	}

	started := b.now()
	bars, err := b.provider.FetchHistory(ctx, core.HistoryQuery{
		Symbol:   req.Symbol,
		Asset:    req.Asset,
		Start:    req.Start,
		End:      req.End,
		Interval: req.Params.Interval(b.intradayInterval),
	})
	if err != nil {
		b.logger.Warn("history fetch failed",
			zap.String("provider", b.provider.Name()),
			zap.String("symbol", req.Symbol),
			zap.Error(err),
		)
		b.observe(req.Params.Mode, StatusError, started)
		return nil, err
	}
	if len(bars) == 0 {
		b.observe(req.Params.Mode, StatusError, started)
		return nil, core.ErrNoData
	}

	s, err := series.New(req.Symbol, series.Normalize(bars))
	if err != nil {
		b.observe(req.Params.Mode, StatusError, started)
		return nil, err
	}

	res, err := b.evaluate(ctx, s, req.Params, started)
	if err != nil {
		return nil, err
	}
	res.Asset = req.Asset
	res.Start, res.End = req.Start, req.End
	b.record(ctx, res)
	return res, nil
}

// EvaluateSeries evaluates a rule over an already loaded series, such as an upload
func (b *Backtester) EvaluateSeries(ctx context.Context, s *series.Series, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	started := b.now()
	res, err := b.evaluate(ctx, s, p, started)
	if err != nil {
		return nil, err
	}
	if n := len(s.Bars); n > 0 {
		res.Start, res.End = s.Bars[0].Date(), s.Bars[n-1].Date()
	}
	b.record(ctx, res)
	return res, nil
}

func (b *Backtester) evaluate(ctx context.Context, s *series.Series, p Params, started time.Time) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report, err := Evaluate(s, p)
	if err != nil {
		b.observe(p.Mode, StatusError, started)
		return nil, err
	}

	status := StatusOK
	if report.NoTrades {
		status = StatusEmpty
	}
	b.observe(p.Mode, status, started)
	if b.metrics != nil {
		b.metrics.RecordTrades(string(p.Mode), len(report.Trades), s.Len())
	}

	b.logger.Info("backtest finished",
		zap.String("symbol", s.Symbol),
		zap.String("mode", string(p.Mode)),
		zap.Int("bars", s.Len()),
		zap.Int("trades", len(report.Trades)),
	)

	return &Result{
		ID:        uuid.NewString(),
		Symbol:    s.Symbol,
		Params:    p,
		Bars:      s.Len(),
		CreatedAt: b.now().UTC(),
		Report:    report,
	}, nil
}

func (b *Backtester) observe(mode Mode, status string, started time.Time) {
	if b.metrics == nil {
		return
	}
	b.metrics.RecordBacktest(string(mode), status, b.now().Sub(started).Seconds())
}

func (b *Backtester) record(ctx context.Context, res *Result) {
	for _, r := range b.recorders {
		if err := r.Record(ctx, res); err != nil {
			b.logger.Warn("failed to record run", zap.String("id", res.ID), zap.Error(err))
		}
	}
}
