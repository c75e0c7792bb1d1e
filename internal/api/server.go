// Package api serves backtests over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	handlerapi "github.com/newthinker/triggerlab/internal/api/handler/api"
	"github.com/newthinker/triggerlab/internal/api/job"
	"github.com/newthinker/triggerlab/internal/api/middleware"
	"github.com/newthinker/triggerlab/internal/api/response"
	"github.com/newthinker/triggerlab/internal/backtest"
	"github.com/newthinker/triggerlab/internal/config"
	"github.com/newthinker/triggerlab/internal/metrics"
)

const healthPath = "/api/health"

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	APIKey         string
	MetricsPath    string
	MaxUploadBytes int64
}

// Dependencies are the services behind the routes. Metrics, Archive and Index may be nil.
type Dependencies struct {
	Backtester *backtest.Backtester
	Jobs       *job.Store
	Defaults   config.BacktestConfig
	Metrics    *metrics.Registry
	Archive    handlerapi.RunArchive
	Index      handlerapi.RunIndex
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Backtester == nil {
		return nil, fmt.Errorf("backtester is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Jobs == nil {
		deps.Jobs = job.NewStore(100, time.Hour)
	}

	s := &Server{
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.setupRoutes(cfg, deps)

	var handler http.Handler = s.mux
	handler = middleware.APIKeyAuth(cfg.APIKey, healthPath, cfg.MetricsPath)(handler)
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}
	handler = middleware.RequestLogger(logger)(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	backtests := handlerapi.NewBacktestHandler(deps.Jobs, deps.Backtester, deps.Defaults, deps.Metrics, s.logger)
	evaluate := handlerapi.NewEvaluateHandler(deps.Backtester, deps.Defaults, cfg.MaxUploadBytes)
	runs := handlerapi.NewRunsHandler(deps.Archive, deps.Index)

	s.mux.HandleFunc("POST /api/v1/backtests", backtests.Create)
	s.mux.HandleFunc("GET /api/v1/backtests/{id}", func(w http.ResponseWriter, r *http.Request) {
		backtests.GetStatus(w, r, r.PathValue("id"))
	})
	s.mux.HandleFunc("POST /api/v1/evaluate", evaluate.Evaluate)

	s.mux.HandleFunc("GET /api/v1/runs", runs.List)
	s.mux.HandleFunc("GET /api/v1/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		runs.Get(w, r, r.PathValue("id"))
	})
	s.mux.HandleFunc("GET /api/v1/runs/{id}/trades", func(w http.ResponseWriter, r *http.Request) {
		runs.TradeRows(w, r, r.PathValue("id"))
	})
	s.mux.HandleFunc("GET /api/v1/runs/{id}/trades.csv", func(w http.ResponseWriter, r *http.Request) {
		runs.Trades(w, r, r.PathValue("id"))
	})

	s.mux.HandleFunc("GET "+healthPath, s.handleHealth)
	if deps.Metrics != nil && cfg.MetricsPath != "" {
		s.mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}
}

// Handler returns the root handler with all middleware applied
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
