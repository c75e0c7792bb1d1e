package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/triggerlab/internal/api/job"
	"github.com/newthinker/triggerlab/internal/api/response"
	"github.com/newthinker/triggerlab/internal/backtest"
	"github.com/newthinker/triggerlab/internal/config"
	"github.com/newthinker/triggerlab/internal/core"
	"github.com/newthinker/triggerlab/internal/metrics"
)

const backtestTimeout = 5 * time.Minute

// BacktestRequest is the request body for starting a backtest against online history.
type BacktestRequest struct {
	Symbol string `json:"symbol"`
	Asset  string `json:"asset"`
	Start  string `json:"start"`
	End    string `json:"end"`
	ParamsRequest
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	jobStore   *job.Store
	backtester *backtest.Backtester
	defaults   config.BacktestConfig
	metrics    *metrics.Registry
	logger     *zap.Logger
}

// NewBacktestHandler creates a new backtest handler. metrics and logger may be nil.
func NewBacktestHandler(
	jobStore *job.Store,
	backtester *backtest.Backtester,
	defaults config.BacktestConfig,
	m *metrics.Registry,
	logger *zap.Logger,
) *BacktestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BacktestHandler{
		jobStore:   jobStore,
		backtester: backtester,
		defaults:   defaults,
		metrics:    m,
		logger:     logger,
	}
}

// Create validates the request and starts a backtest job.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, err))
		return
	}

	run, err := req.toRun(h.defaults)
	if err != nil {
		response.Fail(w, err)
		return
	}

	j := h.jobStore.Create("backtest")
	h.reportActive()

	go h.runBacktest(j.ID, run)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}

func (req BacktestRequest) toRun(defaults config.BacktestConfig) (backtest.Request, error) {
	if req.Symbol == "" || req.Start == "" {
		return backtest.Request{}, core.WrapError(core.ErrConfigMissing,
			errors.New("symbol and start are required"))
	}

	asset := core.AssetStockBR
	if req.Asset != "" {
		asset = core.AssetClass(req.Asset)
	}
	if !asset.Valid() {
		return backtest.Request{}, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown asset class %q", req.Asset))
	}

	start, err := time.Parse(time.DateOnly, req.Start)
	if err != nil {
		return backtest.Request{}, core.WrapError(core.ErrConfigInvalid, err)
	}
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if req.End != "" {
		if end, err = time.Parse(time.DateOnly, req.End); err != nil {
			return backtest.Request{}, core.WrapError(core.ErrConfigInvalid, err)
		}
	}

	params, err := req.ParamsRequest.resolve(defaults)
	if err != nil {
		return backtest.Request{}, err
	}

	return backtest.Request{
		Symbol: req.Symbol,
		Asset:  asset,
		Start:  start,
		End:    end,
		Params: params,
	}, nil
}

// runBacktest executes the backtest and updates job status.
func (h *BacktestHandler) runBacktest(jobID string, req backtest.Request) {
	defer h.reportActive()

	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(context.Background(), backtestTimeout)
	defer cancel()
	result, err := h.backtester.Run(ctx, req)

	if err != nil {
		h.logger.Warn("backtest job failed", zap.String("job", jobID), zap.String("symbol", req.Symbol), zap.Error(err))
		var coded *core.Error
		if !errors.As(err, &coded) {
			coded = core.WrapError(core.ErrCollectorFailed, err)
		}
		h.jobStore.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = coded
		})
		return
	}

	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Progress = 100
		j.Result = result
	})
}

func (h *BacktestHandler) reportActive() {
	if h.metrics != nil {
		h.metrics.SetJobsActive(h.jobStore.Active())
	}
}

// GetStatus returns the status of a backtest job.
func (h *BacktestHandler) GetStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	j, err := h.jobStore.Get(jobID)
	if err != nil {
		response.Error(w, http.StatusNotFound, err)
		return
	}

	resp := map[string]any{
		"job_id":   j.ID,
		"status":   j.Status,
		"progress": j.Progress,
	}

	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		resp["error"] = map[string]string{
			"code":    j.Error.Code,
			"message": j.Error.Message,
		}
	}

	response.JSON(w, http.StatusOK, resp)
}
