package api

import (
	"errors"
	"net/http"

	"github.com/newthinker/triggerlab/internal/api/response"
	"github.com/newthinker/triggerlab/internal/backtest"
	"github.com/newthinker/triggerlab/internal/collector/csvfile"
	"github.com/newthinker/triggerlab/internal/config"
	"github.com/newthinker/triggerlab/internal/core"
	"github.com/newthinker/triggerlab/internal/series"
)

// EvaluateResponse is a synchronous run over an uploaded file
type EvaluateResponse struct {
	Result      *backtest.Result `json:"result"`
	DroppedRows int              `json:"dropped_rows"`
}

// EvaluateHandler runs rules over uploaded CSV price files.
type EvaluateHandler struct {
	backtester *backtest.Backtester
	defaults   config.BacktestConfig
	maxUpload  int64
}

// NewEvaluateHandler creates the upload handler. maxUpload is in bytes.
func NewEvaluateHandler(backtester *backtest.Backtester, defaults config.BacktestConfig, maxUpload int64) *EvaluateHandler {
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	return &EvaluateHandler{backtester: backtester, defaults: defaults, maxUpload: maxUpload}
}

// Evaluate expects a multipart form with a "file" part plus optional parameter fields
// (symbol, mode, threshold, side, exit_time, start_time, end_time, weekdays).
func (h *EvaluateHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrMalformedInput, err))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigMissing, errors.New("file part is required")))
		return
	}
	defer file.Close()

	pr, err := paramsFromForm(r.FormValue)
	if err != nil {
		response.Fail(w, err)
		return
	}
	params, err := pr.resolve(h.defaults)
	if err != nil {
		response.Fail(w, err)
		return
	}

	symbol := r.FormValue("symbol")
	if symbol == "" {
		symbol = "UPLOAD"
	}

	parsed, err := csvfile.Parse(file, csvfile.Options{Symbol: symbol, Intraday: params.Mode.Intraday()})
	if err != nil {
		response.Fail(w, err)
		return
	}
	if len(parsed.Bars) == 0 {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrNoData, errors.New("no valid rows in file")))
		return
	}

	s, err := series.New(symbol, parsed.Bars)
	if err != nil {
		response.Fail(w, err)
		return
	}

	res, err := h.backtester.EvaluateSeries(r.Context(), s, params)
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, EvaluateResponse{Result: res, DroppedRows: parsed.Dropped})
}
