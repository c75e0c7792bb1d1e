package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/newthinker/triggerlab/internal/api/response"
	"github.com/newthinker/triggerlab/internal/backtest"
	"github.com/newthinker/triggerlab/internal/core"
	"github.com/newthinker/triggerlab/internal/storage/journal"
)

// RunArchive serves stored run reports
type RunArchive interface {
	Load(ctx context.Context, id string) (*backtest.Result, error)
	Trades(ctx context.Context, id string) ([]byte, error)
}

// RunIndex lists journaled runs
type RunIndex interface {
	Runs(ctx context.Context, symbol string, limit int) ([]journal.Run, error)
	Get(ctx context.Context, id string) (journal.Run, error)
	Trades(ctx context.Context, id string) ([]journal.TradeRow, error)
}

// RunsHandler exposes past runs. Either backend may be nil.
type RunsHandler struct {
	archive RunArchive
	index   RunIndex
}

// NewRunsHandler creates a runs handler.
func NewRunsHandler(archive RunArchive, index RunIndex) *RunsHandler {
	return &RunsHandler{archive: archive, index: index}
}

// List returns journaled runs, newest first. Accepts ?symbol= and ?limit=.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		response.JSON(w, http.StatusOK, []journal.Run{})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.index.Runs(r.Context(), r.URL.Query().Get("symbol"), limit)
	if err != nil {
		response.Fail(w, err)
		return
	}
	if runs == nil {
		runs = []journal.Run{}
	}
	response.JSON(w, http.StatusOK, runs)
}

// Get returns the full archived report of a run. Without an archived copy it
// answers with the journaled summary instead.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	err := error(core.ErrRunNotFound)
	if h.archive != nil {
		var res *backtest.Result
		if res, err = h.archive.Load(r.Context(), id); err == nil {
			response.JSON(w, http.StatusOK, res)
			return
		}
	}
	if h.index == nil || !errors.Is(err, core.ErrRunNotFound) {
		response.Fail(w, err)
		return
	}

	run, err := h.index.Get(r.Context(), id)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, run)
}

// TradeRows returns the journaled trades of a run, returns in percent.
func (h *RunsHandler) TradeRows(w http.ResponseWriter, r *http.Request, id string) {
	if h.index == nil {
		response.Fail(w, core.ErrRunNotFound)
		return
	}
	rows, err := h.index.Trades(r.Context(), id)
	if err != nil {
		response.Fail(w, err)
		return
	}
	if rows == nil {
		rows = []journal.TradeRow{}
	}
	response.JSON(w, http.StatusOK, rows)
}

// Trades streams the archived CSV export of a run.
func (h *RunsHandler) Trades(w http.ResponseWriter, r *http.Request, id string) {
	if h.archive == nil {
		response.Fail(w, core.ErrRunNotFound)
		return
	}
	data, err := h.archive.Trades(r.Context(), id)
	if err != nil {
		response.Fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.csv"`)
	w.Write(data)
}
