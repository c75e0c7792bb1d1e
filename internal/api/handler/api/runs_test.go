package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/triggerlab/internal/backtest"
	"github.com/newthinker/triggerlab/internal/core"
	"github.com/newthinker/triggerlab/internal/storage/journal"
)

type fakeArchive map[string]*backtest.Result

func (f fakeArchive) Load(_ context.Context, id string) (*backtest.Result, error) {
	if r, ok := f[id]; ok {
		return r, nil
	}
	return nil, core.ErrRunNotFound
}

func (f fakeArchive) Trades(_ context.Context, id string) ([]byte, error) {
	if _, ok := f[id]; ok {
		return []byte("date,return_pct\n2024-01-03,0.5\n"), nil
	}
	return nil, core.ErrRunNotFound
}

type fakeIndex []journal.Run

func (f fakeIndex) Runs(_ context.Context, symbol string, limit int) ([]journal.Run, error) {
	var out []journal.Run
	for _, r := range f {
		if symbol == "" || r.Symbol == symbol {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f fakeIndex) Get(_ context.Context, id string) (journal.Run, error) {
	for _, r := range f {
		if r.ID == id {
			return r, nil
		}
	}
	return journal.Run{}, core.ErrRunNotFound
}

func (f fakeIndex) Trades(ctx context.Context, id string) ([]journal.TradeRow, error) {
	run, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]journal.TradeRow, run.Trades)
	for i := range out {
		out[i] = journal.TradeRow{Weekday: "Wednesday", Return: 0.5}
	}
	return out, nil
}

func TestRunsHandler_List(t *testing.T) {
	h := NewRunsHandler(nil, fakeIndex{{ID: "a", Symbol: "PETR4"}, {ID: "b", Symbol: "VALE3"}})

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest("GET", "/api/v1/runs?symbol=VALE3", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []journal.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "b", resp.Data[0].ID)
}

func TestRunsHandler_ListWithoutJournal(t *testing.T) {
	w := httptest.NewRecorder()
	NewRunsHandler(nil, nil).List(w, httptest.NewRequest("GET", "/api/v1/runs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestRunsHandler_GetAndTrades(t *testing.T) {
	h := NewRunsHandler(fakeArchive{"run-1": {ID: "run-1", Symbol: "PETR4"}}, nil)

	w := httptest.NewRecorder()
	h.Get(w, httptest.NewRequest("GET", "/api/v1/runs/run-1", nil), "run-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"symbol":"PETR4"`)

	w = httptest.NewRecorder()
	h.Trades(w, httptest.NewRequest("GET", "/api/v1/runs/run-1/trades.csv", nil), "run-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "2024-01-03")

	w = httptest.NewRecorder()
	h.Get(w, httptest.NewRequest("GET", "/api/v1/runs/nope", nil), "nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunsHandler_NoArchive(t *testing.T) {
	w := httptest.NewRecorder()
	NewRunsHandler(nil, nil).Get(w, httptest.NewRequest("GET", "/api/v1/runs/x", nil), "x")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunsHandler_GetFallsBackToJournal(t *testing.T) {
	index := fakeIndex{{ID: "old", Symbol: "VALE3", Trades: 2}}

	for name, h := range map[string]*RunsHandler{
		"no archive":           NewRunsHandler(nil, index),
		"missing from archive": NewRunsHandler(fakeArchive{}, index),
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Get(w, httptest.NewRequest("GET", "/api/v1/runs/old", nil), "old")
			require.Equal(t, http.StatusOK, w.Code)

			var body struct {
				Data journal.Run `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "VALE3", body.Data.Symbol)
			assert.Equal(t, 2, body.Data.Trades)

			w = httptest.NewRecorder()
			h.Get(w, httptest.NewRequest("GET", "/api/v1/runs/nope", nil), "nope")
			assert.Equal(t, http.StatusNotFound, w.Code)
		})
	}
}

func TestRunsHandler_ArchivePreferredOverJournal(t *testing.T) {
	h := NewRunsHandler(
		fakeArchive{"run-1": {ID: "run-1", Symbol: "PETR4"}},
		fakeIndex{{ID: "run-1", Symbol: "journaled"}},
	)
	w := httptest.NewRecorder()
	h.Get(w, httptest.NewRequest("GET", "/api/v1/runs/run-1", nil), "run-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"symbol":"PETR4"`)
}

func TestRunsHandler_TradeRows(t *testing.T) {
	h := NewRunsHandler(nil, fakeIndex{{ID: "run-1", Trades: 3}, {ID: "empty"}})

	w := httptest.NewRecorder()
	h.TradeRows(w, httptest.NewRequest("GET", "/api/v1/runs/run-1/trades", nil), "run-1")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []journal.TradeRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 3)
	assert.Equal(t, 0.5, body.Data[0].Return)

	w = httptest.NewRecorder()
	h.TradeRows(w, httptest.NewRequest("GET", "/api/v1/runs/empty/trades", nil), "empty")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)

	w = httptest.NewRecorder()
	h.TradeRows(w, httptest.NewRequest("GET", "/api/v1/runs/nope/trades", nil), "nope")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	NewRunsHandler(nil, nil).TradeRows(w, httptest.NewRequest("GET", "/api/v1/runs/x/trades", nil), "x")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
