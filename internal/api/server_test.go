package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/triggerlab/internal/backtest"
	"github.com/newthinker/triggerlab/internal/config"
	"github.com/newthinker/triggerlab/internal/core"
	"github.com/newthinker/triggerlab/internal/metrics"
	"github.com/newthinker/triggerlab/internal/storage/journal"
)

type staticProvider struct{}

func (staticProvider) Name() string { return "static" }

func (staticProvider) FetchHistory(_ context.Context, q core.HistoryQuery) ([]core.OHLCV, error) {
	return []core.OHLCV{
		{Symbol: q.Symbol, Open: 100, High: 100, Low: 100, Close: 100, Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{Symbol: q.Symbol, Open: 101, High: 103, Low: 100, Close: 102, Time: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
	}, nil
}

func newTestServer(t *testing.T, cfg Config) (*Server, *metrics.Registry) {
	t.Helper()
	reg := metrics.NewRegistry()
	srv, err := NewServer(cfg, Dependencies{
		Backtester: backtest.New(staticProvider{}),
		Defaults:   config.Defaults().Backtest,
		Metrics:    reg,
	}, nil)
	require.NoError(t, err)
	return srv, reg
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestNewServer_RequiresBacktester(t *testing.T) {
	_, err := NewServer(Config{}, Dependencies{}, nil)
	assert.Error(t, err)
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, Config{APIKey: "secret"})

	w := serve(srv, httptest.NewRequest("GET", "/api/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestServer_APIAuth(t *testing.T) {
	srv, _ := newTestServer(t, Config{APIKey: "secret"})

	w := serve(srv, httptest.NewRequest("GET", "/api/v1/runs", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest("GET", "/api/v1/runs", nil)
	req.Header.Set("X-API-Key", "secret")
	w = serve(srv, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	srv, _ := newTestServer(t, Config{APIKey: "secret", MetricsPath: "/metrics"})

	serve(srv, httptest.NewRequest("GET", "/api/health", nil))
	w := serve(srv, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",path="GET /api/health",status="2xx"} 1`)
}

func TestServer_BacktestRoutes(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	body := `{"symbol":"PETR4","start":"2024-01-01","end":"2024-01-31","mode":"daily","threshold":1}`
	w := serve(srv, httptest.NewRequest("POST", "/api/v1/backtests", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusAccepted, w.Code)

	w = serve(srv, httptest.NewRequest("GET", "/api/v1/backtests/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(srv, httptest.NewRequest("GET", "/api/v1/backtests", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_RunRoutesWithoutArchive(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	w := serve(srv, httptest.NewRequest("GET", "/api/v1/runs/abc", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "RUN_NOT_FOUND"))

	w = serve(srv, httptest.NewRequest("GET", "/api/v1/runs/abc/trades.csv", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_RunRoutesFromJournal(t *testing.T) {
	j, err := journal.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	d := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	trades := backtest.TradeSet{{
		Date: d, Side: core.SideLong, Basis: backtest.BasisPrice,
		EntryTime: d.Add(10 * time.Hour), EntryPrice: 100,
		ExitTime: d.Add(15 * time.Hour), ExitPrice: 101,
	}}
	rep, err := backtest.Aggregate(trades, nil)
	require.NoError(t, err)
	require.NoError(t, j.Record(context.Background(), &backtest.Result{
		ID: "run-1", Symbol: "PETR4", Params: backtest.Params{Mode: backtest.ModeWindow, Side: core.SideLong},
		CreatedAt: d, Report: rep,
	}))

	srv, err := NewServer(Config{}, Dependencies{
		Backtester: backtest.New(staticProvider{}),
		Defaults:   config.Defaults().Backtest,
		Index:      j,
	}, nil)
	require.NoError(t, err)

	w := serve(srv, httptest.NewRequest("GET", "/api/v1/runs/run-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"symbol":"PETR4"`)

	w = serve(srv, httptest.NewRequest("GET", "/api/v1/runs/run-1/trades", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"weekday":"Wednesday"`)
	assert.Contains(t, w.Body.String(), `"exit_price":101`)

	w = serve(srv, httptest.NewRequest("GET", "/api/v1/runs/missing/trades", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
