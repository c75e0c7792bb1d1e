package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata" // exchange timezones must resolve on minimal images

	"github.com/newthinker/triggerlab/internal/core"
)

const (
	defaultBaseURL   = "https://query1.finance.yahoo.com/v8/finance/chart"
	defaultTimezone  = "America/Sao_Paulo"
	defaultMaxDays   = 60
	defaultUserAgent = "Mozilla/5.0 (compatible; triggerlab)"
)

// validSymbol matches tickers like PETR4, PETR4.SA, EURUSD, EURUSD=X, BTC-USD
var validSymbol = regexp.MustCompile(`^[A-Za-z0-9^][A-Za-z0-9.\-=^]{0,19}$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return core.WrapError(core.ErrSymbolInvalid, fmt.Errorf("symbol cannot be empty"))
	}
	if !validSymbol.MatchString(symbol) {
		return core.WrapError(core.ErrSymbolInvalid, fmt.Errorf("invalid symbol format: %s", symbol))
	}
	return nil
}

// Options configures the Yahoo provider
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Timezone is the exchange clock bars are converted to before the offset is dropped
	Timezone string
	// MaxIntradayDays caps the span of intraday requests
	MaxIntradayDays int
}

// Yahoo implements collector.Provider over the Yahoo Finance chart API
type Yahoo struct {
	client  *http.Client
	baseURL string
	loc     *time.Location
	maxDays int
}

// New creates a new Yahoo provider
func New(opts Options) (*Yahoo, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Timezone == "" {
		opts.Timezone = defaultTimezone
	}
	if opts.MaxIntradayDays <= 0 {
		opts.MaxIntradayDays = defaultMaxDays
	}

	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("loading timezone: %w", err))
	}

	return &Yahoo{
		client:  &http.Client{Timeout: opts.Timeout},
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		loc:     loc,
		maxDays: opts.MaxIntradayDays,
	}, nil
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// toYahooSymbol converts a plain ticker to the Yahoo form for its asset class
func toYahooSymbol(symbol string, asset core.AssetClass) string {
	s := strings.ToUpper(symbol)
	switch asset {
	case core.AssetStockBR:
		if !strings.HasSuffix(s, ".SA") {
			s += ".SA"
		}
	case core.AssetForex:
		if !strings.HasSuffix(s, "=X") {
			s += "=X"
		}
	}
	return s
}

// FetchHistory fetches historical OHLCV data
func (y *Yahoo) FetchHistory(ctx context.Context, q core.HistoryQuery) ([]core.OHLCV, error) {
	if err := validateSymbol(q.Symbol); err != nil {
		return nil, err
	}
	interval := toYahooInterval(q.Interval)
	if interval != "1d" && q.End.Sub(q.Start) > time.Duration(y.maxDays)*24*time.Hour {
		return nil, core.WrapError(core.ErrRangeTooLong,
			fmt.Errorf("intraday history is limited to %d days", y.maxDays))
	}

	params := url.Values{}
	params.Set("interval", interval)
	params.Set("period1", fmt.Sprint(q.Start.Unix()))
	params.Set("period2", fmt.Sprint(q.End.Unix()))
	endpoint := fmt.Sprintf("%s/%s?%s", y.baseURL, url.PathEscape(toYahooSymbol(q.Symbol, q.Asset)), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("fetching history: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("decoding response: %w", err))
	}

	if result.Chart.Error != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description))
	}

	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no data for symbol: %s", q.Symbol))
	}

	r := result.Chart.Result[0]
	quotes := r.Indicators.Quote[0]

	data := make([]core.OHLCV, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		o, h, l, c := at(quotes.Open, i), at(quotes.High, i), at(quotes.Low, i), at(quotes.Close, i)
		if o == nil || h == nil || l == nil || c == nil {
			continue
		}
		var vol int64
		if v := at(quotes.Volume, i); v != nil {
			vol = int64(*v)
		}
		data = append(data, core.OHLCV{
			Symbol:   q.Symbol,
			Interval: q.Interval,
			Open:     *o,
			High:     *h,
			Low:      *l,
			Close:    *c,
			Volume:   vol,
			Time:     y.wallClock(ts),
		})
	}

	if len(data) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no bars for symbol: %s", q.Symbol))
	}
	return data, nil
}

// wallClock converts a unix timestamp to the exchange wall clock expressed in UTC
func (y *Yahoo) wallClock(ts int64) time.Time {
	t := time.Unix(ts, 0).In(y.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func toYahooInterval(interval string) string {
	switch interval {
	case "1m", "5m", "15m", "30m", "1h":
		return interval
	default:
		return "1d"
	}
}

func at[T any](values []*T, i int) *T {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}
