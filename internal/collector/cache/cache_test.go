package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/triggerlab/internal/collector"
	"github.com/newthinker/triggerlab/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) FetchHistory(ctx context.Context, q core.HistoryQuery) ([]core.OHLCV, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return []core.OHLCV{{Symbol: q.Symbol, Close: float64(p.calls), Time: q.Start}}, nil
}

func query(symbol string) core.HistoryQuery {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return core.HistoryQuery{
		Symbol:   symbol,
		Asset:    core.AssetStockBR,
		Start:    start,
		End:      start.AddDate(0, 1, 0),
		Interval: core.IntervalDaily,
	}
}

func TestCached_ImplementsProvider(t *testing.T) {
	var _ collector.Provider = (*Cached)(nil)
}

func TestCached_MemoizesIdenticalQueries(t *testing.T) {
	next := &countingProvider{}
	var hits, misses int
	c := New(next, Options{OnLookup: func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	}})
	ctx := context.Background()

	first, err := c.FetchHistory(ctx, query("PETR4"))
	require.NoError(t, err)
	second, err := c.FetchHistory(ctx, query("PETR4"))
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
	assert.Equal(t, "counting", c.Name())
}

func TestCached_KeyIncludesAssetClass(t *testing.T) {
	next := &countingProvider{}
	c := New(next, Options{})
	ctx := context.Background()

	q := query("BTC")
	_, _ = c.FetchHistory(ctx, q)
	q.Asset = core.AssetCrypto
	_, _ = c.FetchHistory(ctx, q)

	assert.Equal(t, 2, next.calls)
}

func TestCached_DoesNotStoreErrors(t *testing.T) {
	next := &countingProvider{err: errors.New("down")}
	c := New(next, Options{})
	ctx := context.Background()

	_, err := c.FetchHistory(ctx, query("PETR4"))
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())

	next.err = nil
	_, err = c.FetchHistory(ctx, query("PETR4"))
	assert.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCached_Invalidate(t *testing.T) {
	next := &countingProvider{}
	c := New(next, Options{})
	ctx := context.Background()

	_, _ = c.FetchHistory(ctx, query("PETR4"))
	c.Invalidate(KeyOf(query("PETR4")))
	_, _ = c.FetchHistory(ctx, query("PETR4"))

	assert.Equal(t, 2, next.calls)
}

func TestCached_Purge(t *testing.T) {
	c := New(&countingProvider{}, Options{})
	ctx := context.Background()

	_, _ = c.FetchHistory(ctx, query("PETR4"))
	_, _ = c.FetchHistory(ctx, query("VALE3"))
	require.Equal(t, 2, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCached_EvictsLeastRecentlyUsed(t *testing.T) {
	next := &countingProvider{}
	c := New(next, Options{MaxEntries: 2})
	ctx := context.Background()

	_, _ = c.FetchHistory(ctx, query("A"))
	_, _ = c.FetchHistory(ctx, query("B"))
	_, _ = c.FetchHistory(ctx, query("A")) // A is now the most recent
	_, _ = c.FetchHistory(ctx, query("C")) // evicts B

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 3, next.calls)
	_, _ = c.FetchHistory(ctx, query("A"))
	assert.Equal(t, 3, next.calls, "A still cached")
	_, _ = c.FetchHistory(ctx, query("B"))
	assert.Equal(t, 4, next.calls, "B was evicted")
}

func TestCached_TTL(t *testing.T) {
	next := &countingProvider{}
	c := New(next, Options{TTL: 50 * time.Millisecond})
	ctx := context.Background()

	_, _ = c.FetchHistory(ctx, query("PETR4"))
	_, _ = c.FetchHistory(ctx, query("PETR4"))
	assert.Equal(t, 1, next.calls)

	time.Sleep(120 * time.Millisecond)
	_, _ = c.FetchHistory(ctx, query("PETR4"))
	assert.Equal(t, 2, next.calls)
}

func TestCached_ZeroTTLKeepsEntries(t *testing.T) {
	next := &countingProvider{}
	c := New(next, Options{})
	ctx := context.Background()

	_, _ = c.FetchHistory(ctx, query("PETR4"))
	time.Sleep(10 * time.Millisecond)
	_, _ = c.FetchHistory(ctx, query("PETR4"))
	assert.Equal(t, 1, next.calls)
}
