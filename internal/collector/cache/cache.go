// Package cache memoizes price-history requests in front of a collector.Provider.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/newthinker/triggerlab/internal/collector"
	"github.com/newthinker/triggerlab/internal/core"
)

// Key identifies one memoized request
type Key struct {
	Symbol   string
	Asset    core.AssetClass
	Start    time.Time
	End      time.Time
	Interval string
}

// KeyOf derives the cache key of a query
func KeyOf(q core.HistoryQuery) Key {
	return Key{
		Symbol:   q.Symbol,
		Asset:    q.Asset,
		Start:    q.Start.UTC(),
		End:      q.End.UTC(),
		Interval: q.Interval,
	}
}

// Options configures a Cached provider
type Options struct {
	// MaxEntries bounds the cache; the least recently used entry is evicted first
	MaxEntries int
	// TTL expires entries; zero keeps them until evicted or invalidated
	TTL time.Duration
	// OnLookup observes every lookup
	OnLookup func(hit bool)
}

// Cached wraps a Provider and answers repeated queries from memory.
// Only successful fetches are stored. It is safe for concurrent use.
type Cached struct {
	next     collector.Provider
	onLookup func(hit bool)
	entries  *expirable.LRU[Key, []core.OHLCV]
}

// New creates a caching provider in front of next
func New(next collector.Provider, opts Options) *Cached {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 64
	}
	return &Cached{
		next:     next,
		onLookup: opts.OnLookup,
		entries:  expirable.NewLRU[Key, []core.OHLCV](opts.MaxEntries, nil, opts.TTL),
	}
}

func (c *Cached) Name() string {
	return c.next.Name()
}

// FetchHistory returns memoized bars or delegates to the wrapped provider
func (c *Cached) FetchHistory(ctx context.Context, q core.HistoryQuery) ([]core.OHLCV, error) {
	key := KeyOf(q)
	if bars, ok := c.entries.Get(key); ok {
		c.observe(true)
		return bars, nil
	}
	c.observe(false)

	bars, err := c.next.FetchHistory(ctx, q)
	if err != nil {
		return nil, err
	}
	c.entries.Add(key, bars)
	return bars, nil
}

// Invalidate drops one entry
func (c *Cached) Invalidate(key Key) {
	c.entries.Remove(key)
}

// Purge drops every entry
func (c *Cached) Purge() {
	c.entries.Purge()
}

// Len returns the number of cached entries
func (c *Cached) Len() int {
	return c.entries.Len()
}

func (c *Cached) observe(hit bool) {
	if c.onLookup != nil {
		c.onLookup(hit)
	}
}
