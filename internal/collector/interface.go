// Package collector supplies price series to the backtest engine.
package collector

import (
	"context"

	"github.com/newthinker/triggerlab/internal/core"
)

// Provider fetches historical OHLCV bars for one instrument.
// Bars are returned ascending by time, with timestamps already in the
// exchange's local wall clock and no offset remaining.
type Provider interface {
	Name() string
	FetchHistory(ctx context.Context, q core.HistoryQuery) ([]core.OHLCV, error)
}
