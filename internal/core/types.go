package core

import "time"

// AssetClass selects how an instrument symbol is resolved by online providers
type AssetClass string

const (
	AssetStockBR AssetClass = "stock_br"
	AssetForex   AssetClass = "forex"
	AssetCrypto  AssetClass = "crypto"
)

// Valid reports whether the asset class is one of the known classes
func (a AssetClass) Valid() bool {
	switch a {
	case AssetStockBR, AssetForex, AssetCrypto:
		return true
	}
	return false
}

// Side is the direction of a simulated position
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Valid reports whether the side is long or short
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// Interval names used when requesting history
const (
	Interval15m   = "15m"
	IntervalDaily = "1d"
)

// OHLCV represents a candlestick/bar
type OHLCV struct {
	Symbol   string    `json:"symbol,omitempty"`
	Interval string    `json:"interval,omitempty"` // "15m", "1d"
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   int64     `json:"volume,omitempty"`
	Time     time.Time `json:"time"`
}

// Date returns the calendar day of the bar at midnight, in the bar's location
func (b OHLCV) Date() time.Time {
	return DateOf(b.Time)
}

// DateOf truncates t to its calendar day
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// HistoryQuery identifies one price-history request
type HistoryQuery struct {
	Symbol   string
	Asset    AssetClass
	Start    time.Time
	End      time.Time
	Interval string
}
