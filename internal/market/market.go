// Package market defines the exchange-facing read contracts: current
// tickers and historical candles, normalized away from any venue format.
package market

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrSymbolNotFound means the venue has no market matching the symbol.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrUpstreamUnavailable wraps transport or parse failures from the venue.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Ticker is a normalized 24h price snapshot for one symbol.
type Ticker struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Open          decimal.Decimal `json:"open"`
	High24h       decimal.Decimal `json:"high24h"`
	Low24h        decimal.Decimal `json:"low24h"`
	Volume24h     decimal.Decimal `json:"volume24h"`
	Change24h     decimal.Decimal `json:"change24h"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Candle is one OHLCV bar. Time is the bar open time.
type Candle struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// Gateway fetches normalized market data for display symbols (e.g. BTCUSD).
// Implementations perform no retries; callers decide retry policy.
type Gateway interface {
	// CurrentPrice returns the latest 24h snapshot for one symbol.
	CurrentPrice(ctx context.Context, symbol string) (Ticker, error)
	// Tickers returns snapshots for a symbol set, keyed by display symbol.
	// Symbols the venue does not know are omitted from the result.
	Tickers(ctx context.Context, symbols []string) (map[string]Ticker, error)
	// Candles returns up to limit bars for the interval, most-recent-last.
	Candles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}
