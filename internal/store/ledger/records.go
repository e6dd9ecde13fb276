// Package ledger persists portfolios, holdings, trades and advisory signals
// in SQLite through gorm. Monetary values round-trip as exact decimal
// strings; all arithmetic stays in decimal space.
package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound maps gorm.ErrRecordNotFound and zero-row updates.
	ErrNotFound = errors.New("record not found")
	// ErrInsufficientFunds means available cash does not cover a buy.
	ErrInsufficientFunds = errors.New("insufficient available balance")
	// ErrNoHolding means a sell has no covering position.
	ErrNoHolding = errors.New("no holding for symbol")
)

type User struct {
	ID             string
	Username       string
	PasswordHash   string
	Mode           string
	VenueAPIKey    string
	VenueAPISecret string
	CreatedAt      time.Time
}

type RiskSettings struct {
	Enabled          bool            `json:"enabled"`
	MaxPositionSize  decimal.Decimal `json:"maxPositionSize"`
	MaxDailyLoss     decimal.Decimal `json:"maxDailyLoss"`
	MaxOpenPositions int             `json:"maxOpenPositions"`
}

// DefaultRiskSettings is what a fresh portfolio starts with.
func DefaultRiskSettings() RiskSettings {
	return RiskSettings{
		Enabled:          true,
		MaxPositionSize:  decimal.NewFromInt(1000),
		MaxDailyLoss:     decimal.NewFromInt(500),
		MaxOpenPositions: 5,
	}
}

type Portfolio struct {
	ID               string
	UserID           string
	Mode             string
	TotalBalance     decimal.Decimal
	AvailableBalance decimal.Decimal
	TradingBalance   decimal.Decimal
	PnL24h           decimal.Decimal
	PnL24hPercent    decimal.Decimal
	RiskSettings     RiskSettings
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Holding struct {
	ID           string
	PortfolioID  string
	Symbol       string
	Amount       decimal.Decimal
	AvgPrice     decimal.Decimal
	CurrentPrice decimal.Decimal
	Value        decimal.Decimal
	PnL          decimal.Decimal
	PnLPercent   decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Trade struct {
	ID          string
	UserID      string
	PortfolioID string
	Symbol      string
	Side        string
	Type        string
	Amount      decimal.Decimal
	Price       decimal.Decimal
	Total       decimal.Decimal
	Fee         decimal.Decimal
	Status      string
	Mode        string
	OrderID     string
	AIGenerated bool
	Metadata    map[string]any
	CreatedAt   time.Time
	FilledAt    *time.Time
}

type AISignal struct {
	ID          string
	Symbol      string
	Signal      string
	Confidence  float64
	EntryPrice  decimal.Decimal
	TargetPrice decimal.Decimal
	StopLoss    decimal.Decimal
	RiskReward  decimal.Decimal
	Reasoning   string
	Indicators  map[string]any
	Status      string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	ExecutedAt  *time.Time
}

// TradeFilter narrows and pages trade history queries.
type TradeFilter struct {
	Symbol    string
	Side      string
	Status    string
	SortBy    string // created_at | amount | price | total
	SortOrder string // asc | desc
	Limit     int
	Offset    int
}
