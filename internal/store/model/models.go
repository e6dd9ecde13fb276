package model

import (
	"gorm.io/datatypes"
)

// PortfolioMode separates paper-trading ledgers from venue-backed ones.
const (
	PortfolioModeDemo = "demo"
	PortfolioModeLive = "live"
)

// Trade sides, order types and statuses as stored.
const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"

	OrderTypeMarket   = "market"
	OrderTypeLimit    = "limit"
	OrderTypeStopLoss = "stop-loss"

	TradeStatusPending   = "pending"
	TradeStatusFilled    = "filled"
	TradeStatusCancelled = "cancelled"
	TradeStatusFailed    = "failed"
)

// Signal lifecycle.
const (
	SignalStatusActive    = "active"
	SignalStatusExecuted  = "executed"
	SignalStatusDismissed = "dismissed"
	SignalStatusExpired   = "expired"
)

// Monetary columns are stored as exact decimal strings. SQLite keeps them as
// TEXT; all arithmetic happens in decimal space after parsing.

type UserModel struct {
	ID             string `gorm:"column:id;primaryKey"`
	Username       string `gorm:"column:username;uniqueIndex"`
	PasswordHash   string `gorm:"column:password_hash"`
	Mode           string `gorm:"column:mode"`
	VenueAPIKey    string `gorm:"column:venue_api_key"`
	VenueAPISecret string `gorm:"column:venue_api_secret"`
	CreatedAtUnix  int64  `gorm:"column:created_at"`
}

func (UserModel) TableName() string { return "users" }

type PortfolioModel struct {
	ID               string         `gorm:"column:id;primaryKey"`
	UserID           string         `gorm:"column:user_id;index"`
	Mode             string         `gorm:"column:mode"`
	TotalBalance     string         `gorm:"column:total_balance"`
	AvailableBalance string         `gorm:"column:available_balance"`
	TradingBalance   string         `gorm:"column:trading_balance"`
	PnL24h           string         `gorm:"column:pnl_24h"`
	PnL24hPercent    string         `gorm:"column:pnl_24h_percent"`
	RiskSettings     datatypes.JSON `gorm:"column:risk_settings;type:TEXT"`
	CreatedAtUnix    int64          `gorm:"column:created_at"`
	UpdatedAtUnix    int64          `gorm:"column:updated_at"`
}

func (PortfolioModel) TableName() string { return "portfolios" }

type HoldingModel struct {
	ID            string `gorm:"column:id;primaryKey"`
	PortfolioID   string `gorm:"column:portfolio_id;uniqueIndex:idx_holding_symbol,priority:1"`
	Symbol        string `gorm:"column:symbol;uniqueIndex:idx_holding_symbol,priority:2"`
	Amount        string `gorm:"column:amount"`
	AvgPrice      string `gorm:"column:avg_price"`
	CurrentPrice  string `gorm:"column:current_price"`
	Value         string `gorm:"column:value"`
	PnL           string `gorm:"column:pnl"`
	PnLPercent    string `gorm:"column:pnl_percent"`
	CreatedAtUnix int64  `gorm:"column:created_at"`
	UpdatedAtUnix int64  `gorm:"column:updated_at"`
}

func (HoldingModel) TableName() string { return "holdings" }

type TradeModel struct {
	ID            string         `gorm:"column:id;primaryKey"`
	UserID        string         `gorm:"column:user_id;index"`
	PortfolioID   string         `gorm:"column:portfolio_id;index:idx_trade_portfolio_created,priority:1"`
	Symbol        string         `gorm:"column:symbol;index"`
	Side          string         `gorm:"column:side"`
	Type          string         `gorm:"column:type"`
	Amount        string         `gorm:"column:amount"`
	Price         string         `gorm:"column:price"`
	Total         string         `gorm:"column:total"`
	Fee           string         `gorm:"column:fee"`
	Status        string         `gorm:"column:status;index"`
	Mode          string         `gorm:"column:mode"`
	OrderID       string         `gorm:"column:order_id"`
	AIGenerated   int            `gorm:"column:ai_generated"`
	Metadata      datatypes.JSON `gorm:"column:metadata;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at;index:idx_trade_portfolio_created,priority:2"`
	FilledAtUnix  *int64         `gorm:"column:filled_at"`
}

func (TradeModel) TableName() string { return "trades" }

type AISignalModel struct {
	ID             string         `gorm:"column:id;primaryKey"`
	Symbol         string         `gorm:"column:symbol;index"`
	Signal         string         `gorm:"column:signal"`
	Confidence     float64        `gorm:"column:confidence"`
	EntryPrice     string         `gorm:"column:entry_price"`
	TargetPrice    string         `gorm:"column:target_price"`
	StopLoss       string         `gorm:"column:stop_loss"`
	RiskReward     string         `gorm:"column:risk_reward"`
	Reasoning      string         `gorm:"column:reasoning"`
	Indicators     datatypes.JSON `gorm:"column:indicators;type:TEXT"`
	Status         string         `gorm:"column:status;index"`
	CreatedAtUnix  int64          `gorm:"column:created_at"`
	ExpiresAtUnix  int64          `gorm:"column:expires_at"`
	ExecutedAtUnix *int64         `gorm:"column:executed_at"`
}

func (AISignalModel) TableName() string { return "ai_signals" }
