package apihttp

import (
	"tradedesk/internal/market"
	"tradedesk/internal/store/ledger"
)

// All monetary fields travel as exact-decimal strings.

// userPayload never carries the password hash or venue secret.
type userPayload struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Mode         string `json:"mode"`
	HasVenueKeys bool   `json:"hasVenueKeys"`
}

func userDTO(u ledger.User) userPayload {
	return userPayload{
		ID:           u.ID,
		Username:     u.Username,
		Mode:         u.Mode,
		HasVenueKeys: u.VenueAPIKey != "" && u.VenueAPISecret != "",
	}
}

type portfolioPayload struct {
	ID               string              `json:"id"`
	Mode             string              `json:"mode"`
	TotalBalance     string              `json:"totalBalance"`
	AvailableBalance string              `json:"availableBalance"`
	TradingBalance   string              `json:"tradingBalance"`
	PnL24h           string              `json:"pnl24h"`
	PnL24hPercent    string              `json:"pnl24hPercent"`
	RiskSettings     riskSettingsPayload `json:"riskSettings"`
	UpdatedAt        int64               `json:"updatedAt"`
}

func portfolioDTO(p ledger.Portfolio) portfolioPayload {
	return portfolioPayload{
		ID:               p.ID,
		Mode:             p.Mode,
		TotalBalance:     p.TotalBalance.String(),
		AvailableBalance: p.AvailableBalance.String(),
		TradingBalance:   p.TradingBalance.String(),
		PnL24h:           p.PnL24h.String(),
		PnL24hPercent:    p.PnL24hPercent.String(),
		RiskSettings:     riskSettingsDTO(p.RiskSettings),
		UpdatedAt:        p.UpdatedAt.UnixMilli(),
	}
}

type riskSettingsPayload struct {
	Enabled          bool   `json:"enabled"`
	MaxPositionSize  string `json:"maxPositionSize"`
	MaxDailyLoss     string `json:"maxDailyLoss"`
	MaxOpenPositions int    `json:"maxOpenPositions"`
}

func riskSettingsDTO(rs ledger.RiskSettings) riskSettingsPayload {
	return riskSettingsPayload{
		Enabled:          rs.Enabled,
		MaxPositionSize:  rs.MaxPositionSize.String(),
		MaxDailyLoss:     rs.MaxDailyLoss.String(),
		MaxOpenPositions: rs.MaxOpenPositions,
	}
}

type holdingPayload struct {
	ID           string `json:"id"`
	Symbol       string `json:"symbol"`
	Amount       string `json:"amount"`
	AvgPrice     string `json:"avgPrice"`
	CurrentPrice string `json:"currentPrice"`
	Value        string `json:"value"`
	PnL          string `json:"pnl"`
	PnLPercent   string `json:"pnlPercent"`
}

func holdingDTOs(holdings []ledger.Holding) []holdingPayload {
	out := make([]holdingPayload, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, holdingPayload{
			ID:           h.ID,
			Symbol:       h.Symbol,
			Amount:       h.Amount.String(),
			AvgPrice:     h.AvgPrice.String(),
			CurrentPrice: h.CurrentPrice.String(),
			Value:        h.Value.String(),
			PnL:          h.PnL.String(),
			PnLPercent:   h.PnLPercent.String(),
		})
	}
	return out
}

type tradePayload struct {
	ID          string         `json:"id"`
	PortfolioID string         `json:"portfolioId"`
	Symbol      string         `json:"symbol"`
	Side        string         `json:"side"`
	Type        string         `json:"type"`
	Amount      string         `json:"amount"`
	Price       string         `json:"price"`
	Total       string         `json:"total"`
	Fee         string         `json:"fee"`
	Status      string         `json:"status"`
	Mode        string         `json:"mode"`
	OrderID     string         `json:"orderId,omitempty"`
	AIGenerated bool           `json:"aiGenerated"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   int64          `json:"createdAt"`
	FilledAt    *int64         `json:"filledAt,omitempty"`
}

func tradeDTO(t ledger.Trade) tradePayload {
	out := tradePayload{
		ID:          t.ID,
		PortfolioID: t.PortfolioID,
		Symbol:      t.Symbol,
		Side:        t.Side,
		Type:        t.Type,
		Amount:      t.Amount.String(),
		Price:       t.Price.String(),
		Total:       t.Total.String(),
		Fee:         t.Fee.String(),
		Status:      t.Status,
		Mode:        t.Mode,
		OrderID:     t.OrderID,
		AIGenerated: t.AIGenerated,
		Metadata:    t.Metadata,
		CreatedAt:   t.CreatedAt.UnixMilli(),
	}
	if t.FilledAt != nil {
		ms := t.FilledAt.UnixMilli()
		out.FilledAt = &ms
	}
	return out
}

func tradeDTOs(trades []ledger.Trade) []tradePayload {
	out := make([]tradePayload, 0, len(trades))
	for _, t := range trades {
		out = append(out, tradeDTO(t))
	}
	return out
}

type tickerPayload struct {
	Symbol        string `json:"symbol"`
	Price         string `json:"price"`
	Change24h     string `json:"change24h"`
	ChangePercent string `json:"changePercent"`
	High24h       string `json:"high24h"`
	Low24h        string `json:"low24h"`
	Volume        string `json:"volume"`
	Timestamp     int64  `json:"timestamp"`
}

func tickerDTO(t market.Ticker) tickerPayload {
	return tickerPayload{
		Symbol:        t.Symbol,
		Price:         t.Price.String(),
		Change24h:     t.Change24h.String(),
		ChangePercent: t.ChangePercent.String(),
		High24h:       t.High24h.String(),
		Low24h:        t.Low24h.String(),
		Volume:        t.Volume24h.String(),
		Timestamp:     t.Timestamp.UnixMilli(),
	}
}

type candlePayload struct {
	Time   int64  `json:"time"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

func candleDTOs(candles []market.Candle) []candlePayload {
	out := make([]candlePayload, 0, len(candles))
	for _, c := range candles {
		out = append(out, candlePayload{
			Time:   c.Time.UnixMilli(),
			Open:   c.Open.String(),
			High:   c.High.String(),
			Low:    c.Low.String(),
			Close:  c.Close.String(),
			Volume: c.Volume.String(),
		})
	}
	return out
}

type signalPayload struct {
	ID          string         `json:"id"`
	Symbol      string         `json:"symbol"`
	Signal      string         `json:"signal"`
	Confidence  float64        `json:"confidence"`
	EntryPrice  string         `json:"entryPrice"`
	TargetPrice string         `json:"targetPrice"`
	StopLoss    string         `json:"stopLoss"`
	RiskReward  string         `json:"riskReward"`
	Reasoning   string         `json:"reasoning"`
	Indicators  map[string]any `json:"indicators,omitempty"`
	Status      string         `json:"status"`
	CreatedAt   int64          `json:"createdAt"`
	ExpiresAt   int64          `json:"expiresAt"`
	ExecutedAt  *int64         `json:"executedAt,omitempty"`
}

func signalDTO(s ledger.AISignal) signalPayload {
	out := signalPayload{
		ID:          s.ID,
		Symbol:      s.Symbol,
		Signal:      s.Signal,
		Confidence:  s.Confidence,
		EntryPrice:  s.EntryPrice.String(),
		TargetPrice: s.TargetPrice.String(),
		StopLoss:    s.StopLoss.String(),
		RiskReward:  s.RiskReward.String(),
		Reasoning:   s.Reasoning,
		Indicators:  s.Indicators,
		Status:      s.Status,
		CreatedAt:   s.CreatedAt.UnixMilli(),
		ExpiresAt:   s.ExpiresAt.UnixMilli(),
	}
	if s.ExecutedAt != nil {
		ms := s.ExecutedAt.UnixMilli()
		out.ExecutedAt = &ms
	}
	return out
}

func signalDTOs(signals []ledger.AISignal) []signalPayload {
	out := make([]signalPayload, 0, len(signals))
	for _, s := range signals {
		out = append(out, signalDTO(s))
	}
	return out
}
