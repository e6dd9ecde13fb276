// Package engine runs the trade execution pipeline: validate the request,
// resolve an execution price, gate it through risk limits, then fill it
// against the demo ledger or forward it to the live venue.
package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"tradedesk/internal/gateway/binance"
	"tradedesk/internal/logger"
	"tradedesk/internal/market"
	"tradedesk/internal/risk"
	"tradedesk/internal/store/ledger"
	storemodel "tradedesk/internal/store/model"

	"github.com/shopspring/decimal"
)

// VenuePlacer submits live orders. Satisfied by *binance.Venue.
type VenuePlacer interface {
	PlaceOrder(ctx context.Context, creds binance.Credentials, req binance.OrderRequest) (binance.OrderResult, error)
}

// TradeRequest is a raw trade submission. Numeric fields arrive as strings
// and are parsed exactly once, here.
type TradeRequest struct {
	UserID      string
	PortfolioID string
	Symbol      string
	Side        string
	Type        string
	Amount      string
	Price       string
	StopLoss    string
	TakeProfit  string
	AIGenerated bool
	Metadata    map[string]any
}

type Engine struct {
	store   *ledger.Store
	gateway market.Gateway
	locks   *keyedLocks
	demo    fillStrategy
	live    fillStrategy
}

func New(store *ledger.Store, gateway market.Gateway, venue VenuePlacer, creds binance.Credentials) *Engine {
	return &Engine{
		store:   store,
		gateway: gateway,
		locks:   newKeyedLocks(),
		demo:    &demoFill{store: store},
		live:    &liveFill{store: store, venue: venue, creds: creds},
	}
}

// ExecuteTrade runs one request through the full pipeline. Any error leaves
// the ledger untouched; the trade record is only ever written by the fill
// strategies.
func (e *Engine) ExecuteTrade(ctx context.Context, req TradeRequest) (ledger.Trade, error) {
	parsed, err := e.validate(req)
	if err != nil {
		return ledger.Trade{}, err
	}

	price, err := e.resolvePrice(ctx, parsed)
	if err != nil {
		return ledger.Trade{}, err
	}
	parsed.price = price

	// Serialize everything from the risk read to the ledger write per
	// portfolio, so two concurrent fills cannot both pass risk against the
	// same stale state or tear the average-price math.
	release := e.locks.acquire(req.PortfolioID)
	defer release()

	portfolio, err := e.store.GetPortfolio(ctx, req.PortfolioID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ledger.Trade{}, Wrap(err, KindNotFound, "portfolio %s not found", req.PortfolioID)
		}
		return ledger.Trade{}, Wrap(err, KindInternal, "load portfolio")
	}
	if parsed.userID != "" && portfolio.UserID != parsed.userID {
		return ledger.Trade{}, E(KindUnauthorized, "portfolio does not belong to account")
	}

	if err := e.checkRisk(ctx, portfolio, parsed); err != nil {
		return ledger.Trade{}, err
	}

	trade := ledger.Trade{
		UserID:      portfolio.UserID,
		PortfolioID: portfolio.ID,
		Symbol:      parsed.symbol,
		Side:        parsed.side,
		Type:        parsed.orderType,
		Amount:      parsed.amount,
		Price:       parsed.price,
		Total:       parsed.amount.Mul(parsed.price),
		Mode:        portfolio.Mode,
		AIGenerated: req.AIGenerated,
		Metadata:    buildMetadata(req),
	}

	strategy := e.demo
	if portfolio.Mode == storemodel.PortfolioModeLive {
		strategy = e.live
	}
	filled, err := strategy.fill(ctx, portfolio, trade)
	if err != nil {
		return ledger.Trade{}, err
	}
	logger.Infof("[engine] %s %s %s %s @ %s (%s) -> %s",
		portfolio.Mode, filled.Side, filled.Amount, filled.Symbol, filled.Price, filled.OrderID, filled.Status)
	return filled, nil
}

type parsedRequest struct {
	userID     string
	symbol     string
	side       string
	orderType  string
	amount     decimal.Decimal
	price      decimal.Decimal
	priceGiven bool
}

func (e *Engine) validate(req TradeRequest) (parsedRequest, error) {
	out := parsedRequest{userID: strings.TrimSpace(req.UserID)}

	out.symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if out.symbol == "" {
		return out, E(KindInvalidRequest, "symbol is required")
	}
	if req.PortfolioID == "" {
		return out, E(KindInvalidRequest, "portfolio id is required")
	}

	out.side = strings.ToLower(strings.TrimSpace(req.Side))
	if out.side != storemodel.TradeSideBuy && out.side != storemodel.TradeSideSell {
		return out, E(KindInvalidRequest, "side must be buy or sell")
	}

	out.orderType = strings.ToLower(strings.TrimSpace(req.Type))
	if out.orderType == "" {
		out.orderType = storemodel.OrderTypeMarket
	}
	switch out.orderType {
	case storemodel.OrderTypeMarket, storemodel.OrderTypeLimit, storemodel.OrderTypeStopLoss:
	default:
		return out, E(KindInvalidRequest, "order type must be market, limit or stop-loss")
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || amount.Sign() <= 0 {
		return out, E(KindInvalidRequest, "amount must be a positive number")
	}
	out.amount = amount

	if raw := strings.TrimSpace(req.Price); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil || price.Sign() <= 0 {
			return out, E(KindInvalidRequest, "price must be a positive number")
		}
		out.price = price
		out.priceGiven = true
	}
	if out.orderType != storemodel.OrderTypeMarket && !out.priceGiven {
		return out, E(KindInvalidRequest, "%s orders require a price", out.orderType)
	}
	return out, nil
}

func (e *Engine) resolvePrice(ctx context.Context, parsed parsedRequest) (decimal.Decimal, error) {
	if parsed.priceGiven {
		return parsed.price, nil
	}
	ticker, err := e.gateway.CurrentPrice(ctx, parsed.symbol)
	if err != nil {
		if errors.Is(err, market.ErrSymbolNotFound) {
			return decimal.Zero, Wrap(err, KindSymbolNotFound, "no market for %s", parsed.symbol)
		}
		return decimal.Zero, Wrap(err, KindUpstreamUnavailable, "price fetch for %s failed", parsed.symbol)
	}
	if ticker.Price.Sign() <= 0 {
		return decimal.Zero, E(KindPriceUnavailable, "no usable price for %s", parsed.symbol)
	}
	return ticker.Price, nil
}

func (e *Engine) checkRisk(ctx context.Context, portfolio ledger.Portfolio, parsed parsedRequest) error {
	holdings, err := e.store.ListHoldings(ctx, portfolio.ID)
	if err != nil {
		return Wrap(err, KindInternal, "load holdings")
	}
	today, err := e.store.GetTradesSince(ctx, portfolio.ID, startOfDay(time.Now()))
	if err != nil {
		return Wrap(err, KindInternal, "load trade history")
	}
	decision := risk.Evaluate(risk.Input{
		Symbol:      parsed.symbol,
		Side:        parsed.side,
		TradeValue:  parsed.amount.Mul(parsed.price),
		Settings:    portfolio.RiskSettings,
		Holdings:    holdings,
		TodayTrades: today,
	})
	if !decision.Allowed {
		return E(KindRiskBlocked, "%s", decision.Reason)
	}
	return nil
}

func startOfDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func buildMetadata(req TradeRequest) map[string]any {
	meta := make(map[string]any, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	if v := strings.TrimSpace(req.StopLoss); v != "" {
		meta["stopLoss"] = v
	}
	if v := strings.TrimSpace(req.TakeProfit); v != "" {
		meta["takeProfit"] = v
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
