// Package valuation recomputes the price-driven fields on holdings and
// portfolios: current price, market value, unrealized P&L. It never touches
// cash balances or cost basis; those belong to the execution engine.
package valuation

import (
	"context"
	"time"

	"tradedesk/internal/logger"
	"tradedesk/internal/market"
	"tradedesk/internal/store/ledger"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Refresher struct {
	store    *ledger.Store
	gateway  market.Gateway
	interval time.Duration
}

func NewRefresher(store *ledger.Store, gateway market.Gateway, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Refresher{store: store, gateway: gateway, interval: interval}
}

// Run refreshes immediately and then on every tick until ctx is done.
// Failures are logged and the next tick tries again.
func (r *Refresher) Run(ctx context.Context) {
	logger.Infof("[valuation] refresher started, interval %s", r.interval)
	if err := r.RefreshAll(ctx); err != nil {
		logger.Warnf("[valuation] refresh failed: %v", err)
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("[valuation] refresher stopped")
			return
		case <-ticker.C:
			if err := r.RefreshAll(ctx); err != nil {
				logger.Warnf("[valuation] refresh failed: %v", err)
			}
		}
	}
}

// RefreshAll walks every portfolio and reprices its holdings with one
// ticker fetch per distinct symbol.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	portfolios, err := r.store.ListPortfolios(ctx)
	if err != nil {
		return err
	}
	holdingsByPortfolio := make(map[string][]ledger.Holding, len(portfolios))
	symbolSet := make(map[string]struct{})
	for _, p := range portfolios {
		holdings, err := r.store.ListHoldings(ctx, p.ID)
		if err != nil {
			return err
		}
		holdingsByPortfolio[p.ID] = holdings
		for _, h := range holdings {
			symbolSet[h.Symbol] = struct{}{}
		}
	}
	if len(symbolSet) == 0 {
		return nil
	}
	symbols := make([]string, 0, len(symbolSet))
	for s := range symbolSet {
		symbols = append(symbols, s)
	}
	tickers, err := r.gateway.Tickers(ctx, symbols)
	if err != nil {
		return err
	}

	for _, p := range portfolios {
		if err := r.refreshPortfolio(ctx, p, holdingsByPortfolio[p.ID], tickers); err != nil {
			logger.Warnf("[valuation] portfolio %s: %v", p.ID, err)
		}
	}
	return nil
}

func (r *Refresher) refreshPortfolio(ctx context.Context, p ledger.Portfolio, holdings []ledger.Holding, tickers map[string]market.Ticker) error {
	totalPnL := decimal.Zero
	costBasis := decimal.Zero
	for _, h := range holdings {
		ticker, ok := tickers[h.Symbol]
		if !ok || ticker.Price.Sign() <= 0 {
			continue
		}
		value := h.Amount.Mul(ticker.Price)
		cost := h.Amount.Mul(h.AvgPrice)
		pnl := value.Sub(cost)
		pnlPercent := decimal.Zero
		if cost.Sign() > 0 {
			pnlPercent = pnl.Div(cost).Mul(hundred)
		}
		if err := r.store.UpdateHoldingValuation(ctx, h.ID,
			ticker.Price.String(), value.String(), pnl.String(), pnlPercent.StringFixed(2)); err != nil {
			return err
		}
		totalPnL = totalPnL.Add(pnl)
		costBasis = costBasis.Add(cost)
	}
	pnlPercent := decimal.Zero
	if costBasis.Sign() > 0 {
		pnlPercent = totalPnL.Div(costBasis).Mul(hundred)
	}
	return r.store.UpdatePortfolioPnL(ctx, p.ID, totalPnL.String(), pnlPercent.StringFixed(2))
}
