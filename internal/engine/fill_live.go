package engine

import (
	"context"
	"errors"

	"tradedesk/internal/gateway/binance"
	"tradedesk/internal/logger"
	"tradedesk/internal/store/ledger"
	storemodel "tradedesk/internal/store/model"
)

type liveFill struct {
	store *ledger.Store
	venue VenuePlacer
	creds binance.Credentials
}

func (l *liveFill) fill(ctx context.Context, portfolio ledger.Portfolio, trade ledger.Trade) (ledger.Trade, error) {
	creds, err := l.resolveCreds(ctx, trade.UserID)
	if err != nil {
		return ledger.Trade{}, err
	}
	result, err := l.venue.PlaceOrder(ctx, creds, binance.OrderRequest{
		Symbol:   trade.Symbol,
		Side:     trade.Side,
		Quantity: trade.Amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, binance.ErrOrderRejected):
			return ledger.Trade{}, Wrap(err, KindVenueRejected, "venue rejected the order")
		case errors.Is(err, context.DeadlineExceeded):
			// Fail closed: no local trade record without a venue order id.
			return ledger.Trade{}, Wrap(err, KindVenueTimeout, "venue did not answer in time")
		}
		return ledger.Trade{}, Wrap(err, KindUpstreamUnavailable, "venue order submission failed")
	}

	trade.Status = storemodel.TradeStatusPending
	trade.Mode = storemodel.PortfolioModeLive
	trade.OrderID = result.VenueOrderID
	persisted, err := l.store.CreateTrade(ctx, trade)
	if err != nil {
		// The venue already holds this order. Losing the local record needs
		// manual reconciliation, so it gets the loudest log we have.
		logger.Errorf("[engine] RECONCILIATION NEEDED: venue order %s (%s %s %s) accepted but trade persist failed: %v",
			result.VenueOrderID, trade.Side, trade.Amount, trade.Symbol, err)
		return ledger.Trade{}, Wrap(err, KindInternal, "order %s accepted by venue but not recorded", result.VenueOrderID)
	}
	return persisted, nil
}

// resolveCreds prefers the user's own venue keys and falls back to the
// server-wide credentials from config.
func (l *liveFill) resolveCreds(ctx context.Context, userID string) (binance.Credentials, error) {
	if l.venue == nil {
		return binance.Credentials{}, E(KindCredentialsMissing, "live trading requires venue api credentials")
	}
	if userID != "" {
		user, err := l.store.GetUser(ctx, userID)
		if err == nil && user.VenueAPIKey != "" && user.VenueAPISecret != "" {
			return binance.Credentials{APIKey: user.VenueAPIKey, APISecret: user.VenueAPISecret}, nil
		}
	}
	if l.creds.Empty() {
		return binance.Credentials{}, E(KindCredentialsMissing, "live trading requires venue api credentials")
	}
	return l.creds, nil
}
