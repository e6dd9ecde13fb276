package engine

import (
	"context"
	"errors"

	"tradedesk/internal/store/ledger"
)

// fillStrategy finalizes a risk-approved trade. Demo fills mutate the
// ledger; live fills hand the order to the venue and persist a pending
// record.
type fillStrategy interface {
	fill(ctx context.Context, portfolio ledger.Portfolio, trade ledger.Trade) (ledger.Trade, error)
}

type demoFill struct {
	store *ledger.Store
}

func (d *demoFill) fill(ctx context.Context, portfolio ledger.Portfolio, trade ledger.Trade) (ledger.Trade, error) {
	res, err := d.store.ApplyDemoFill(ctx, trade)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return ledger.Trade{}, Wrap(err, KindInvalidRequest, "insufficient available balance")
		case errors.Is(err, ledger.ErrNoHolding):
			return ledger.Trade{}, Wrap(err, KindInvalidRequest, "no %s holding to sell", trade.Symbol)
		case errors.Is(err, ledger.ErrNotFound):
			return ledger.Trade{}, Wrap(err, KindNotFound, "portfolio %s vanished during fill", trade.PortfolioID)
		}
		return ledger.Trade{}, Wrap(err, KindInternal, "demo fill")
	}
	return res.Trade, nil
}
