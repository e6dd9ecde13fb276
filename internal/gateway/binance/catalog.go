package binance

import (
	"context"
	"time"

	"tradedesk/internal/logger"
	symbolpkg "tradedesk/internal/pkg/symbol"
)

// RefreshCatalog pulls the venue's exchange info and feeds the tradable
// USD-quoted pairs into the resolver. The static table keeps working when
// this fails, so callers can treat errors as soft.
func (s *Source) RefreshCatalog(ctx context.Context) error {
	info, err := s.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return mapVenueError("exchangeInfo", err)
	}
	pairs := make([]symbolpkg.Pair, 0, len(info.Symbols))
	for _, sym := range info.Symbols {
		if sym.Status != "TRADING" || !sym.IsSpotTradingAllowed {
			continue
		}
		display := symbolpkg.DisplayFromAssets(sym.BaseAsset, sym.QuoteAsset)
		if display == "" {
			continue
		}
		pairs = append(pairs, symbolpkg.Pair{
			Display: display,
			Venue:   sym.Symbol,
			Base:    sym.BaseAsset,
			Quote:   sym.QuoteAsset,
		})
	}
	s.resolver.Load(pairs)
	logger.Infof("[binance] symbol catalog refreshed, %d pairs", len(pairs))
	return nil
}

// KeepCatalogFresh refreshes the catalog once at startup and then on the
// given interval until ctx is done.
func (s *Source) KeepCatalogFresh(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Hour
	}
	if err := s.RefreshCatalog(ctx); err != nil {
		logger.Warnf("[binance] initial catalog refresh failed, using static table: %v", err)
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RefreshCatalog(ctx); err != nil {
				logger.Warnf("[binance] catalog refresh failed: %v", err)
			}
		}
	}
}
