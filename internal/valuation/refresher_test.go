package valuation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tradedesk/internal/market"
	"tradedesk/internal/store/ledger"
	storemodel "tradedesk/internal/store/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	tickers map[string]market.Ticker
}

func (f *fakeGateway) CurrentPrice(_ context.Context, symbol string) (market.Ticker, error) {
	t, ok := f.tickers[symbol]
	if !ok {
		return market.Ticker{}, market.ErrSymbolNotFound
	}
	return t, nil
}

func (f *fakeGateway) Tickers(_ context.Context, symbols []string) (map[string]market.Ticker, error) {
	out := make(map[string]market.Ticker)
	for _, s := range symbols {
		if t, ok := f.tickers[s]; ok {
			out[s] = t
		}
	}
	return out, nil
}

func (f *fakeGateway) Candles(context.Context, string, string, int) ([]market.Candle, error) {
	return nil, nil
}

func dec(v string) decimal.Decimal {
	d, _ := decimal.NewFromString(v)
	return d
}

func TestRefreshAllRepricesHoldings(t *testing.T) {
	store, err := ledger.NewStore(filepath.Join(t.TempDir(), "valuation.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	user, err := store.CreateUser(ctx, ledger.User{Username: "trader"})
	require.NoError(t, err)
	portfolio, err := store.CreatePortfolio(ctx, ledger.Portfolio{
		UserID:           user.ID,
		Mode:             storemodel.PortfolioModeDemo,
		AvailableBalance: dec("10000"),
	})
	require.NoError(t, err)

	_, err = store.ApplyDemoFill(ctx, ledger.Trade{
		PortfolioID: portfolio.ID, Symbol: "BTCUSD", Side: "buy",
		Amount: dec("0.1"), Price: dec("30000"),
	})
	require.NoError(t, err)

	gateway := &fakeGateway{tickers: map[string]market.Ticker{
		"BTCUSD": {Symbol: "BTCUSD", Price: dec("33000"), Timestamp: time.Now()},
	}}
	refresher := NewRefresher(store, gateway, time.Minute)
	require.NoError(t, refresher.RefreshAll(ctx))

	holding, err := store.GetHolding(ctx, portfolio.ID, "BTCUSD")
	require.NoError(t, err)
	assert.True(t, holding.CurrentPrice.Equal(dec("33000")))
	assert.True(t, holding.Value.Equal(dec("3300")))
	assert.True(t, holding.PnL.Equal(dec("300")), "got %s", holding.PnL)
	assert.True(t, holding.PnLPercent.Equal(dec("10")), "got %s", holding.PnLPercent)

	reloaded, err := store.GetPortfolio(ctx, portfolio.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.PnL24h.Equal(dec("300")))
	assert.True(t, reloaded.PnL24hPercent.Equal(dec("10")))

	// cost basis untouched
	assert.True(t, holding.Amount.Equal(dec("0.1")))
	assert.True(t, holding.AvgPrice.Equal(dec("30000")))
}

func TestRefreshAllSkipsUnknownSymbols(t *testing.T) {
	store, err := ledger.NewStore(filepath.Join(t.TempDir(), "valuation.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	user, err := store.CreateUser(ctx, ledger.User{Username: "trader"})
	require.NoError(t, err)
	portfolio, err := store.CreatePortfolio(ctx, ledger.Portfolio{
		UserID: user.ID, AvailableBalance: dec("10000"),
	})
	require.NoError(t, err)
	_, err = store.ApplyDemoFill(ctx, ledger.Trade{
		PortfolioID: portfolio.ID, Symbol: "OBSCUREUSD", Side: "buy",
		Amount: dec("1"), Price: dec("10"),
	})
	require.NoError(t, err)

	refresher := NewRefresher(store, &fakeGateway{}, time.Minute)
	require.NoError(t, refresher.RefreshAll(ctx))

	holding, err := store.GetHolding(ctx, portfolio.ID, "OBSCUREUSD")
	require.NoError(t, err)
	assert.True(t, holding.CurrentPrice.Equal(dec("10")), "stale price kept when no ticker")
}
