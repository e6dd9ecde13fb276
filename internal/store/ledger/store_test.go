package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	storemodel "tradedesk/internal/store/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestPortfolio(t *testing.T, store *Store, available string) Portfolio {
	t.Helper()
	ctx := context.Background()
	user, err := store.CreateUser(ctx, User{Username: "trader"})
	require.NoError(t, err)
	portfolio, err := store.CreatePortfolio(ctx, Portfolio{
		UserID:           user.ID,
		Mode:             storemodel.PortfolioModeDemo,
		AvailableBalance: dec(available),
		RiskSettings:     DefaultRiskSettings(),
	})
	require.NoError(t, err)
	return portfolio
}

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCreatePortfolioBalances(t *testing.T) {
	store := newTestStore(t)
	portfolio := newTestPortfolio(t, store, "10000.00")

	assert.True(t, portfolio.TotalBalance.Equal(dec("10000.00")))
	assert.True(t, portfolio.AvailableBalance.Equal(dec("10000.00")))
	assert.True(t, portfolio.TradingBalance.IsZero())
	assert.True(t, portfolio.RiskSettings.Enabled)
}

func TestDemoFillBuyCreatesHolding(t *testing.T) {
	store := newTestStore(t)
	portfolio := newTestPortfolio(t, store, "10000")
	ctx := context.Background()

	res, err := store.ApplyDemoFill(ctx, Trade{
		UserID:      portfolio.UserID,
		PortfolioID: portfolio.ID,
		Symbol:      "BTCUSD",
		Side:        storemodel.TradeSideBuy,
		Type:        storemodel.OrderTypeMarket,
		Amount:      dec("0.1"),
		Price:       dec("30000"),
	})
	require.NoError(t, err)

	assert.Equal(t, storemodel.TradeStatusFilled, res.Trade.Status)
	assert.NotNil(t, res.Trade.FilledAt)
	assert.Contains(t, res.Trade.OrderID, "demo_")
	assert.True(t, res.Portfolio.AvailableBalance.Equal(dec("7000")))
	assert.True(t, res.Portfolio.TradingBalance.Equal(dec("3000")))
	assert.True(t, res.Portfolio.TotalBalance.Equal(dec("10000")))

	require.NotNil(t, res.Holding)
	assert.True(t, res.Holding.Amount.Equal(dec("0.1")))
	assert.True(t, res.Holding.AvgPrice.Equal(dec("30000")))
}

func TestDemoFillWeightedAverage(t *testing.T) {
	store := newTestStore(t)
	portfolio := newTestPortfolio(t, store, "10000")
	ctx := context.Background()

	_, err := store.ApplyDemoFill(ctx, Trade{
		PortfolioID: portfolio.ID, Symbol: "BTCUSD", Side: "buy",
		Amount: dec("0.1"), Price: dec("30000"),
	})
	require.NoError(t, err)
	res, err := store.ApplyDemoFill(ctx, Trade{
		PortfolioID: portfolio.ID, Symbol: "BTCUSD", Side: "buy",
		Amount: dec("0.05"), Price: dec("36000"),
	})
	require.NoError(t, err)

	require.NotNil(t, res.Holding)
	assert.True(t, res.Holding.Amount.Equal(dec("0.15")))
	assert.True(t, res.Holding.AvgPrice.Equal(dec("32000")), "got %s", res.Holding.AvgPrice)
	assert.True(t, res.Portfolio.TotalBalance.Equal(res.Portfolio.AvailableBalance.Add(res.Portfolio.TradingBalance)))
}

func TestDemoFillFullSellDeletesHolding(t *testing.T) {
	store := newTestStore(t)
	portfolio := newTestPortfolio(t, store, "10000")
	ctx := context.Background()

	_, err := store.ApplyDemoFill(ctx, Trade{
		PortfolioID: portfolio.ID, Symbol: "BTCUSD", Side: "buy",
		Amount: dec("0.1"), Price: dec("30000"),
	})
	require.NoError(t, err)
	_, err = store.ApplyDemoFill(ctx, Trade{
		PortfolioID: portfolio.ID, Symbol: "BTCUSD", Side: "buy",
		Amount: dec("0.05"), Price: dec("36000"),
	})
	require.NoError(t, err)

	res, err := store.ApplyDemoFill(ctx, Trade{
		PortfolioID: portfolio.ID, Symbol: "BTCUSD", Side: "sell",
		Amount: dec("0.15"), Price: dec("40000"),
	})
	require.NoError(t, err)

	assert.Nil(t, res.Holding)
	_, err = store.GetHolding(ctx, portfolio.ID, "BTCUSD")
	assert.ErrorIs(t, err, ErrNotFound)

	// 10000 - 3000 - 1800 + 6000 available, trading clamped at 0
	assert.True(t, res.Portfolio.AvailableBalance.Equal(dec("11200")), "got %s", res.Portfolio.AvailableBalance)
	assert.True(t, res.Portfolio.TradingBalance.IsZero())
	assert.True(t, res.Portfolio.TotalBalance.Equal(res.Portfolio.AvailableBalance))
}

func TestDemoFillOversellNeverGoesNegative(t *testing.T) {
	store := newTestStore(t)
	portfolio := newTestPortfolio(t, store, "10000")
	ctx := context.Background()

	_, err := store.ApplyDemoFill(ctx, Trade{
		PortfolioID: portfolio.ID, Symbol: "ETHUSD", Side: "buy",
		Amount: dec("1"), Price: dec("2000"),
	})
	require.NoError(t, err)

	res, err := store.ApplyDemoFill(ctx, Trade{
		PortfolioID: portfolio.ID, Symbol: "ETHUSD", Side: "sell",
		Amount: dec("2"), Price: dec("2000"),
	})
	require.NoError(t, err)

	assert.Nil(t, res.Holding)
	_, err = store.GetHolding(ctx, portfolio.ID, "ETHUSD")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, res.Portfolio.TradingBalance.GreaterThanOrEqual(decimal.Zero))
}

func TestDemoFillInsufficientFunds(t *testing.T) {
	store := newTestStore(t)
	portfolio := newTestPortfolio(t, store, "100")
	ctx := context.Background()

	_, err := store.ApplyDemoFill(ctx, Trade{
		PortfolioID: portfolio.ID, Symbol: "BTCUSD", Side: "buy",
		Amount: dec("1"), Price: dec("30000"),
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// no partial state leaked out of the transaction
	reloaded, err := store.GetPortfolio(ctx, portfolio.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.AvailableBalance.Equal(dec("100")))
	trades, err := store.ListTrades(ctx, portfolio.ID, TradeFilter{})
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestDemoFillSellWithoutHolding(t *testing.T) {
	store := newTestStore(t)
	portfolio := newTestPortfolio(t, store, "10000")

	_, err := store.ApplyDemoFill(context.Background(), Trade{
		PortfolioID: portfolio.ID, Symbol: "BTCUSD", Side: "sell",
		Amount: dec("0.1"), Price: dec("30000"),
	})
	assert.ErrorIs(t, err, ErrNoHolding)
}

func TestListTradesFilterAndPaging(t *testing.T) {
	store := newTestStore(t)
	portfolio := newTestPortfolio(t, store, "100000")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.ApplyDemoFill(ctx, Trade{
			PortfolioID: portfolio.ID, Symbol: "BTCUSD", Side: "buy",
			Amount: dec("0.01"), Price: dec("30000"),
		})
		require.NoError(t, err)
	}
	_, err := store.ApplyDemoFill(ctx, Trade{
		PortfolioID: portfolio.ID, Symbol: "ETHUSD", Side: "buy",
		Amount: dec("1"), Price: dec("2000"),
	})
	require.NoError(t, err)

	total, err := store.CountTrades(ctx, portfolio.ID, TradeFilter{Symbol: "BTCUSD"})
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	page, err := store.ListTrades(ctx, portfolio.ID, TradeFilter{Symbol: "BTCUSD", Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, page, 1)

	sells, err := store.ListTrades(ctx, portfolio.ID, TradeFilter{Side: "sell"})
	require.NoError(t, err)
	assert.Empty(t, sells)
}

func TestGetTradesSince(t *testing.T) {
	store := newTestStore(t)
	portfolio := newTestPortfolio(t, store, "10000")
	ctx := context.Background()

	_, err := store.ApplyDemoFill(ctx, Trade{
		PortfolioID: portfolio.ID, Symbol: "BTCUSD", Side: "buy",
		Amount: dec("0.01"), Price: dec("30000"),
	})
	require.NoError(t, err)

	since := time.Now().Add(-time.Minute)
	trades, err := store.GetTradesSince(ctx, portfolio.ID, since)
	require.NoError(t, err)
	assert.Len(t, trades, 1)

	trades, err = store.GetTradesSince(ctx, portfolio.ID, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestUpdateTradeStatusMonotonic(t *testing.T) {
	store := newTestStore(t)
	portfolio := newTestPortfolio(t, store, "10000")
	ctx := context.Background()

	trade, err := store.CreateTrade(ctx, Trade{
		PortfolioID: portfolio.ID, Symbol: "BTCUSD", Side: "buy",
		Type: "market", Amount: dec("0.01"), Price: dec("30000"),
		Mode: storemodel.PortfolioModeLive, OrderID: "12345",
	})
	require.NoError(t, err)
	assert.Equal(t, storemodel.TradeStatusPending, trade.Status)

	require.NoError(t, store.UpdateTradeStatus(ctx, trade.ID, storemodel.TradeStatusFilled))

	filled, err := store.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, storemodel.TradeStatusFilled, filled.Status)
	assert.NotNil(t, filled.FilledAt)

	// terminal rows cannot transition again
	err = store.UpdateTradeStatus(ctx, trade.ID, storemodel.TradeStatusCancelled)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRiskSettingsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	portfolio := newTestPortfolio(t, store, "10000")
	ctx := context.Background()

	rs := RiskSettings{
		Enabled:          true,
		MaxPositionSize:  dec("2500.50"),
		MaxDailyLoss:     dec("750"),
		MaxOpenPositions: 3,
	}
	require.NoError(t, store.UpdateRiskSettings(ctx, portfolio.ID, rs))

	reloaded, err := store.GetPortfolio(ctx, portfolio.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.RiskSettings.MaxPositionSize.Equal(dec("2500.50")))
	assert.Equal(t, 3, reloaded.RiskSettings.MaxOpenPositions)

	err = store.UpdateRiskSettings(ctx, "missing", rs)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSignalLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sig, err := store.CreateSignal(ctx, AISignal{
		Symbol:     "BTCUSD",
		Signal:     "buy",
		Confidence: 82,
		EntryPrice: dec("30000"),
		Reasoning:  "oversold bounce",
	})
	require.NoError(t, err)
	assert.Equal(t, storemodel.SignalStatusActive, sig.Status)
	assert.True(t, sig.ExpiresAt.After(sig.CreatedAt))

	require.NoError(t, store.UpdateSignalStatus(ctx, sig.ID, storemodel.SignalStatusExecuted))
	executed, err := store.GetSignal(ctx, sig.ID)
	require.NoError(t, err)
	assert.NotNil(t, executed.ExecutedAt)

	// executed signals are terminal
	err = store.UpdateSignalStatus(ctx, sig.ID, storemodel.SignalStatusDismissed)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpireSignals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateSignal(ctx, AISignal{
		Symbol: "ETHUSD", Signal: "sell",
		CreatedAt: time.Now().Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	_, err = store.CreateSignal(ctx, AISignal{Symbol: "BTCUSD", Signal: "buy"})
	require.NoError(t, err)

	flipped, err := store.ExpireSignals(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, flipped)

	active, err := store.ListSignals(ctx, storemodel.SignalStatusActive, "", 0)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	assert.Equal(t, "BTCUSD", active[0].Symbol)
}
