package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tradedesk/internal/gateway/binance"
	"tradedesk/internal/market"
	"tradedesk/internal/store/ledger"
	storemodel "tradedesk/internal/store/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	err    error
}

func (f *fakeGateway) CurrentPrice(_ context.Context, symbol string) (market.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return market.Ticker{}, f.err
	}
	price, ok := f.prices[symbol]
	if !ok {
		return market.Ticker{}, fmt.Errorf("%s: %w", symbol, market.ErrSymbolNotFound)
	}
	return market.Ticker{Symbol: symbol, Price: price, Timestamp: time.Now()}, nil
}

func (f *fakeGateway) Tickers(ctx context.Context, symbols []string) (map[string]market.Ticker, error) {
	out := make(map[string]market.Ticker, len(symbols))
	for _, s := range symbols {
		t, err := f.CurrentPrice(ctx, s)
		if err != nil {
			continue
		}
		out[s] = t
	}
	return out, nil
}

func (f *fakeGateway) Candles(context.Context, string, string, int) ([]market.Candle, error) {
	return nil, nil
}

type fakeVenue struct {
	result binance.OrderResult
	err    error
	calls  int
}

func (f *fakeVenue) PlaceOrder(context.Context, binance.Credentials, binance.OrderRequest) (binance.OrderResult, error) {
	f.calls++
	if f.err != nil {
		return binance.OrderResult{}, f.err
	}
	return f.result, nil
}

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

type testRig struct {
	engine    *Engine
	store     *ledger.Store
	gateway   *fakeGateway
	venue     *fakeVenue
	portfolio ledger.Portfolio
}

func newTestRig(t *testing.T, mode string, creds binance.Credentials) *testRig {
	t.Helper()
	store, err := ledger.NewStore(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	user, err := store.CreateUser(ctx, ledger.User{Username: "trader"})
	require.NoError(t, err)
	portfolio, err := store.CreatePortfolio(ctx, ledger.Portfolio{
		UserID:           user.ID,
		Mode:             mode,
		AvailableBalance: dec("10000"),
		RiskSettings:     ledger.RiskSettings{Enabled: false},
	})
	require.NoError(t, err)

	gateway := &fakeGateway{prices: map[string]decimal.Decimal{
		"BTCUSD": dec("30000"),
		"ETHUSD": dec("2000"),
	}}
	venue := &fakeVenue{result: binance.OrderResult{VenueOrderID: "987654", Status: "FILLED"}}
	return &testRig{
		engine:    New(store, gateway, venue, creds),
		store:     store,
		gateway:   gateway,
		venue:     venue,
		portfolio: portfolio,
	}
}

func (r *testRig) request(symbol, side, amount string) TradeRequest {
	return TradeRequest{
		UserID:      r.portfolio.UserID,
		PortfolioID: r.portfolio.ID,
		Symbol:      symbol,
		Side:        side,
		Type:        "market",
		Amount:      amount,
	}
}

func TestExecuteTradeDemoBuy(t *testing.T) {
	rig := newTestRig(t, storemodel.PortfolioModeDemo, binance.Credentials{})
	ctx := context.Background()

	trade, err := rig.engine.ExecuteTrade(ctx, rig.request("BTCUSD", "buy", "0.1"))
	require.NoError(t, err)

	assert.Equal(t, storemodel.TradeStatusFilled, trade.Status)
	assert.True(t, trade.Price.Equal(dec("30000")), "market order takes the gateway price")
	assert.Contains(t, trade.OrderID, "demo_")

	portfolio, err := rig.store.GetPortfolio(ctx, rig.portfolio.ID)
	require.NoError(t, err)
	assert.True(t, portfolio.AvailableBalance.Equal(dec("7000")))
	assert.True(t, portfolio.TradingBalance.Equal(dec("3000")))
	assert.True(t, portfolio.TotalBalance.Equal(dec("10000")))

	holding, err := rig.store.GetHolding(ctx, rig.portfolio.ID, "BTCUSD")
	require.NoError(t, err)
	assert.True(t, holding.Amount.Equal(dec("0.1")))
	assert.True(t, holding.AvgPrice.Equal(dec("30000")))
}

func TestExecuteTradeAveragePriceThenClose(t *testing.T) {
	rig := newTestRig(t, storemodel.PortfolioModeDemo, binance.Credentials{})
	ctx := context.Background()

	_, err := rig.engine.ExecuteTrade(ctx, rig.request("BTCUSD", "buy", "0.1"))
	require.NoError(t, err)

	second := rig.request("BTCUSD", "buy", "0.05")
	second.Price = "36000"
	_, err = rig.engine.ExecuteTrade(ctx, second)
	require.NoError(t, err)

	holding, err := rig.store.GetHolding(ctx, rig.portfolio.ID, "BTCUSD")
	require.NoError(t, err)
	assert.True(t, holding.Amount.Equal(dec("0.15")))
	assert.True(t, holding.AvgPrice.Equal(dec("32000")), "got %s", holding.AvgPrice)

	closeOut := rig.request("BTCUSD", "sell", "0.15")
	closeOut.Price = "40000"
	_, err = rig.engine.ExecuteTrade(ctx, closeOut)
	require.NoError(t, err)

	_, err = rig.store.GetHolding(ctx, rig.portfolio.ID, "BTCUSD")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	portfolio, err := rig.store.GetPortfolio(ctx, rig.portfolio.ID)
	require.NoError(t, err)
	assert.True(t, portfolio.TotalBalance.Equal(portfolio.AvailableBalance.Add(portfolio.TradingBalance)))
}

func TestExecuteTradeValidation(t *testing.T) {
	rig := newTestRig(t, storemodel.PortfolioModeDemo, binance.Credentials{})
	ctx := context.Background()

	cases := []struct {
		name string
		edit func(*TradeRequest)
	}{
		{"bad side", func(r *TradeRequest) { r.Side = "hold" }},
		{"zero amount", func(r *TradeRequest) { r.Amount = "0" }},
		{"non numeric amount", func(r *TradeRequest) { r.Amount = "a lot" }},
		{"negative price", func(r *TradeRequest) { r.Price = "-5" }},
		{"bad order type", func(r *TradeRequest) { r.Type = "iceberg" }},
		{"limit without price", func(r *TradeRequest) { r.Type = "limit" }},
		{"missing symbol", func(r *TradeRequest) { r.Symbol = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := rig.request("BTCUSD", "buy", "0.1")
			tc.edit(&req)
			_, err := rig.engine.ExecuteTrade(ctx, req)
			require.Error(t, err)
			assert.Equal(t, KindInvalidRequest, KindOf(err))
		})
	}

	trades, err := rig.store.ListTrades(ctx, rig.portfolio.ID, ledger.TradeFilter{})
	require.NoError(t, err)
	assert.Empty(t, trades, "rejected requests never reach the ledger")
}

func TestExecuteTradePriceResolutionErrors(t *testing.T) {
	rig := newTestRig(t, storemodel.PortfolioModeDemo, binance.Credentials{})
	ctx := context.Background()

	_, err := rig.engine.ExecuteTrade(ctx, rig.request("FAKEUSD", "buy", "1"))
	assert.Equal(t, KindSymbolNotFound, KindOf(err))

	rig.gateway.err = fmt.Errorf("read tcp: %w", market.ErrUpstreamUnavailable)
	_, err = rig.engine.ExecuteTrade(ctx, rig.request("BTCUSD", "buy", "1"))
	assert.Equal(t, KindUpstreamUnavailable, KindOf(err))

	rig.gateway.err = nil
	rig.gateway.prices["BTCUSD"] = decimal.Zero
	_, err = rig.engine.ExecuteTrade(ctx, rig.request("BTCUSD", "buy", "1"))
	assert.Equal(t, KindPriceUnavailable, KindOf(err))
}

func TestExecuteTradeRiskBlocked(t *testing.T) {
	rig := newTestRig(t, storemodel.PortfolioModeDemo, binance.Credentials{})
	ctx := context.Background()
	require.NoError(t, rig.store.UpdateRiskSettings(ctx, rig.portfolio.ID, ledger.RiskSettings{
		Enabled:         true,
		MaxPositionSize: dec("1000"),
	}))

	req := rig.request("BTCUSD", "buy", "1")
	req.Price = "1000.01"
	_, err := rig.engine.ExecuteTrade(ctx, req)
	require.Error(t, err)
	assert.Equal(t, KindRiskBlocked, KindOf(err))
	assert.Contains(t, ReasonOf(err), "1000.01")
	assert.Contains(t, ReasonOf(err), "1000.00")

	// nothing persisted, nothing moved
	trades, err := rig.store.ListTrades(ctx, rig.portfolio.ID, ledger.TradeFilter{})
	require.NoError(t, err)
	assert.Empty(t, trades)
	portfolio, err := rig.store.GetPortfolio(ctx, rig.portfolio.ID)
	require.NoError(t, err)
	assert.True(t, portfolio.AvailableBalance.Equal(dec("10000")))
}

func TestExecuteTradeWrongOwner(t *testing.T) {
	rig := newTestRig(t, storemodel.PortfolioModeDemo, binance.Credentials{})
	req := rig.request("BTCUSD", "buy", "0.1")
	req.UserID = "someone-else"
	_, err := rig.engine.ExecuteTrade(context.Background(), req)
	assert.Equal(t, KindUnauthorized, KindOf(err))
}

func TestExecuteTradeLive(t *testing.T) {
	creds := binance.Credentials{APIKey: "k", APISecret: "s"}
	rig := newTestRig(t, storemodel.PortfolioModeLive, creds)
	ctx := context.Background()

	trade, err := rig.engine.ExecuteTrade(ctx, rig.request("BTCUSD", "buy", "0.1"))
	require.NoError(t, err)
	assert.Equal(t, storemodel.TradeStatusPending, trade.Status)
	assert.Equal(t, "987654", trade.OrderID)
	assert.Equal(t, 1, rig.venue.calls)

	// live fills never touch local balances
	portfolio, err := rig.store.GetPortfolio(ctx, rig.portfolio.ID)
	require.NoError(t, err)
	assert.True(t, portfolio.AvailableBalance.Equal(dec("10000")))
	_, err = rig.store.GetHolding(ctx, rig.portfolio.ID, "BTCUSD")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestExecuteTradeLiveFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("missing credentials", func(t *testing.T) {
		rig := newTestRig(t, storemodel.PortfolioModeLive, binance.Credentials{})
		_, err := rig.engine.ExecuteTrade(ctx, rig.request("BTCUSD", "buy", "0.1"))
		assert.Equal(t, KindCredentialsMissing, KindOf(err))
		assert.Equal(t, 0, rig.venue.calls)
	})

	t.Run("venue rejection", func(t *testing.T) {
		creds := binance.Credentials{APIKey: "k", APISecret: "s"}
		rig := newTestRig(t, storemodel.PortfolioModeLive, creds)
		rig.venue.err = fmt.Errorf("venue error -2010: %w", binance.ErrOrderRejected)
		_, err := rig.engine.ExecuteTrade(ctx, rig.request("BTCUSD", "buy", "0.1"))
		assert.Equal(t, KindVenueRejected, KindOf(err))
		trades, err2 := rig.store.ListTrades(ctx, rig.portfolio.ID, ledger.TradeFilter{})
		require.NoError(t, err2)
		assert.Empty(t, trades, "rejected orders leave no trade record")
	})

	t.Run("venue timeout fails closed", func(t *testing.T) {
		creds := binance.Credentials{APIKey: "k", APISecret: "s"}
		rig := newTestRig(t, storemodel.PortfolioModeLive, creds)
		rig.venue.err = fmt.Errorf("Do: %w", context.DeadlineExceeded)
		_, err := rig.engine.ExecuteTrade(ctx, rig.request("BTCUSD", "buy", "0.1"))
		assert.Equal(t, KindVenueTimeout, KindOf(err))
		trades, err2 := rig.store.ListTrades(ctx, rig.portfolio.ID, ledger.TradeFilter{})
		require.NoError(t, err2)
		assert.Empty(t, trades)
	})
}

func TestExecuteTradeConcurrentBuysNoLostUpdate(t *testing.T) {
	rig := newTestRig(t, storemodel.PortfolioModeDemo, binance.Credentials{})
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := rig.request("BTCUSD", "buy", "0.01")
			req.Price = "30000"
			_, errs[i] = rig.engine.ExecuteTrade(ctx, req)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	holding, err := rig.store.GetHolding(ctx, rig.portfolio.ID, "BTCUSD")
	require.NoError(t, err)
	assert.True(t, holding.Amount.Equal(dec("0.08")), "got %s", holding.Amount)
	assert.True(t, holding.AvgPrice.Equal(dec("30000")))

	portfolio, err := rig.store.GetPortfolio(ctx, rig.portfolio.ID)
	require.NoError(t, err)
	assert.True(t, portfolio.AvailableBalance.Equal(dec("7600")))
	assert.True(t, portfolio.TradingBalance.Equal(dec("2400")))
	assert.True(t, portfolio.TotalBalance.Equal(dec("10000")))
}
