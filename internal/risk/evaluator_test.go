package risk

import (
	"testing"

	"tradedesk/internal/store/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func settings() ledger.RiskSettings {
	return ledger.RiskSettings{
		Enabled:          true,
		MaxPositionSize:  dec("1000"),
		MaxDailyLoss:     dec("500"),
		MaxOpenPositions: 2,
	}
}

func TestDisabledSettingsAlwaysAllow(t *testing.T) {
	in := Input{
		Symbol:     "BTCUSD",
		Side:       "buy",
		TradeValue: dec("999999"),
		Settings:   ledger.RiskSettings{Enabled: false},
	}
	assert.True(t, Evaluate(in).Allowed)
}

func TestMaxPositionSizeBoundary(t *testing.T) {
	in := Input{Symbol: "BTCUSD", Side: "buy", Settings: settings()}

	in.TradeValue = dec("1000")
	assert.True(t, Evaluate(in).Allowed, "exactly at the limit is allowed")

	in.TradeValue = dec("1000.01")
	d := Evaluate(in)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "1000.01")
	assert.Contains(t, d.Reason, "1000.00")
}

func TestMaxPositionSizeIgnoredForSells(t *testing.T) {
	in := Input{
		Symbol:     "BTCUSD",
		Side:       "sell",
		TradeValue: dec("5000"),
		Settings:   settings(),
		Holdings:   []ledger.Holding{{Symbol: "BTCUSD"}},
	}
	assert.True(t, Evaluate(in).Allowed)
}

func TestMaxOpenPositions(t *testing.T) {
	holdings := []ledger.Holding{{Symbol: "BTCUSD"}, {Symbol: "ETHUSD"}}
	in := Input{Side: "buy", TradeValue: dec("100"), Settings: settings(), Holdings: holdings}

	in.Symbol = "SOLUSD"
	d := Evaluate(in)
	assert.False(t, d.Allowed, "third distinct symbol is denied")
	assert.Contains(t, d.Reason, "open positions")

	in.Symbol = "ETHUSD"
	assert.True(t, Evaluate(in).Allowed, "adding to an existing symbol is allowed")
}

func TestMaxDailyLoss(t *testing.T) {
	today := []ledger.Trade{
		{Side: "buy", Total: dec("400")},
		{Side: "sell", Total: dec("100")},
	}
	in := Input{Symbol: "BTCUSD", Side: "buy", Settings: settings(), TodayTrades: today}

	in.TradeValue = dec("150")
	assert.True(t, Evaluate(in).Allowed, "net outflow 450 stays under 500")

	in.TradeValue = dec("200")
	d := Evaluate(in)
	assert.False(t, d.Allowed, "net outflow 500 hits the limit")
	assert.Contains(t, d.Reason, "500.00")

	// sells add notional and relieve the window
	in.Side = "sell"
	in.TradeValue = dec("200")
	in.Holdings = []ledger.Holding{{Symbol: "BTCUSD"}}
	assert.True(t, Evaluate(in).Allowed)
}

func TestRuleOrderPositionSizeFirst(t *testing.T) {
	// a trade that violates both position size and daily loss reports the
	// position-size reason
	in := Input{
		Symbol:     "BTCUSD",
		Side:       "buy",
		TradeValue: dec("2000"),
		Settings:   settings(),
		TodayTrades: []ledger.Trade{
			{Side: "buy", Total: dec("499")},
		},
	}
	d := Evaluate(in)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "position size")
}

func TestEvaluateIsDeterministic(t *testing.T) {
	in := Input{
		Symbol:     "BTCUSD",
		Side:       "buy",
		TradeValue: dec("750"),
		Settings:   settings(),
		Holdings:   []ledger.Holding{{Symbol: "ETHUSD"}},
		TodayTrades: []ledger.Trade{
			{Side: "sell", Total: dec("300")},
		},
	}
	first := Evaluate(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Evaluate(in))
	}
}
