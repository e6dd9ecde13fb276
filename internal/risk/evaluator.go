// Package risk decides whether a proposed trade stays inside the account's
// configured limits. Evaluation is pure: it reads the inputs it is handed
// and never touches the ledger.
package risk

import (
	"fmt"
	"strings"

	"tradedesk/internal/store/ledger"
	storemodel "tradedesk/internal/store/model"

	"github.com/shopspring/decimal"
)

// Decision is the outcome of an evaluation. Allowed decisions carry an
// empty reason.
type Decision struct {
	Allowed bool
	Reason  string
}

func allowed() Decision {
	return Decision{Allowed: true}
}

func denied(reason string) Decision {
	return Decision{Reason: reason}
}

// Input is everything a single evaluation needs. Holdings and TodayTrades
// are snapshots; the caller is responsible for reading them under whatever
// lock serializes ledger mutations.
type Input struct {
	Symbol      string
	Side        string
	TradeValue  decimal.Decimal
	Settings    ledger.RiskSettings
	Holdings    []ledger.Holding
	TodayTrades []ledger.Trade
}

// Evaluate applies the limits in fixed order: position size, open-position
// count, daily loss. The first failing rule wins.
func Evaluate(in Input) Decision {
	if !in.Settings.Enabled {
		return allowed()
	}
	symbol := strings.ToUpper(strings.TrimSpace(in.Symbol))
	isBuy := strings.EqualFold(in.Side, storemodel.TradeSideBuy)

	if isBuy && in.Settings.MaxPositionSize.Sign() > 0 {
		if in.TradeValue.GreaterThan(in.Settings.MaxPositionSize) {
			return denied(fmt.Sprintf("Trade value $%s exceeds maximum position size $%s",
				in.TradeValue.StringFixed(2), in.Settings.MaxPositionSize.StringFixed(2)))
		}
	}

	if isBuy && in.Settings.MaxOpenPositions > 0 && !holdsSymbol(in.Holdings, symbol) {
		if len(in.Holdings) >= in.Settings.MaxOpenPositions {
			return denied(fmt.Sprintf("Maximum open positions reached (%d of %d)",
				len(in.Holdings), in.Settings.MaxOpenPositions))
		}
	}

	if in.Settings.MaxDailyLoss.Sign() > 0 {
		// Net cash flow across today's trades: sells add notional, buys
		// subtract it. A realized-flow proxy, not true P&L against cost
		// basis.
		net := decimal.Zero
		for _, t := range in.TodayTrades {
			if strings.EqualFold(t.Side, storemodel.TradeSideSell) {
				net = net.Add(t.Total)
			} else {
				net = net.Sub(t.Total)
			}
		}
		if isBuy {
			net = net.Sub(in.TradeValue)
		} else {
			net = net.Add(in.TradeValue)
		}
		if net.Sign() < 0 && net.Neg().GreaterThanOrEqual(in.Settings.MaxDailyLoss) {
			return denied(fmt.Sprintf("Trade would exceed maximum daily loss: net outflow $%s against limit $%s",
				net.Neg().StringFixed(2), in.Settings.MaxDailyLoss.StringFixed(2)))
		}
	}

	return allowed()
}

func holdsSymbol(holdings []ledger.Holding, symbol string) bool {
	for _, h := range holdings {
		if strings.EqualFold(h.Symbol, symbol) {
			return true
		}
	}
	return false
}
