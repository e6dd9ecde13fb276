package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	storemodel "tradedesk/internal/store/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DemoFillResult is everything the fill changed.
type DemoFillResult struct {
	Trade     Trade
	Portfolio Portfolio
	Holding   *Holding // nil when the position was closed
}

// ApplyDemoFill executes a simulated fill as one transaction: cash balances,
// the holding row, and the trade record commit together or not at all. The
// caller must already hold the portfolio's execution lock; this method
// re-reads rows inside the transaction so the math always runs against
// committed state.
func (s *Store) ApplyDemoFill(ctx context.Context, trade Trade) (DemoFillResult, error) {
	if s == nil || s.db == nil {
		return DemoFillResult{}, fmt.Errorf("ledger store not initialized")
	}
	if trade.PortfolioID == "" {
		return DemoFillResult{}, fmt.Errorf("portfolio id is required")
	}
	if trade.Amount.Sign() <= 0 || trade.Price.Sign() <= 0 {
		return DemoFillResult{}, fmt.Errorf("amount and price must be positive")
	}
	normalizeTrade(&trade)
	trade.Symbol = strings.ToUpper(strings.TrimSpace(trade.Symbol))
	trade.Mode = storemodel.PortfolioModeDemo
	if trade.OrderID == "" {
		trade.OrderID = "demo_" + uuid.NewString()
	}
	value := trade.Amount.Mul(trade.Price)
	trade.Total = value

	var result DemoFillResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pm storemodel.PortfolioModel
		if err := tx.Where("id = ?", trade.PortfolioID).First(&pm).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		portfolio := portfolioModelToRecord(pm)

		var hm storemodel.HoldingModel
		holdingErr := tx.Where("portfolio_id = ? AND symbol = ?", trade.PortfolioID, trade.Symbol).First(&hm).Error
		hasHolding := holdingErr == nil
		if holdingErr != nil && !errors.Is(holdingErr, gorm.ErrRecordNotFound) {
			return holdingErr
		}

		now := time.Now()
		switch trade.Side {
		case storemodel.TradeSideBuy:
			if portfolio.AvailableBalance.LessThan(value) {
				return fmt.Errorf("need %s, have %s: %w",
					value.StringFixed(2), portfolio.AvailableBalance.StringFixed(2), ErrInsufficientFunds)
			}
			portfolio.AvailableBalance = portfolio.AvailableBalance.Sub(value)
			portfolio.TradingBalance = portfolio.TradingBalance.Add(value)

			if hasHolding {
				holding := holdingModelToRecord(hm)
				newAmount := holding.Amount.Add(trade.Amount)
				newAvg := holding.Amount.Mul(holding.AvgPrice).Add(value).Div(newAmount)
				holding.Amount = newAmount
				holding.AvgPrice = newAvg
				holding.CurrentPrice = trade.Price
				holding.Value = newAmount.Mul(trade.Price)
				holding.UpdatedAt = now
				updated := newHoldingModel(holding)
				if err := tx.Model(&storemodel.HoldingModel{}).Where("id = ?", hm.ID).Updates(map[string]interface{}{
					"amount":        updated.Amount,
					"avg_price":     updated.AvgPrice,
					"current_price": updated.CurrentPrice,
					"value":         updated.Value,
					"updated_at":    now.UnixMilli(),
				}).Error; err != nil {
					return err
				}
				result.Holding = &holding
			} else {
				holding := Holding{
					ID:           uuid.NewString(),
					PortfolioID:  trade.PortfolioID,
					Symbol:       trade.Symbol,
					Amount:       trade.Amount,
					AvgPrice:     trade.Price,
					CurrentPrice: trade.Price,
					Value:        value,
					CreatedAt:    now,
					UpdatedAt:    now,
				}
				created := newHoldingModel(holding)
				if err := tx.Create(&created).Error; err != nil {
					return err
				}
				result.Holding = &holding
			}

		case storemodel.TradeSideSell:
			if !hasHolding {
				return fmt.Errorf("%s: %w", trade.Symbol, ErrNoHolding)
			}
			portfolio.AvailableBalance = portfolio.AvailableBalance.Add(value)
			portfolio.TradingBalance = decimal.Max(decimal.Zero, portfolio.TradingBalance.Sub(value))

			holding := holdingModelToRecord(hm)
			newAmount := holding.Amount.Sub(trade.Amount)
			if newAmount.Sign() <= 0 {
				if err := tx.Where("id = ?", hm.ID).Delete(&storemodel.HoldingModel{}).Error; err != nil {
					return err
				}
				result.Holding = nil
			} else {
				holding.Amount = newAmount
				holding.CurrentPrice = trade.Price
				holding.Value = newAmount.Mul(trade.Price)
				holding.UpdatedAt = now
				updated := newHoldingModel(holding)
				if err := tx.Model(&storemodel.HoldingModel{}).Where("id = ?", hm.ID).Updates(map[string]interface{}{
					"amount":        updated.Amount,
					"current_price": updated.CurrentPrice,
					"value":         updated.Value,
					"updated_at":    now.UnixMilli(),
				}).Error; err != nil {
					return err
				}
				result.Holding = &holding
			}

		default:
			return fmt.Errorf("invalid trade side %q", trade.Side)
		}

		portfolio.TotalBalance = portfolio.AvailableBalance.Add(portfolio.TradingBalance)
		portfolio.UpdatedAt = now
		if err := tx.Model(&storemodel.PortfolioModel{}).Where("id = ?", portfolio.ID).Updates(map[string]interface{}{
			"total_balance":     portfolio.TotalBalance.String(),
			"available_balance": portfolio.AvailableBalance.String(),
			"trading_balance":   portfolio.TradingBalance.String(),
			"updated_at":        now.UnixMilli(),
		}).Error; err != nil {
			return err
		}

		trade.Status = storemodel.TradeStatusFilled
		filledAt := now
		trade.FilledAt = &filledAt
		tm := newTradeModel(trade)
		if err := tx.Create(&tm).Error; err != nil {
			return err
		}

		result.Trade = trade
		result.Portfolio = portfolio
		return nil
	})
	if err != nil {
		return DemoFillResult{}, err
	}
	return result, nil
}
