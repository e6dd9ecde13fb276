package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	storemodel "tradedesk/internal/store/model"

	"gorm.io/gorm"
)

func (s *Store) ListHoldings(ctx context.Context, portfolioID string) ([]Holding, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("ledger store not initialized")
	}
	var models []storemodel.HoldingModel
	err := s.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("symbol ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]Holding, 0, len(models))
	for _, m := range models {
		out = append(out, holdingModelToRecord(m))
	}
	return out, nil
}

func (s *Store) GetHolding(ctx context.Context, portfolioID, symbol string) (Holding, error) {
	if s == nil || s.db == nil {
		return Holding{}, fmt.Errorf("ledger store not initialized")
	}
	var model storemodel.HoldingModel
	err := s.db.WithContext(ctx).
		Where("portfolio_id = ? AND symbol = ?", portfolioID, strings.ToUpper(strings.TrimSpace(symbol))).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Holding{}, ErrNotFound
		}
		return Holding{}, err
	}
	return holdingModelToRecord(model), nil
}

// CountHoldings returns the number of distinct open positions.
func (s *Store) CountHoldings(ctx context.Context, portfolioID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("ledger store not initialized")
	}
	var total int64
	err := s.db.WithContext(ctx).Model(&storemodel.HoldingModel{}).
		Where("portfolio_id = ?", portfolioID).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

// UpdateHoldingValuation writes the price-driven derived fields. Cost basis
// fields (amount, avg price) are never touched here.
func (s *Store) UpdateHoldingValuation(ctx context.Context, holdingID string, currentPrice, value, pnl, pnlPercent string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("ledger store not initialized")
	}
	res := s.db.WithContext(ctx).Model(&storemodel.HoldingModel{}).
		Where("id = ?", holdingID).
		Updates(map[string]interface{}{
			"current_price": currentPrice,
			"value":         value,
			"pnl":           pnl,
			"pnl_percent":   pnlPercent,
			"updated_at":    time.Now().UnixMilli(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
