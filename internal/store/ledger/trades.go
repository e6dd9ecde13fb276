package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	storemodel "tradedesk/internal/store/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (s *Store) CreateTrade(ctx context.Context, rec Trade) (Trade, error) {
	if s == nil || s.db == nil {
		return Trade{}, fmt.Errorf("ledger store not initialized")
	}
	normalizeTrade(&rec)
	model := newTradeModel(rec)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return Trade{}, err
	}
	return tradeModelToRecord(model), nil
}

func normalizeTrade(rec *Trade) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Status == "" {
		rec.Status = storemodel.TradeStatusPending
	}
	if rec.Total.IsZero() {
		rec.Total = rec.Amount.Mul(rec.Price)
	}
}

func (s *Store) GetTrade(ctx context.Context, id string) (Trade, error) {
	if s == nil || s.db == nil {
		return Trade{}, fmt.Errorf("ledger store not initialized")
	}
	var model storemodel.TradeModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Trade{}, ErrNotFound
		}
		return Trade{}, err
	}
	return tradeModelToRecord(model), nil
}

// tradeSortColumns whitelists the sortable fields from the HTTP layer.
var tradeSortColumns = map[string]string{
	"created_at": "created_at",
	"createdAt":  "created_at",
	"amount":     "amount",
	"price":      "price",
	"total":      "total",
	"symbol":     "symbol",
}

func (s *Store) ListTrades(ctx context.Context, portfolioID string, f TradeFilter) ([]Trade, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("ledger store not initialized")
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	column, ok := tradeSortColumns[strings.TrimSpace(f.SortBy)]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		direction = "ASC"
	}
	query := s.tradeQuery(ctx, portfolioID, f)
	var models []storemodel.TradeModel
	err := query.
		Order(fmt.Sprintf("%s %s, id %s", column, direction, direction)).
		Limit(limit).
		Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]Trade, 0, len(models))
	for _, m := range models {
		out = append(out, tradeModelToRecord(m))
	}
	return out, nil
}

func (s *Store) CountTrades(ctx context.Context, portfolioID string, f TradeFilter) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("ledger store not initialized")
	}
	var total int64
	if err := s.tradeQuery(ctx, portfolioID, f).Count(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

func (s *Store) tradeQuery(ctx context.Context, portfolioID string, f TradeFilter) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&storemodel.TradeModel{}).
		Where("portfolio_id = ?", portfolioID)
	if sym := strings.ToUpper(strings.TrimSpace(f.Symbol)); sym != "" {
		query = query.Where("symbol = ?", sym)
	}
	if side := strings.ToLower(strings.TrimSpace(f.Side)); side != "" {
		query = query.Where("side = ?", side)
	}
	if status := strings.ToLower(strings.TrimSpace(f.Status)); status != "" {
		query = query.Where("status = ?", status)
	}
	return query
}

// GetTradesSince returns the portfolio's trades created at or after the
// given time, oldest first. The risk evaluator uses this for the daily
// cash-flow window.
func (s *Store) GetTradesSince(ctx context.Context, portfolioID string, since time.Time) ([]Trade, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("ledger store not initialized")
	}
	var models []storemodel.TradeModel
	err := s.db.WithContext(ctx).
		Where("portfolio_id = ? AND created_at >= ?", portfolioID, since.UnixMilli()).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]Trade, 0, len(models))
	for _, m := range models {
		out = append(out, tradeModelToRecord(m))
	}
	return out, nil
}

// UpdateTradeStatus moves a pending trade to a terminal status. Terminal
// rows are never transitioned again; filled sets filled_at once.
func (s *Store) UpdateTradeStatus(ctx context.Context, tradeID, status string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("ledger store not initialized")
	}
	updates := map[string]interface{}{"status": status}
	if status == storemodel.TradeStatusFilled {
		updates["filled_at"] = time.Now().UnixMilli()
	}
	res := s.db.WithContext(ctx).Model(&storemodel.TradeModel{}).
		Where("id = ? AND status = ?", tradeID, storemodel.TradeStatusPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
