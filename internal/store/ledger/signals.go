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

func (s *Store) CreateSignal(ctx context.Context, rec AISignal) (AISignal, error) {
	if s == nil || s.db == nil {
		return AISignal{}, fmt.Errorf("ledger store not initialized")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = storemodel.SignalStatusActive
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = rec.CreatedAt.Add(24 * time.Hour)
	}
	model := newSignalModel(rec)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return AISignal{}, err
	}
	return signalModelToRecord(model), nil
}

func (s *Store) GetSignal(ctx context.Context, id string) (AISignal, error) {
	if s == nil || s.db == nil {
		return AISignal{}, fmt.Errorf("ledger store not initialized")
	}
	var model storemodel.AISignalModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AISignal{}, ErrNotFound
		}
		return AISignal{}, err
	}
	return signalModelToRecord(model), nil
}

func (s *Store) ListSignals(ctx context.Context, status, symbol string, limit int) ([]AISignal, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("ledger store not initialized")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Model(&storemodel.AISignalModel{})
	if status = strings.ToLower(strings.TrimSpace(status)); status != "" {
		query = query.Where("status = ?", status)
	}
	if symbol = strings.ToUpper(strings.TrimSpace(symbol)); symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}
	var models []storemodel.AISignalModel
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]AISignal, 0, len(models))
	for _, m := range models {
		out = append(out, signalModelToRecord(m))
	}
	return out, nil
}

// UpdateSignalStatus transitions a signal out of the active state. Executed
// signals also record when it happened.
func (s *Store) UpdateSignalStatus(ctx context.Context, id, status string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("ledger store not initialized")
	}
	updates := map[string]interface{}{"status": status}
	if status == storemodel.SignalStatusExecuted {
		updates["executed_at"] = time.Now().UnixMilli()
	}
	res := s.db.WithContext(ctx).Model(&storemodel.AISignalModel{}).
		Where("id = ? AND status = ?", id, storemodel.SignalStatusActive).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpireSignals marks active signals past their expiry. Returns how many
// rows flipped.
func (s *Store) ExpireSignals(ctx context.Context, now time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("ledger store not initialized")
	}
	res := s.db.WithContext(ctx).Model(&storemodel.AISignalModel{}).
		Where("status = ? AND expires_at > 0 AND expires_at <= ?", storemodel.SignalStatusActive, now.UnixMilli()).
		Update("status", storemodel.SignalStatusExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}
