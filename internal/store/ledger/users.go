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

func (s *Store) CreateUser(ctx context.Context, rec User) (User, error) {
	if s == nil || s.db == nil {
		return User{}, fmt.Errorf("ledger store not initialized")
	}
	if strings.TrimSpace(rec.Username) == "" {
		return User{}, fmt.Errorf("username is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Mode == "" {
		rec.Mode = storemodel.PortfolioModeDemo
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	model := newUserModel(rec)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return User{}, err
	}
	return userModelToRecord(model), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (User, error) {
	if s == nil || s.db == nil {
		return User{}, fmt.Errorf("ledger store not initialized")
	}
	var model storemodel.UserModel
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return userModelToRecord(model), nil
}

func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	if s == nil || s.db == nil {
		return User{}, fmt.Errorf("ledger store not initialized")
	}
	var model storemodel.UserModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return userModelToRecord(model), nil
}

// UpdateUserMode switches the user's active trading mode (demo or live).
func (s *Store) UpdateUserMode(ctx context.Context, userID, mode string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("ledger store not initialized")
	}
	res := s.db.WithContext(ctx).Model(&storemodel.UserModel{}).
		Where("id = ?", userID).
		Update("mode", mode)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUserVenueKeys stores per-user venue API credentials. Callers verify
// the credentials against the venue before persisting them.
func (s *Store) UpdateUserVenueKeys(ctx context.Context, userID, apiKey, apiSecret string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("ledger store not initialized")
	}
	res := s.db.WithContext(ctx).Model(&storemodel.UserModel{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"venue_api_key":    apiKey,
			"venue_api_secret": apiSecret,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CreatePortfolio(ctx context.Context, rec Portfolio) (Portfolio, error) {
	if s == nil || s.db == nil {
		return Portfolio{}, fmt.Errorf("ledger store not initialized")
	}
	if rec.UserID == "" {
		return Portfolio{}, fmt.Errorf("user id is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Mode == "" {
		rec.Mode = storemodel.PortfolioModeDemo
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	rec.TotalBalance = rec.AvailableBalance.Add(rec.TradingBalance)
	model := newPortfolioModel(rec)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return Portfolio{}, err
	}
	return portfolioModelToRecord(model), nil
}

func (s *Store) GetPortfolio(ctx context.Context, id string) (Portfolio, error) {
	if s == nil || s.db == nil {
		return Portfolio{}, fmt.Errorf("ledger store not initialized")
	}
	var model storemodel.PortfolioModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Portfolio{}, ErrNotFound
		}
		return Portfolio{}, err
	}
	return portfolioModelToRecord(model), nil
}

// GetPortfolioByUser returns the user's portfolio for the given mode.
func (s *Store) GetPortfolioByUser(ctx context.Context, userID, mode string) (Portfolio, error) {
	if s == nil || s.db == nil {
		return Portfolio{}, fmt.Errorf("ledger store not initialized")
	}
	var model storemodel.PortfolioModel
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if mode != "" {
		query = query.Where("mode = ?", mode)
	}
	err := query.Order("created_at ASC").First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Portfolio{}, ErrNotFound
		}
		return Portfolio{}, err
	}
	return portfolioModelToRecord(model), nil
}

// ListPortfolios returns every portfolio. The valuation refresher walks
// these on its interval.
func (s *Store) ListPortfolios(ctx context.Context) ([]Portfolio, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("ledger store not initialized")
	}
	var models []storemodel.PortfolioModel
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Portfolio, 0, len(models))
	for _, m := range models {
		out = append(out, portfolioModelToRecord(m))
	}
	return out, nil
}

// UpdateRiskSettings replaces the portfolio's risk settings.
func (s *Store) UpdateRiskSettings(ctx context.Context, portfolioID string, rs RiskSettings) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("ledger store not initialized")
	}
	res := s.db.WithContext(ctx).Model(&storemodel.PortfolioModel{}).
		Where("id = ?", portfolioID).
		Updates(map[string]interface{}{
			"risk_settings": jsonOrEmpty(rs),
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

// UpdatePortfolioPnL writes the rolling 24h valuation numbers.
func (s *Store) UpdatePortfolioPnL(ctx context.Context, portfolioID string, pnl, pnlPercent string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("ledger store not initialized")
	}
	res := s.db.WithContext(ctx).Model(&storemodel.PortfolioModel{}).
		Where("id = ?", portfolioID).
		Updates(map[string]interface{}{
			"pnl_24h":         pnl,
			"pnl_24h_percent": pnlPercent,
			"updated_at":      time.Now().UnixMilli(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
