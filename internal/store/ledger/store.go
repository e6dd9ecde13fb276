package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	storemodel "tradedesk/internal/store/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store implements the ledger on gorm + SQLite.
type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("ledger store: database path is required")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&storemodel.UserModel{},
		&storemodel.PortfolioModel{},
		&storemodel.HoldingModel{},
		&storemodel.TradeModel{},
		&storemodel.AISignalModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a small amount of parallelism for concurrent HTTP
	// reads while keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// --------------------------- conversion helpers ---------------------------

func parseDec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func timeToUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func unixToTime(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(v)
}

func unixPtrToTime(v *int64) *time.Time {
	if v == nil || *v <= 0 {
		return nil
	}
	ts := time.UnixMilli(*v)
	return &ts
}

func timePtrToUnix(t *time.Time) *int64 {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.UnixMilli()
	return &v
}

func jsonOrEmpty(v any) datatypes.JSON {
	if v == nil {
		return datatypes.JSON([]byte("{}"))
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(raw)
}

func jsonToMap(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func newUserModel(rec User) storemodel.UserModel {
	return storemodel.UserModel{
		ID:             rec.ID,
		Username:       strings.TrimSpace(rec.Username),
		PasswordHash:   rec.PasswordHash,
		Mode:           rec.Mode,
		VenueAPIKey:    rec.VenueAPIKey,
		VenueAPISecret: rec.VenueAPISecret,
		CreatedAtUnix:  timeToUnix(rec.CreatedAt),
	}
}

func userModelToRecord(m storemodel.UserModel) User {
	return User{
		ID:             m.ID,
		Username:       m.Username,
		PasswordHash:   m.PasswordHash,
		Mode:           m.Mode,
		VenueAPIKey:    m.VenueAPIKey,
		VenueAPISecret: m.VenueAPISecret,
		CreatedAt:      unixToTime(m.CreatedAtUnix),
	}
}

func newPortfolioModel(rec Portfolio) storemodel.PortfolioModel {
	return storemodel.PortfolioModel{
		ID:               rec.ID,
		UserID:           rec.UserID,
		Mode:             rec.Mode,
		TotalBalance:     rec.TotalBalance.String(),
		AvailableBalance: rec.AvailableBalance.String(),
		TradingBalance:   rec.TradingBalance.String(),
		PnL24h:           rec.PnL24h.String(),
		PnL24hPercent:    rec.PnL24hPercent.String(),
		RiskSettings:     jsonOrEmpty(rec.RiskSettings),
		CreatedAtUnix:    timeToUnix(rec.CreatedAt),
		UpdatedAtUnix:    timeToUnix(rec.UpdatedAt),
	}
}

func portfolioModelToRecord(m storemodel.PortfolioModel) Portfolio {
	rec := Portfolio{
		ID:               m.ID,
		UserID:           m.UserID,
		Mode:             m.Mode,
		TotalBalance:     parseDec(m.TotalBalance),
		AvailableBalance: parseDec(m.AvailableBalance),
		TradingBalance:   parseDec(m.TradingBalance),
		PnL24h:           parseDec(m.PnL24h),
		PnL24hPercent:    parseDec(m.PnL24hPercent),
		CreatedAt:        unixToTime(m.CreatedAtUnix),
		UpdatedAt:        unixToTime(m.UpdatedAtUnix),
	}
	if len(m.RiskSettings) > 0 {
		_ = json.Unmarshal(m.RiskSettings, &rec.RiskSettings)
	}
	return rec
}

func newHoldingModel(rec Holding) storemodel.HoldingModel {
	return storemodel.HoldingModel{
		ID:            rec.ID,
		PortfolioID:   rec.PortfolioID,
		Symbol:        strings.ToUpper(strings.TrimSpace(rec.Symbol)),
		Amount:        rec.Amount.String(),
		AvgPrice:      rec.AvgPrice.String(),
		CurrentPrice:  rec.CurrentPrice.String(),
		Value:         rec.Value.String(),
		PnL:           rec.PnL.String(),
		PnLPercent:    rec.PnLPercent.String(),
		CreatedAtUnix: timeToUnix(rec.CreatedAt),
		UpdatedAtUnix: timeToUnix(rec.UpdatedAt),
	}
}

func holdingModelToRecord(m storemodel.HoldingModel) Holding {
	return Holding{
		ID:           m.ID,
		PortfolioID:  m.PortfolioID,
		Symbol:       m.Symbol,
		Amount:       parseDec(m.Amount),
		AvgPrice:     parseDec(m.AvgPrice),
		CurrentPrice: parseDec(m.CurrentPrice),
		Value:        parseDec(m.Value),
		PnL:          parseDec(m.PnL),
		PnLPercent:   parseDec(m.PnLPercent),
		CreatedAt:    unixToTime(m.CreatedAtUnix),
		UpdatedAt:    unixToTime(m.UpdatedAtUnix),
	}
}

func newTradeModel(rec Trade) storemodel.TradeModel {
	return storemodel.TradeModel{
		ID:            rec.ID,
		UserID:        rec.UserID,
		PortfolioID:   rec.PortfolioID,
		Symbol:        strings.ToUpper(strings.TrimSpace(rec.Symbol)),
		Side:          strings.ToLower(strings.TrimSpace(rec.Side)),
		Type:          strings.ToLower(strings.TrimSpace(rec.Type)),
		Amount:        rec.Amount.String(),
		Price:         rec.Price.String(),
		Total:         rec.Total.String(),
		Fee:           rec.Fee.String(),
		Status:        rec.Status,
		Mode:          rec.Mode,
		OrderID:       rec.OrderID,
		AIGenerated:   boolToInt(rec.AIGenerated),
		Metadata:      jsonOrEmpty(rec.Metadata),
		CreatedAtUnix: timeToUnix(rec.CreatedAt),
		FilledAtUnix:  timePtrToUnix(rec.FilledAt),
	}
}

func tradeModelToRecord(m storemodel.TradeModel) Trade {
	return Trade{
		ID:          m.ID,
		UserID:      m.UserID,
		PortfolioID: m.PortfolioID,
		Symbol:      m.Symbol,
		Side:        m.Side,
		Type:        m.Type,
		Amount:      parseDec(m.Amount),
		Price:       parseDec(m.Price),
		Total:       parseDec(m.Total),
		Fee:         parseDec(m.Fee),
		Status:      m.Status,
		Mode:        m.Mode,
		OrderID:     m.OrderID,
		AIGenerated: m.AIGenerated != 0,
		Metadata:    jsonToMap(m.Metadata),
		CreatedAt:   unixToTime(m.CreatedAtUnix),
		FilledAt:    unixPtrToTime(m.FilledAtUnix),
	}
}

func newSignalModel(rec AISignal) storemodel.AISignalModel {
	return storemodel.AISignalModel{
		ID:             rec.ID,
		Symbol:         strings.ToUpper(strings.TrimSpace(rec.Symbol)),
		Signal:         strings.ToLower(strings.TrimSpace(rec.Signal)),
		Confidence:     rec.Confidence,
		EntryPrice:     rec.EntryPrice.String(),
		TargetPrice:    rec.TargetPrice.String(),
		StopLoss:       rec.StopLoss.String(),
		RiskReward:     rec.RiskReward.String(),
		Reasoning:      rec.Reasoning,
		Indicators:     jsonOrEmpty(rec.Indicators),
		Status:         rec.Status,
		CreatedAtUnix:  timeToUnix(rec.CreatedAt),
		ExpiresAtUnix:  timeToUnix(rec.ExpiresAt),
		ExecutedAtUnix: timePtrToUnix(rec.ExecutedAt),
	}
}

func signalModelToRecord(m storemodel.AISignalModel) AISignal {
	return AISignal{
		ID:          m.ID,
		Symbol:      m.Symbol,
		Signal:      m.Signal,
		Confidence:  m.Confidence,
		EntryPrice:  parseDec(m.EntryPrice),
		TargetPrice: parseDec(m.TargetPrice),
		StopLoss:    parseDec(m.StopLoss),
		RiskReward:  parseDec(m.RiskReward),
		Reasoning:   m.Reasoning,
		Indicators:  jsonToMap(m.Indicators),
		Status:      m.Status,
		CreatedAt:   unixToTime(m.CreatedAtUnix),
		ExpiresAt:   unixToTime(m.ExpiresAtUnix),
		ExecutedAt:  unixPtrToTime(m.ExecutedAtUnix),
	}
}
