package signal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradedesk/internal/engine"
	"tradedesk/internal/logger"
	"tradedesk/internal/store/ledger"
	storemodel "tradedesk/internal/store/model"
)

var (
	ErrSignalNotFound   = errors.New("signal not found")
	ErrSignalNotActive  = errors.New("signal is not active")
	ErrSignalNoAnalyzer = errors.New("signal generation is not configured")
)

// Executor is the slice of the trade engine the service needs.
type Executor interface {
	ExecuteTrade(ctx context.Context, req engine.TradeRequest) (ledger.Trade, error)
}

// Service owns the signal lifecycle: generate, list, execute, dismiss.
type Service struct {
	store    *ledger.Store
	analyzer *Analyzer
	executor Executor
}

// NewService accepts a nil analyzer; Generate then reports the feature as
// unconfigured instead of panicking.
func NewService(store *ledger.Store, analyzer *Analyzer, executor Executor) *Service {
	return &Service{store: store, analyzer: analyzer, executor: executor}
}

// Generate analyzes the symbol and persists the resulting signal.
func (s *Service) Generate(ctx context.Context, symbol string) (ledger.AISignal, error) {
	if s.analyzer == nil {
		return ledger.AISignal{}, ErrSignalNoAnalyzer
	}
	rec, err := s.analyzer.Analyze(ctx, symbol)
	if err != nil {
		return ledger.AISignal{}, err
	}
	created, err := s.store.CreateSignal(ctx, rec)
	if err != nil {
		return ledger.AISignal{}, fmt.Errorf("persist signal: %w", err)
	}
	logger.Infof("[signal] generated %s %s confidence=%.0f id=%s", created.Symbol, created.Signal, created.Confidence, created.ID)
	return created, nil
}

// List returns signals filtered by status, expiring stale active ones first
// so callers never see an active signal past its deadline.
func (s *Service) List(ctx context.Context, status, symbol string, limit int) ([]ledger.AISignal, error) {
	if n, err := s.store.ExpireSignals(ctx, time.Now()); err != nil {
		logger.Warnf("[signal] expiry sweep failed: %v", err)
	} else if n > 0 {
		logger.Debugf("[signal] expired %d stale signals", n)
	}
	return s.store.ListSignals(ctx, status, symbol, limit)
}

func (s *Service) Get(ctx context.Context, id string) (ledger.AISignal, error) {
	rec, err := s.store.GetSignal(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		return ledger.AISignal{}, ErrSignalNotFound
	}
	return rec, err
}

// Dismiss marks an active signal as dismissed.
func (s *Service) Dismiss(ctx context.Context, id string) error {
	err := s.store.UpdateSignalStatus(ctx, id, storemodel.SignalStatusDismissed)
	if errors.Is(err, ledger.ErrNotFound) {
		return ErrSignalNotActive
	}
	return err
}

// Execute turns an active buy or sell signal into a real trade on the given
// portfolio and marks the signal executed. Hold signals cannot be executed.
func (s *Service) Execute(ctx context.Context, id, userID, portfolioID, amount string) (ledger.Trade, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return ledger.Trade{}, err
	}
	if rec.Status != storemodel.SignalStatusActive {
		return ledger.Trade{}, ErrSignalNotActive
	}
	if time.Now().After(rec.ExpiresAt) {
		if err := s.store.UpdateSignalStatus(ctx, id, storemodel.SignalStatusExpired); err != nil && !errors.Is(err, ledger.ErrNotFound) {
			logger.Warnf("[signal] could not expire %s: %v", id, err)
		}
		return ledger.Trade{}, ErrSignalNotActive
	}
	if rec.Signal != storemodel.TradeSideBuy && rec.Signal != storemodel.TradeSideSell {
		return ledger.Trade{}, fmt.Errorf("%s signal cannot be executed", rec.Signal)
	}

	req := engine.TradeRequest{
		UserID:      userID,
		PortfolioID: portfolioID,
		Symbol:      rec.Symbol,
		Side:        rec.Signal,
		Type:        storemodel.OrderTypeMarket,
		Amount:      amount,
		AIGenerated: true,
		Metadata:    map[string]any{"signalId": rec.ID, "confidence": rec.Confidence},
	}
	if !rec.StopLoss.IsZero() {
		req.StopLoss = rec.StopLoss.String()
	}
	if !rec.TargetPrice.IsZero() {
		req.TakeProfit = rec.TargetPrice.String()
	}

	trade, err := s.executor.ExecuteTrade(ctx, req)
	if err != nil {
		return ledger.Trade{}, err
	}
	if err := s.store.UpdateSignalStatus(ctx, id, storemodel.SignalStatusExecuted); err != nil {
		// The trade already went through; the signal stays active and a
		// second execution attempt would place a duplicate order.
		logger.Errorf("[signal] trade %s placed but signal %s not marked executed: %v", trade.ID, id, err)
	}
	return trade, nil
}
