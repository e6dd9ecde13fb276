package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"tradedesk/internal/logger"
	"tradedesk/internal/market"

	"github.com/shopspring/decimal"
)

// priceUpdate is the wire shape subscribers receive.
type priceUpdate struct {
	Type string                   `json:"type"`
	Data map[string]priceSnapshot `json:"data"`
}

type priceSnapshot struct {
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change24h"`
	Volume    decimal.Decimal `json:"volume"`
	High24h   decimal.Decimal `json:"high24h"`
	Low24h    decimal.Decimal `json:"low24h"`
	Timestamp int64           `json:"timestamp"`
}

// Loop polls the gateway on a fixed interval and publishes a snapshot map.
// Fetch failures are logged and skipped; the loop itself never dies.
type Loop struct {
	gateway  market.Gateway
	pub      Publisher
	symbols  func() []string
	interval time.Duration
}

func NewLoop(gateway market.Gateway, pub Publisher, symbols func() []string, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Loop{gateway: gateway, pub: pub, symbols: symbols, interval: interval}
}

// Run broadcasts once immediately and then on every tick until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	logger.Infof("[broadcast] price loop started, interval %s", l.interval)
	l.tick(ctx)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("[broadcast] price loop stopped")
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[broadcast] tick panic recovered: %v", r)
		}
	}()
	symbols := l.symbols()
	if len(symbols) == 0 {
		return
	}
	fetchCtx, cancel := context.WithTimeout(ctx, l.interval)
	defer cancel()
	tickers, err := l.gateway.Tickers(fetchCtx, symbols)
	if err != nil {
		logger.Warnf("[broadcast] price fetch failed: %v", err)
		return
	}
	if len(tickers) == 0 {
		return
	}
	data := make(map[string]priceSnapshot, len(tickers))
	for sym, t := range tickers {
		data[sym] = priceSnapshot{
			Price:     t.Price,
			Change24h: t.Change24h,
			Volume:    t.Volume24h,
			High24h:   t.High24h,
			Low24h:    t.Low24h,
			Timestamp: t.Timestamp.UnixMilli(),
		}
	}
	payload, err := json.Marshal(priceUpdate{Type: "price_update", Data: data})
	if err != nil {
		logger.Errorf("[broadcast] marshal snapshot: %v", err)
		return
	}
	l.pub.Publish(payload)
}
