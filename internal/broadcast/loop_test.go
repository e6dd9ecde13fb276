package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"tradedesk/internal/market"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu      sync.Mutex
	tickers map[string]market.Ticker
	err     error
	calls   int
}

func (f *fakeGateway) CurrentPrice(_ context.Context, symbol string) (market.Ticker, error) {
	t, ok := f.tickers[symbol]
	if !ok {
		return market.Ticker{}, market.ErrSymbolNotFound
	}
	return t, nil
}

func (f *fakeGateway) Tickers(_ context.Context, symbols []string) (map[string]market.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]market.Ticker)
	for _, s := range symbols {
		if t, ok := f.tickers[s]; ok {
			out[s] = t
		}
	}
	return out, nil
}

func (f *fakeGateway) Candles(context.Context, string, string, int) ([]market.Candle, error) {
	return nil, nil
}

type capturePublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (c *capturePublisher) Publish(message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
}

func (c *capturePublisher) last() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1]
}

func dec(v string) decimal.Decimal {
	d, _ := decimal.NewFromString(v)
	return d
}

func btcTicker() market.Ticker {
	return market.Ticker{
		Symbol:    "BTCUSD",
		Price:     dec("30000.50"),
		Change24h: dec("-120.25"),
		Volume24h: dec("1234.5"),
		High24h:   dec("31000"),
		Low24h:    dec("29500"),
		Timestamp: time.UnixMilli(1700000000000),
	}
}

func TestTickPublishesSnapshot(t *testing.T) {
	gateway := &fakeGateway{tickers: map[string]market.Ticker{"BTCUSD": btcTicker()}}
	pub := &capturePublisher{}
	loop := NewLoop(gateway, pub, func() []string { return []string{"BTCUSD", "ETHUSD"} }, time.Second)

	loop.tick(context.Background())

	raw := pub.last()
	require.NotNil(t, raw)

	var msg struct {
		Type string `json:"type"`
		Data map[string]struct {
			Price     string `json:"price"`
			Change24h string `json:"change24h"`
			Volume    string `json:"volume"`
			High24h   string `json:"high24h"`
			Low24h    string `json:"low24h"`
			Timestamp int64  `json:"timestamp"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "price_update", msg.Type)
	require.Contains(t, msg.Data, "BTCUSD")
	assert.Equal(t, "30000.5", msg.Data["BTCUSD"].Price)
	assert.Equal(t, "-120.25", msg.Data["BTCUSD"].Change24h)
	assert.Equal(t, int64(1700000000000), msg.Data["BTCUSD"].Timestamp)
	// the unknown symbol is simply absent, not an error
	assert.NotContains(t, msg.Data, "ETHUSD")
}

func TestTickSkipsFetchFailure(t *testing.T) {
	gateway := &fakeGateway{err: fmt.Errorf("upstream down")}
	pub := &capturePublisher{}
	loop := NewLoop(gateway, pub, func() []string { return []string{"BTCUSD"} }, time.Second)

	loop.tick(context.Background())
	assert.Nil(t, pub.last(), "nothing published on failure")
}

func TestTickNoSymbolsNoFetch(t *testing.T) {
	gateway := &fakeGateway{}
	pub := &capturePublisher{}
	loop := NewLoop(gateway, pub, func() []string { return nil }, time.Second)

	loop.tick(context.Background())
	assert.Equal(t, 0, gateway.calls)
}

func TestRunBroadcastsImmediatelyAndStops(t *testing.T) {
	gateway := &fakeGateway{tickers: map[string]market.Ticker{"BTCUSD": btcTicker()}}
	pub := &capturePublisher{}
	loop := NewLoop(gateway, pub, func() []string { return []string{"BTCUSD"} }, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return pub.last() != nil }, time.Second, 10*time.Millisecond,
		"first broadcast happens before the first tick elapses")
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on cancellation")
	}
}

func TestLoopSurvivesFailuresAcrossTicks(t *testing.T) {
	gateway := &fakeGateway{tickers: map[string]market.Ticker{"BTCUSD": btcTicker()}}
	pub := &capturePublisher{}
	loop := NewLoop(gateway, pub, func() []string { return []string{"BTCUSD"} }, time.Second)
	ctx := context.Background()

	loop.tick(ctx)
	gateway.mu.Lock()
	gateway.err = fmt.Errorf("blip")
	gateway.mu.Unlock()
	loop.tick(ctx)
	gateway.mu.Lock()
	gateway.err = nil
	gateway.mu.Unlock()
	loop.tick(ctx)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Len(t, pub.messages, 2, "the failing tick is skipped, the loop keeps going")
}
