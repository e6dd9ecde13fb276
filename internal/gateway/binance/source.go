package binance

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tradedesk/internal/logger"
	"tradedesk/internal/market"
	symbolpkg "tradedesk/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
)

const maxCandleLimit = 1000

// Source implements market.Gateway on the Binance spot REST API.
type Source struct {
	cfg      Config
	client   *binance.Client
	resolver *symbolpkg.Resolver
}

func New(cfg Config, resolver *symbolpkg.Resolver) (*Source, error) {
	final := cfg.withDefaults()
	client := binance.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	httpClient, err := newHTTPClient(final)
	if err != nil {
		return nil, err
	}
	client.HTTPClient = httpClient
	if resolver == nil {
		resolver = symbolpkg.NewResolver()
	}
	return &Source{
		cfg:      final,
		client:   client,
		resolver: resolver,
	}, nil
}

func newHTTPClient(cfg Config) (*http.Client, error) {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	if cfg.ProxyEnabled && cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	return httpClient, nil
}

func (s *Source) Resolver() *symbolpkg.Resolver {
	return s.resolver
}

func (s *Source) CurrentPrice(ctx context.Context, symbol string) (market.Ticker, error) {
	display := symbolpkg.Normalize(symbol)
	if display == "" {
		return market.Ticker{}, fmt.Errorf("symbol is required")
	}
	venue, ok := s.resolver.Venue(display)
	if !ok {
		return market.Ticker{}, fmt.Errorf("%s: %w", display, market.ErrSymbolNotFound)
	}
	stats, err := s.client.NewListPriceChangeStatsService().Symbol(venue).Do(ctx)
	if err != nil {
		return market.Ticker{}, mapVenueError(display, err)
	}
	if len(stats) == 0 || stats[0] == nil {
		return market.Ticker{}, fmt.Errorf("%s: %w", display, market.ErrSymbolNotFound)
	}
	return convertStats(display, stats[0]), nil
}

// Tickers fetches each symbol independently so one bad symbol never poisons
// the batch. It errors only when nothing could be fetched.
func (s *Source) Tickers(ctx context.Context, symbols []string) (map[string]market.Ticker, error) {
	out := make(map[string]market.Ticker, len(symbols))
	var lastErr error
	for _, sym := range symbols {
		t, err := s.CurrentPrice(ctx, sym)
		if err != nil {
			lastErr = err
			logger.Warnf("[binance] ticker %s: %v", sym, err)
			continue
		}
		out[t.Symbol] = t
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func (s *Source) Candles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	display := symbolpkg.Normalize(symbol)
	if display == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	venue, ok := s.resolver.Venue(display)
	if !ok {
		return nil, fmt.Errorf("%s: %w", display, market.ErrSymbolNotFound)
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > maxCandleLimit {
		limit = maxCandleLimit
	}
	kls, err := s.client.NewKlinesService().Symbol(venue).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, mapVenueError(display, err)
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			Time:   time.UnixMilli(kl.OpenTime),
			Open:   dec(kl.Open),
			High:   dec(kl.High),
			Low:    dec(kl.Low),
			Close:  dec(kl.Close),
			Volume: dec(kl.Volume),
		})
	}
	return out, nil
}

func convertStats(display string, st *binance.PriceChangeStats) market.Ticker {
	return market.Ticker{
		Symbol:        display,
		Price:         dec(st.LastPrice),
		Open:          dec(st.OpenPrice),
		High24h:       dec(st.HighPrice),
		Low24h:        dec(st.LowPrice),
		Volume24h:     dec(st.Volume),
		Change24h:     dec(st.PriceChange),
		ChangePercent: dec(st.PriceChangePercent),
		Timestamp:     time.UnixMilli(st.CloseTime),
	}
}

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// invalid symbol / bad parameter codes from the venue
const (
	codeInvalidSymbol = -1121
	codeBadSymbol     = -1100
)

func mapVenueError(display string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == codeInvalidSymbol || apiErr.Code == codeBadSymbol {
			return fmt.Errorf("%s: %w", display, market.ErrSymbolNotFound)
		}
		return fmt.Errorf("%s: venue error %d %s: %w", display, apiErr.Code, apiErr.Message, market.ErrUpstreamUnavailable)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %v: %w", display, err, market.ErrUpstreamUnavailable)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%s: %v: %w", display, err, market.ErrUpstreamUnavailable)
	}
	return fmt.Errorf("%s: %v: %w", display, err, market.ErrUpstreamUnavailable)
}
