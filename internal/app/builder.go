package app

import (
	"fmt"
	"time"

	"tradedesk/internal/broadcast"
	"tradedesk/internal/config"
	"tradedesk/internal/config/loader"
	"tradedesk/internal/engine"
	"tradedesk/internal/gateway/binance"
	"tradedesk/internal/gateway/provider"
	"tradedesk/internal/logger"
	symbolpkg "tradedesk/internal/pkg/symbol"
	"tradedesk/internal/signal"
	"tradedesk/internal/store/ledger"
	apihttp "tradedesk/internal/transport/http/api"
	"tradedesk/internal/valuation"
)

// build assembles the dependency graph from the validated config.
func build(cfg *config.Config) (*App, error) {
	store, err := ledger.NewStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}

	resolver := symbolpkg.NewResolver()
	gwCfg := binance.Config{
		RESTBaseURL:  cfg.Market.RESTBaseURL,
		HTTPTimeout:  cfg.Market.HTTPTimeout(),
		ProxyEnabled: cfg.Market.ProxyEnabled,
		ProxyURL:     cfg.Market.ProxyURL,
	}
	source, err := binance.New(gwCfg, resolver)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build market gateway: %w", err)
	}
	venue := binance.NewVenue(gwCfg, resolver)
	creds := binance.Credentials{
		APIKey:    cfg.Trading.VenueAPIKey,
		APISecret: cfg.Trading.VenueAPISecret,
	}
	eng := engine.New(store, source, venue, creds)

	symbols, watchlist, err := symbolSource(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	hub := broadcast.NewHub()
	loop := broadcast.NewLoop(source, hub, symbols, cfg.Broadcast.Interval())
	refresher := valuation.NewRefresher(store, source, time.Minute)

	var analyzer *signal.Analyzer
	if cfg.AI.Enabled {
		chat := &provider.OpenAIChatClient{
			BaseURL: cfg.AI.APIURL,
			APIKey:  cfg.AI.APIKey,
			Model:   cfg.AI.Model,
			Timeout: cfg.AI.Timeout(),
		}
		analyzer, err = signal.NewAnalyzer(source, chat)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("build signal analyzer: %w", err)
		}
	}
	signals := signal.NewService(store, analyzer, eng)

	server, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:             cfg.App.HTTPAddr,
		Store:            store,
		Trades:           eng,
		Gateway:          source,
		Signals:          signals,
		Hub:              hub,
		Venue:            venue,
		JWTSecret:        cfg.Auth.JWTSecret,
		TokenTTL:         cfg.Auth.TokenTTL(),
		DemoStartBalance: cfg.Trading.DemoStartBalance,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build http server: %w", err)
	}

	return &App{
		cfg:       cfg,
		store:     store,
		source:    source,
		hub:       hub,
		loop:      loop,
		refresher: refresher,
		server:    server,
		watchlist: watchlist,
	}, nil
}

// symbolSource prefers the hot-reloadable watchlist file and falls back to
// the static list from the main config.
func symbolSource(cfg *config.Config) (func() []string, *loader.WatchlistLoader, error) {
	path := cfg.Broadcast.WatchlistPath
	if path == "" {
		static := append([]string(nil), cfg.Broadcast.Symbols...)
		return func() []string { return static }, nil, nil
	}
	wl, err := loader.NewWatchlistLoader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load watchlist: %w", err)
	}
	wl.Subscribe(func(snap loader.WatchlistSnapshot) {
		logger.Infof("[app] watchlist reloaded, %d symbols", len(snap.Symbols))
	})
	return func() []string { return wl.Snapshot().Symbols }, wl, nil
}
