// Package app is the composition root: it builds the dependency graph from
// config and runs all long-lived components under one errgroup.
package app

import (
	"context"
	"fmt"
	"time"

	"tradedesk/internal/broadcast"
	"tradedesk/internal/config"
	"tradedesk/internal/config/loader"
	gwbinance "tradedesk/internal/gateway/binance"
	"tradedesk/internal/logger"
	"tradedesk/internal/store/ledger"
	apihttp "tradedesk/internal/transport/http/api"
	"tradedesk/internal/valuation"

	"golang.org/x/sync/errgroup"
)

const catalogRefreshEvery = 6 * time.Hour

type App struct {
	cfg       *config.Config
	store     *ledger.Store
	source    *gwbinance.Source
	hub       *broadcast.Hub
	loop      *broadcast.Loop
	refresher *valuation.Refresher
	server    *apihttp.Server
	watchlist *loader.WatchlistLoader
}

// New builds the application without starting it.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return build(cfg)
}

// Run starts the HTTP server and all background loops, blocking until ctx is
// cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		a.loop.Run(ctx)
		return nil
	})
	group.Go(func() error {
		a.refresher.Run(ctx)
		return nil
	})
	group.Go(func() error {
		a.source.KeepCatalogFresh(ctx, catalogRefreshEvery)
		return nil
	})

	logger.Infof("[app] tradedesk running env=%s addr=%s", a.cfg.App.Env, a.server.Addr())
	return group.Wait()
}

// Close releases resources; safe to call more than once.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
