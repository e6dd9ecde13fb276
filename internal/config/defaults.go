package config

import "strings"

const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppHTTPAddr       = ":8080"
	defaultDatabasePath      = "data/tradedesk.db"
	defaultMarketName        = "binance"
	defaultMarketREST        = "https://api.binance.com"
	defaultBroadcastInterval = 5
	defaultTokenTTLHours     = 24
	defaultAIModel           = "gpt-4o-mini"
	defaultDemoStartBalance  = "10000.00"
)

var defaultBroadcastSymbols = []string{"BTCUSD", "ETHUSD", "ADAUSD", "SOLUSD", "DOTUSD", "LINKUSD"}

func (c *Config) applyDefaults() {
	c.App.applyDefaults()
	c.Database.applyDefaults()
	c.Market.applyDefaults()
	c.Broadcast.applyDefaults()
	c.Auth.applyDefaults()
	c.AI.applyDefaults()
	c.Trading.applyDefaults()
}

func (a *AppConfig) applyDefaults() {
	if strings.TrimSpace(a.Env) == "" {
		a.Env = defaultAppEnv
	}
	if strings.TrimSpace(a.LogLevel) == "" {
		a.LogLevel = defaultAppLogLevel
	}
	if strings.TrimSpace(a.HTTPAddr) == "" {
		a.HTTPAddr = defaultAppHTTPAddr
	}
}

func (d *DatabaseConfig) applyDefaults() {
	if strings.TrimSpace(d.Path) == "" {
		d.Path = defaultDatabasePath
	}
}

func (m *MarketConfig) applyDefaults() {
	if strings.TrimSpace(m.Name) == "" {
		m.Name = defaultMarketName
	}
	if strings.TrimSpace(m.RESTBaseURL) == "" {
		m.RESTBaseURL = defaultMarketREST
	}
}

func (b *BroadcastConfig) applyDefaults() {
	if len(b.Symbols) == 0 {
		b.Symbols = append([]string(nil), defaultBroadcastSymbols...)
	}
	if b.IntervalSeconds <= 0 {
		b.IntervalSeconds = defaultBroadcastInterval
	}
}

func (a *AuthConfig) applyDefaults() {
	if a.TokenTTLHours <= 0 {
		a.TokenTTLHours = defaultTokenTTLHours
	}
}

func (a *AIConfig) applyDefaults() {
	if strings.TrimSpace(a.Model) == "" {
		a.Model = defaultAIModel
	}
}

func (t *TradingConfig) applyDefaults() {
	if strings.TrimSpace(t.DemoStartBalance) == "" {
		t.DemoStartBalance = defaultDemoStartBalance
	}
}
