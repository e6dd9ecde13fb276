package config

import "time"

// Config is the top-level configuration for the tradedesk server.
type Config struct {
	App       AppConfig       `toml:"app"`
	Database  DatabaseConfig  `toml:"database"`
	Market    MarketConfig    `toml:"market"`
	Broadcast BroadcastConfig `toml:"broadcast"`
	Auth      AuthConfig      `toml:"auth"`
	AI        AIConfig        `toml:"ai"`
	Trading   TradingConfig   `toml:"trading"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// MarketConfig describes the upstream exchange REST access.
type MarketConfig struct {
	Name           string `toml:"name"`
	RESTBaseURL    string `toml:"rest_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	ProxyEnabled   bool   `toml:"proxy_enabled"`
	ProxyURL       string `toml:"proxy_url"`
}

func (m MarketConfig) HTTPTimeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// BroadcastConfig controls the live price push loop.
type BroadcastConfig struct {
	Symbols         []string `toml:"symbols"`
	IntervalSeconds int      `toml:"interval_seconds"`
	WatchlistPath   string   `toml:"watchlist_path"`
}

func (b BroadcastConfig) Interval() time.Duration {
	if b.IntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(b.IntervalSeconds) * time.Second
}

type AuthConfig struct {
	JWTSecret     string `toml:"jwt_secret"`
	TokenTTLHours int    `toml:"token_ttl_hours"`
}

func (a AuthConfig) TokenTTL() time.Duration {
	if a.TokenTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(a.TokenTTLHours) * time.Hour
}

// AIConfig describes the analysis model endpoint (OpenAI-compatible).
type AIConfig struct {
	Enabled        bool   `toml:"enabled"`
	APIURL         string `toml:"api_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

func (a AIConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// TradingConfig carries demo-account parameters and live venue credentials.
// Live trading stays disabled until both credential fields are set.
type TradingConfig struct {
	DemoStartBalance string `toml:"demo_start_balance"`
	VenueAPIKey      string `toml:"venue_api_key"`
	VenueAPISecret   string `toml:"venue_api_secret"`
}
