package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func validate(c *Config) error {
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Broadcast.validate(); err != nil {
		return err
	}
	if err := c.Auth.validate(); err != nil {
		return err
	}
	if err := c.AI.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if m.TimeoutSeconds < 0 {
		return fmt.Errorf("market.timeout_seconds must be >= 0")
	}
	if m.ProxyEnabled && strings.TrimSpace(m.ProxyURL) == "" {
		return fmt.Errorf("market.proxy_url required when market.proxy_enabled is set")
	}
	return nil
}

func (b *BroadcastConfig) validate() error {
	for _, sym := range b.Symbols {
		if strings.TrimSpace(sym) == "" {
			return fmt.Errorf("broadcast.symbols contains an empty entry")
		}
	}
	return nil
}

func (a *AuthConfig) validate() error {
	if strings.TrimSpace(a.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	return nil
}

func (a *AIConfig) validate() error {
	if !a.Enabled {
		return nil
	}
	if strings.TrimSpace(a.APIKey) == "" {
		return fmt.Errorf("ai.api_key required when ai.enabled is set")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	bal, err := decimal.NewFromString(strings.TrimSpace(t.DemoStartBalance))
	if err != nil {
		return fmt.Errorf("trading.demo_start_balance is not a valid decimal: %w", err)
	}
	if bal.IsNegative() {
		return fmt.Errorf("trading.demo_start_balance must be >= 0")
	}
	return nil
}
