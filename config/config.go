package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete simulator configuration.
type Config struct {
	Account   AccountConfig `json:"account" yaml:"account"`
	Feed      FeedConfig    `json:"feed" yaml:"feed"`
	Chart     ChartConfig   `json:"chart" yaml:"chart"`
	Watchlist []string      `json:"watchlist" yaml:"watchlist"`
	Store     StoreConfig   `json:"store" yaml:"store"`
}

// AccountConfig seeds the account for a fresh session; a saved
// snapshot takes precedence.
type AccountConfig struct {
	Balance float64 `json:"balance" yaml:"balance"`
}

// FeedConfig points the simulator at the exchange endpoints.
type FeedConfig struct {
	StreamURL     string `json:"stream_url,omitempty" yaml:"stream_url,omitempty"`
	APIURL        string `json:"api_url,omitempty" yaml:"api_url,omitempty"`
	FlushInterval string `json:"flush_interval" yaml:"flush_interval"` // e.g. "1s", "500ms"
}

// ParseFlushInterval converts the flush interval to a time.Duration.
func (f FeedConfig) ParseFlushInterval() (time.Duration, error) {
	if f.FlushInterval == "" {
		return time.Second, nil
	}
	return time.ParseDuration(f.FlushInterval)
}

// ChartConfig selects the active symbol and candle timeframe.
type ChartConfig struct {
	Symbol    string `json:"symbol" yaml:"symbol"`
	Timeframe string `json:"timeframe" yaml:"timeframe"`
	SeedBars  int    `json:"seed_bars" yaml:"seed_bars"`
}

// StoreConfig locates the durable state slot. An empty path runs an
// ephemeral in-memory session.
type StoreConfig struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration to a file, YAML unless the
// extension says JSON.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Chart.Symbol == "" {
		return fmt.Errorf("chart.symbol is required")
	}
	if c.Chart.Timeframe == "" {
		return fmt.Errorf("chart.timeframe is required")
	}
	if c.Chart.SeedBars < 0 {
		return fmt.Errorf("chart.seed_bars must not be negative")
	}
	if d, err := c.Feed.ParseFlushInterval(); err != nil || d <= 0 {
		return fmt.Errorf("feed.flush_interval must be a positive duration")
	}
	for _, sym := range c.Watchlist {
		if sym == "" {
			return fmt.Errorf("watchlist entries must not be empty")
		}
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Balance: 1000,
		},
		Feed: FeedConfig{
			FlushInterval: "1s",
		},
		Chart: ChartConfig{
			Symbol:    "BTCUSDT",
			Timeframe: "1m",
			SeedBars:  200,
		},
		Watchlist: []string{
			"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT", "BNBUSDT", "DOGEUSDT",
		},
		Store: StoreConfig{
			Path: "papersim.db",
		},
	}
}
