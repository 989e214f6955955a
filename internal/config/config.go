// Package config defines all configuration for the trading engine. Config
// is loaded from a YAML file (default: configs/config.yaml) with overrides
// via ENGINE_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"wednesday-engine/internal/model"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Markets   []MarketConfig  `mapstructure:"markets"`
	Allocator AllocatorConfig `mapstructure:"allocator"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// EngineConfig holds session-level settings.
type EngineConfig struct {
	StartingCash float64 `mapstructure:"starting_cash"`
}

// MarketConfig names one market to trade and which streams to subscribe.
// Streams accepts "public_trades" and "order_books_l2".
type MarketConfig struct {
	Exchange string   `mapstructure:"exchange"`
	Base     string   `mapstructure:"base"`
	Quote    string   `mapstructure:"quote"`
	Kind     string   `mapstructure:"kind"`
	Streams  []string `mapstructure:"streams"`
}

// AllocatorConfig tunes order sizing.
type AllocatorConfig struct {
	// DefaultOrderValue is the target notional per entry at signal
	// strength 1.0, in quote currency.
	DefaultOrderValue float64 `mapstructure:"default_order_value"`
}

// ExecutionConfig sets the simulated fee model, each as a fraction of gross
// fill value (0.001 = 10 bps).
type ExecutionConfig struct {
	ExchangeFeePct float64 `mapstructure:"exchange_fee_pct"`
	SlippageFeePct float64 `mapstructure:"slippage_fee_pct"`
}

// StoreConfig selects the repository backing. With Durable false the
// session runs purely in memory.
type StoreConfig struct {
	Durable bool   `mapstructure:"durable"`
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with ENGINE_* env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Engine.StartingCash <= 0 {
		return fmt.Errorf("engine.starting_cash must be > 0")
	}
	if len(c.Markets) == 0 {
		return fmt.Errorf("at least one market is required")
	}
	if c.Allocator.DefaultOrderValue <= 0 {
		return fmt.Errorf("allocator.default_order_value must be > 0")
	}
	if c.Store.Durable && c.Store.DataDir == "" {
		return fmt.Errorf("store.data_dir is required when store.durable is set")
	}

	for i, m := range c.Markets {
		exchange, err := ParseExchangeID(m.Exchange)
		if err != nil {
			return fmt.Errorf("markets[%d]: %w", i, err)
		}
		kind, err := ParseInstrumentKind(m.Kind)
		if err != nil {
			return fmt.Errorf("markets[%d]: %w", i, err)
		}
		if !exchange.Supports(kind) {
			return fmt.Errorf("markets[%d]: %s does not support %s instruments", i, exchange, kind)
		}
		if m.Base == "" || m.Quote == "" {
			return fmt.Errorf("markets[%d]: base and quote are required", i)
		}
		if len(m.Streams) == 0 {
			return fmt.Errorf("markets[%d]: at least one stream is required", i)
		}
		for _, s := range m.Streams {
			if _, err := ParseSubscriptionKind(s); err != nil {
				return fmt.Errorf("markets[%d]: %w", i, err)
			}
		}
	}
	return nil
}

// Market resolves one MarketConfig into its model form. Call Validate
// first; Market assumes the fields parse.
func (m MarketConfig) Market() (model.Market, error) {
	exchange, err := ParseExchangeID(m.Exchange)
	if err != nil {
		return model.Market{}, err
	}
	kind, err := ParseInstrumentKind(m.Kind)
	if err != nil {
		return model.Market{}, err
	}
	return model.NewMarket(exchange, model.NewInstrument(m.Base, m.Quote, kind)), nil
}

// ParseExchangeID maps a config string onto the closed ExchangeID set.
func ParseExchangeID(s string) (model.ExchangeID, error) {
	switch strings.ToLower(s) {
	case "binance_spot":
		return model.BinanceSpot, nil
	case "binance_futures_usd":
		return model.BinanceFuturesUsd, nil
	case "bybit_spot":
		return model.BybitSpot, nil
	case "bybit_perpetual_usd":
		return model.BybitPerpetualUsd, nil
	default:
		return 0, fmt.Errorf("unknown exchange %q", s)
	}
}

// ParseInstrumentKind maps a config string onto the InstrumentKind set.
func ParseInstrumentKind(s string) (model.InstrumentKind, error) {
	switch strings.ToLower(s) {
	case "spot":
		return model.Spot, nil
	case "perpetual":
		return model.Perpetual, nil
	case "future":
		return model.Future, nil
	case "stock":
		return model.Stock, nil
	default:
		return 0, fmt.Errorf("unknown instrument kind %q", s)
	}
}

// ParseSubscriptionKind maps a config stream name onto SubscriptionKind.
func ParseSubscriptionKind(s string) (model.SubscriptionKind, error) {
	switch strings.ToLower(s) {
	case "public_trades":
		return model.PublicTrades, nil
	case "order_books_l1":
		return model.OrderBooksL1, nil
	case "order_books_l2":
		return model.OrderBooksL2, nil
	case "order_books_l3":
		return model.OrderBooksL3, nil
	case "bars":
		return model.Bars, nil
	default:
		return 0, fmt.Errorf("unknown stream kind %q", s)
	}
}
