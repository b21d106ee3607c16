// Package config defines the top-level configuration for the replay engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BOOKREPLAY_* environment
// variables.
type Config struct {
	Replay   ReplayConfig   `toml:"replay"`
	Book     BookConfig     `toml:"book"`
	Strategy StrategyConfig `toml:"strategy"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ReplayConfig holds the feed location and sampling cadences.
type ReplayConfig struct {
	Symbol     string   `toml:"symbol"`
	EventFile  string   `toml:"event_file"`
	EventFiles []string `toml:"event_files"` // batch mode, one session per file
	FeedMode   string   `toml:"feed_mode"`   // "replace" or "delta"
	TradeSize  float64  `toml:"trade_size"`

	StrategyInterval  int `toml:"strategy_interval"`
	BookStateInterval int `toml:"book_state_interval"`
	LatencyInterval   int `toml:"latency_interval"`
	ProgressInterval  int `toml:"progress_interval"`
}

// BookConfig holds order-book corruption handling parameters.
type BookConfig struct {
	CrossedPolicy    string `toml:"crossed_policy"` // "repair" or "flag"
	StrictValidation bool   `toml:"strict_validation"`
}

// StrategyConfig selects and parameterizes the trading strategy.
type StrategyConfig struct {
	Name        string            `toml:"name"`
	Imbalance   ImbalanceConfig   `toml:"imbalance"`
	MarketMaker MarketMakerConfig `toml:"market_maker"`
}

// ImbalanceConfig holds imbalance-threshold strategy parameters.
type ImbalanceConfig struct {
	Threshold float64 `toml:"threshold"`
	Depth     int     `toml:"depth"`
}

// MarketMakerConfig holds inventory-aware market-making parameters.
type MarketMakerConfig struct {
	RiskAversion   float64 `toml:"risk_aversion"`
	InventoryLimit float64 `toml:"inventory_limit"`
}

// MetricsConfig holds metrics output parameters.
type MetricsConfig struct {
	OutputDir string `toml:"output_dir"`
}

// Defaults returns the built-in configuration: replay mode on an imbalance
// strategy with the standard cadences.
func Defaults() Config {
	return Config{
		Replay: ReplayConfig{
			Symbol:            "BTCUSDT",
			FeedMode:          "replace",
			TradeSize:         0.01,
			StrategyInterval:  10,
			BookStateInterval: 100,
			LatencyInterval:   1000,
			ProgressInterval:  10000,
		},
		Book: BookConfig{
			CrossedPolicy: "repair",
		},
		Strategy: StrategyConfig{
			Name:        "imbalance",
			Imbalance:   ImbalanceConfig{Threshold: 0.3, Depth: 5},
			MarketMaker: MarketMakerConfig{RiskAversion: 0.1, InventoryLimit: 10},
		},
		Metrics: MetricsConfig{
			OutputDir: "logs",
		},
		Mode:     "replay",
		LogLevel: "info",
	}
}

// Validate checks the configuration for internal consistency. It should be
// called after Load.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "replay":
		if c.Replay.EventFile == "" {
			return fmt.Errorf("config: replay mode requires replay.event_file")
		}
	case "batch":
		if len(c.Replay.EventFiles) == 0 {
			return fmt.Errorf("config: batch mode requires replay.event_files")
		}
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	if c.Replay.Symbol == "" {
		return fmt.Errorf("config: replay.symbol must not be empty")
	}
	switch c.Replay.FeedMode {
	case "replace", "delta":
	default:
		return fmt.Errorf("config: replay.feed_mode must be \"replace\" or \"delta\", got %q", c.Replay.FeedMode)
	}
	if c.Replay.TradeSize <= 0 {
		return fmt.Errorf("config: replay.trade_size must be positive")
	}
	for name, v := range map[string]int{
		"replay.strategy_interval":   c.Replay.StrategyInterval,
		"replay.book_state_interval": c.Replay.BookStateInterval,
		"replay.latency_interval":    c.Replay.LatencyInterval,
		"replay.progress_interval":   c.Replay.ProgressInterval,
	} {
		if v <= 0 {
			return fmt.Errorf("config: %s must be positive", name)
		}
	}

	switch c.Book.CrossedPolicy {
	case "repair", "flag":
	default:
		return fmt.Errorf("config: book.crossed_policy must be \"repair\" or \"flag\", got %q", c.Book.CrossedPolicy)
	}

	switch c.Strategy.Name {
	case "imbalance", "market_maker":
	default:
		return fmt.Errorf("config: unknown strategy %q", c.Strategy.Name)
	}
	if c.Strategy.Imbalance.Threshold <= 0 || c.Strategy.Imbalance.Threshold >= 1 {
		return fmt.Errorf("config: strategy.imbalance.threshold must be in (0, 1)")
	}
	if c.Strategy.Imbalance.Depth <= 0 {
		return fmt.Errorf("config: strategy.imbalance.depth must be positive")
	}
	if c.Strategy.MarketMaker.RiskAversion <= 0 {
		return fmt.Errorf("config: strategy.market_maker.risk_aversion must be positive")
	}
	if c.Strategy.MarketMaker.InventoryLimit <= 0 {
		return fmt.Errorf("config: strategy.market_maker.inventory_limit must be positive")
	}

	if c.Metrics.OutputDir == "" {
		return fmt.Errorf("config: metrics.output_dir must not be empty")
	}
	return nil
}
