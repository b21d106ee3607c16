package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BOOKREPLAY_* environment variable overrides, and
// returns the final Config. A missing file is not an error: the binary can
// run on defaults, flags and environment alone. The returned Config has NOT
// been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BOOKREPLAY_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators steer replays without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Replay ──
	setStr(&cfg.Replay.Symbol, "BOOKREPLAY_REPLAY_SYMBOL")
	setStr(&cfg.Replay.EventFile, "BOOKREPLAY_REPLAY_EVENT_FILE")
	setStringSlice(&cfg.Replay.EventFiles, "BOOKREPLAY_REPLAY_EVENT_FILES")
	setStr(&cfg.Replay.FeedMode, "BOOKREPLAY_REPLAY_FEED_MODE")
	setFloat64(&cfg.Replay.TradeSize, "BOOKREPLAY_REPLAY_TRADE_SIZE")
	setInt(&cfg.Replay.StrategyInterval, "BOOKREPLAY_REPLAY_STRATEGY_INTERVAL")
	setInt(&cfg.Replay.BookStateInterval, "BOOKREPLAY_REPLAY_BOOK_STATE_INTERVAL")
	setInt(&cfg.Replay.LatencyInterval, "BOOKREPLAY_REPLAY_LATENCY_INTERVAL")
	setInt(&cfg.Replay.ProgressInterval, "BOOKREPLAY_REPLAY_PROGRESS_INTERVAL")

	// ── Book ──
	setStr(&cfg.Book.CrossedPolicy, "BOOKREPLAY_BOOK_CROSSED_POLICY")
	setBool(&cfg.Book.StrictValidation, "BOOKREPLAY_BOOK_STRICT_VALIDATION")

	// ── Strategy ──
	setStr(&cfg.Strategy.Name, "BOOKREPLAY_STRATEGY_NAME")
	setFloat64(&cfg.Strategy.Imbalance.Threshold, "BOOKREPLAY_STRATEGY_IMBALANCE_THRESHOLD")
	setInt(&cfg.Strategy.Imbalance.Depth, "BOOKREPLAY_STRATEGY_IMBALANCE_DEPTH")
	setFloat64(&cfg.Strategy.MarketMaker.RiskAversion, "BOOKREPLAY_STRATEGY_MARKET_MAKER_RISK_AVERSION")
	setFloat64(&cfg.Strategy.MarketMaker.InventoryLimit, "BOOKREPLAY_STRATEGY_MARKET_MAKER_INVENTORY_LIMIT")

	// ── Metrics ──
	setStr(&cfg.Metrics.OutputDir, "BOOKREPLAY_METRICS_OUTPUT_DIR")

	// ── Top-level ──
	setStr(&cfg.Mode, "BOOKREPLAY_MODE")
	setStr(&cfg.LogLevel, "BOOKREPLAY_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
