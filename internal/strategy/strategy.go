// Package strategy contains the trading strategies evaluated against order
// book snapshots during replay, plus the shared position and PnL
// bookkeeping they all embed.
package strategy

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/alanyoungcy/bookreplay/internal/domain"
)

// Book is the read-only view of the order book that strategies consume.
type Book interface {
	MidPrice() (float64, bool)
	Spread() (float64, bool)
	Imbalance(depth int) float64
}

// Strategy is the contract for trading strategies: evaluate a book snapshot
// into a discrete signal and keep running position/PnL state as fills are
// recorded against it.
type Strategy interface {
	Name() string
	Evaluate(book Book, ts int64) domain.Signal
	RecordFill(quantity, price float64)
	Position() float64
	PnL() float64
}

// Config holds strategy construction parameters. Zero values fall back to
// per-strategy defaults.
type Config struct {
	Name               string
	ImbalanceThreshold float64
	ImbalanceDepth     int
	RiskAversion       float64
	InventoryLimit     float64
}

// builders maps a strategy name to its constructor.
var builders = map[string]func(cfg Config, logger *slog.Logger) Strategy{
	"imbalance": func(cfg Config, logger *slog.Logger) Strategy {
		return NewImbalance(cfg.ImbalanceThreshold, cfg.ImbalanceDepth, logger)
	},
	"market_maker": func(cfg Config, logger *slog.Logger) Strategy {
		return NewMarketMaker(cfg.RiskAversion, cfg.InventoryLimit, logger)
	},
}

// New constructs the strategy named in cfg. An empty name selects the
// imbalance strategy.
func New(cfg Config, logger *slog.Logger) (Strategy, error) {
	name := cfg.Name
	if name == "" {
		name = "imbalance"
	}
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("strategy %q: not registered", name)
	}
	return build(cfg, logger), nil
}

// Names returns the registered strategy names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builders))
	for n := range builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
