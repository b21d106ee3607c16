package app

import (
	"log/slog"

	"github.com/alanyoungcy/bookreplay/internal/book"
	"github.com/alanyoungcy/bookreplay/internal/config"
	"github.com/alanyoungcy/bookreplay/internal/feed"
	"github.com/alanyoungcy/bookreplay/internal/metrics"
	"github.com/alanyoungcy/bookreplay/internal/replay"
	"github.com/alanyoungcy/bookreplay/internal/strategy"
)

// buildSession constructs one fully wired replay session for eventFile,
// together with a cleanup function that releases the source and metrics
// files. Every session owns its book, strategy, and metrics directory
// exclusively, which is what allows batch mode to run sessions concurrently.
func buildSession(cfg *config.Config, eventFile string, logger *slog.Logger) (*replay.Session, func(), error) {
	source, err := feed.NewFileSource(eventFile, logger)
	if err != nil {
		return nil, nil, err
	}

	ob := book.New(cfg.Replay.Symbol, book.Options{
		CrossedPolicy:    book.CrossedPolicy(cfg.Book.CrossedPolicy),
		StrictValidation: cfg.Book.StrictValidation,
	}, logger)

	strat, err := strategy.New(strategy.Config{
		Name:               cfg.Strategy.Name,
		ImbalanceThreshold: cfg.Strategy.Imbalance.Threshold,
		ImbalanceDepth:     cfg.Strategy.Imbalance.Depth,
		RiskAversion:       cfg.Strategy.MarketMaker.RiskAversion,
		InventoryLimit:     cfg.Strategy.MarketMaker.InventoryLimit,
	}, logger)
	if err != nil {
		source.Close()
		return nil, nil, err
	}

	sink, err := metrics.NewLogger(cfg.Replay.Symbol, cfg.Metrics.OutputDir, logger)
	if err != nil {
		source.Close()
		return nil, nil, err
	}

	session := replay.NewSession(replay.Config{
		Symbol:            cfg.Replay.Symbol,
		FeedMode:          replay.FeedMode(cfg.Replay.FeedMode),
		TradeSize:         cfg.Replay.TradeSize,
		StrategyInterval:  cfg.Replay.StrategyInterval,
		BookStateInterval: cfg.Replay.BookStateInterval,
		LatencyInterval:   cfg.Replay.LatencyInterval,
		ProgressInterval:  cfg.Replay.ProgressInterval,
	}, source, ob, strat, sink, logger)

	cleanup := func() {
		if err := sink.Close(); err != nil {
			logger.Error("closing metrics sink", slog.String("error", err.Error()))
		}
		if err := source.Close(); err != nil {
			logger.Error("closing event source", slog.String("error", err.Error()))
		}
	}
	return session, cleanup, nil
}
