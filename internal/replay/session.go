// Package replay drives a recorded event feed through the order book,
// strategy, and metrics pipeline one event at a time. The pipeline is
// synchronous: an event is fully applied, evaluated, and recorded before the
// next one is read, so the session owns its book exclusively.
package replay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/alanyoungcy/bookreplay/internal/book"
	"github.com/alanyoungcy/bookreplay/internal/domain"
	"github.com/alanyoungcy/bookreplay/internal/strategy"
)

// FeedMode selects how event quantities are interpreted.
type FeedMode string

const (
	// FeedModeReplace treats quantity as the new absolute volume at the
	// price (L2-replace semantics).
	FeedModeReplace FeedMode = "replace"
	// FeedModeDelta treats quantity as a signed increment to the current
	// volume (L2-incremental semantics).
	FeedModeDelta FeedMode = "delta"
)

// Sampling cadences, in events. From-zero counting means the very first
// event also triggers each cadence.
const (
	defaultStrategyInterval  = 10
	defaultBookStateInterval = 100
	defaultLatencyInterval   = 1000
	defaultProgressInterval  = 10000
	defaultTradeSize         = 0.01
	defaultImbalanceDepth    = 5
)

// Config controls one replay session.
type Config struct {
	Symbol            string
	FeedMode          FeedMode
	TradeSize         float64
	StrategyInterval  int
	BookStateInterval int
	LatencyInterval   int
	ProgressInterval  int
}

func (c *Config) applyDefaults() {
	if c.FeedMode == "" {
		c.FeedMode = FeedModeReplace
	}
	if c.TradeSize <= 0 {
		c.TradeSize = defaultTradeSize
	}
	if c.StrategyInterval <= 0 {
		c.StrategyInterval = defaultStrategyInterval
	}
	if c.BookStateInterval <= 0 {
		c.BookStateInterval = defaultBookStateInterval
	}
	if c.LatencyInterval <= 0 {
		c.LatencyInterval = defaultLatencyInterval
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = defaultProgressInterval
	}
}

// Stats summarizes a completed session.
type Stats struct {
	EventsProcessed        uint64
	LinesSkipped           int
	SequenceGaps           uint64
	CrossedEvents          uint64
	Trades                 uint64
	AvgProcessingLatencyUs float64
	FinalPosition          float64
	FinalPnL               float64
	FinalBestBid           float64
	FinalBestAsk           float64
	HasFinalQuote          bool
}

// Session replays one event file against one order book and strategy.
type Session struct {
	cfg    Config
	source domain.EventSource
	book   *book.OrderBook
	strat  strategy.Strategy
	sink   domain.MetricsSink
	logger *slog.Logger
}

// NewSession wires a session from its collaborators. Zero-value cadences and
// trade size in cfg are replaced with the defaults.
func NewSession(cfg Config, source domain.EventSource, ob *book.OrderBook, strat strategy.Strategy, sink domain.MetricsSink, logger *slog.Logger) *Session {
	cfg.applyDefaults()
	return &Session{
		cfg:    cfg,
		source: source,
		book:   ob,
		strat:  strat,
		sink:   sink,
		logger: logger.With(
			slog.String("component", "replay"),
			slog.String("symbol", cfg.Symbol),
		),
	}
}

// Run processes the feed to completion (or context cancellation) and returns
// the session statistics. Malformed lines are skipped by the source; a
// flagged crossed book is counted, logged, and replay continues. Only read
// failures, strict-mode invariant violations, and cancellation abort the
// session. The metrics summary is written before returning on the success
// path.
func (s *Session) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	var totalProcessingUs int64
	var lastSeq uint64
	lastKind := domain.KindSnapshot

	s.logger.Info("replay session starting",
		slog.String("feed_mode", string(s.cfg.FeedMode)),
		slog.String("strategy", s.strat.Name()),
	)

	for {
		if err := ctx.Err(); err != nil {
			stats.LinesSkipped = s.source.Skipped()
			return stats, err
		}

		ev, err := s.source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			stats.LinesSkipped = s.source.Skipped()
			return stats, err
		}

		start := time.Now()

		// A snapshot row after a run of updates marks a feed resync: the
		// previous book state is stale and the queues must not survive it.
		if ev.Kind == domain.KindSnapshot && lastKind == domain.KindUpdate {
			s.logger.Info("snapshot boundary, resyncing book",
				slog.Uint64("sequence", ev.Sequence),
			)
			s.book.Clear()
		}
		lastKind = ev.Kind

		if lastSeq != 0 && ev.Sequence != lastSeq+1 {
			stats.SequenceGaps++
			s.logger.Debug("exchange sequence gap",
				slog.Uint64("from", lastSeq),
				slog.Uint64("to", ev.Sequence),
			)
		}
		lastSeq = ev.Sequence

		if err := s.applyEvent(ev); err != nil {
			if !errors.Is(err, domain.ErrCrossedBook) {
				stats.LinesSkipped = s.source.Skipped()
				return stats, err
			}
			// Flag policy: corruption is recorded, replay continues and
			// the stale state stands until the next snapshot.
			s.logger.Warn("crossed book flagged",
				slog.Uint64("sequence", ev.Sequence),
				slog.String("error", err.Error()),
			)
		}

		if stats.EventsProcessed%uint64(s.cfg.StrategyInterval) == 0 {
			s.evaluateStrategy(ev, &stats)
		}
		if stats.EventsProcessed%uint64(s.cfg.BookStateInterval) == 0 {
			s.recordBookState(ev)
		}

		processingUs := time.Since(start).Microseconds()
		totalProcessingUs += processingUs
		if stats.EventsProcessed%uint64(s.cfg.LatencyInterval) == 0 {
			s.sink.RecordLatency(ev.ExchangeTS, ev.LocalTS, processingUs)
		}

		stats.EventsProcessed++
		if stats.EventsProcessed%uint64(s.cfg.ProgressInterval) == 0 {
			s.logger.Info("replay progress",
				slog.Uint64("events", stats.EventsProcessed),
				slog.Int("skipped", s.source.Skipped()),
			)
		}
	}

	stats.LinesSkipped = s.source.Skipped()
	stats.CrossedEvents = s.book.CrossedEvents()
	stats.FinalPosition = s.strat.Position()
	stats.FinalPnL = s.strat.PnL()
	if bid, ok := s.book.BestBid(); ok {
		if ask, ok := s.book.BestAsk(); ok {
			stats.FinalBestBid = bid
			stats.FinalBestAsk = ask
			stats.HasFinalQuote = true
		}
	}
	if stats.EventsProcessed > 0 {
		stats.AvgProcessingLatencyUs = float64(totalProcessingUs) / float64(stats.EventsProcessed)
	}

	if err := s.sink.WriteSummary(); err != nil {
		s.logger.Error("failed to write latency summary", slog.String("error", err.Error()))
	}
	if err := s.sink.Flush(); err != nil {
		s.logger.Error("failed to flush metrics", slog.String("error", err.Error()))
	}

	s.logger.Info("replay session complete",
		slog.Uint64("events", stats.EventsProcessed),
		slog.Int("skipped", stats.LinesSkipped),
		slog.Uint64("trades", stats.Trades),
		slog.Float64("avg_processing_latency_us", stats.AvgProcessingLatencyUs),
	)
	return stats, nil
}

func (s *Session) applyEvent(ev domain.Event) error {
	if s.cfg.FeedMode == FeedModeDelta {
		return s.book.ApplyIncrement(ev.Price, ev.Quantity, ev.Side, ev.ExchangeTS)
	}
	return s.book.Update(ev.Price, ev.Quantity, ev.Side, ev.ExchangeTS)
}

// evaluateStrategy runs one strategy evaluation and, on a non-hold signal,
// books a fixed-size fill at the mid price and records trade, inventory and
// PnL rows.
func (s *Session) evaluateStrategy(ev domain.Event, stats *Stats) {
	sig := s.strat.Evaluate(s.book, ev.LocalTS)
	if sig == domain.SignalHold {
		return
	}
	mid, ok := s.book.MidPrice()
	if !ok {
		return
	}

	quantity := float64(sig) * s.cfg.TradeSize
	s.strat.RecordFill(quantity, mid)
	stats.Trades++

	s.sink.RecordTrade(ev.LocalTS, mid, math.Abs(quantity), sig.String())
	s.sink.RecordInventory(ev.LocalTS, s.strat.Position(), s.strat.PnL())
	s.sink.RecordPnL(ev.LocalTS, s.strat.PnL(), s.strat.PnL(), 0)
}

func (s *Session) recordBookState(ev domain.Event) {
	bid, bidOK := s.book.BestBid()
	ask, askOK := s.book.BestAsk()
	if !bidOK || !askOK {
		return
	}
	mid, _ := s.book.MidPrice()
	spread, _ := s.book.Spread()
	s.sink.RecordBookState(ev.LocalTS, bid, ask, mid, spread, s.book.Imbalance(defaultImbalanceDepth))
}
