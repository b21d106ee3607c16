package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/bookreplay/internal/replay"
)

// ReplayMode processes a single event file to completion and logs the final
// session statistics.
func (a *App) ReplayMode(ctx context.Context) error {
	session, cleanup, err := buildSession(a.cfg, a.cfg.Replay.EventFile, a.logger)
	if err != nil {
		return fmt.Errorf("app: build session: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	stats, err := session.Run(ctx)
	if err != nil {
		return fmt.Errorf("app: replay %s: %w", a.cfg.Replay.EventFile, err)
	}
	a.logStats(a.cfg.Replay.EventFile, stats)
	return nil
}

// BatchMode replays several event files concurrently, one independent
// session per file. Each session exclusively owns its book, strategy, and
// metrics directory, so no book is ever mutated from more than one
// goroutine.
func (a *App) BatchMode(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, eventFile := range a.cfg.Replay.EventFiles {
		eventFile := eventFile
		session, cleanup, err := buildSession(a.cfg, eventFile, a.logger)
		if err != nil {
			return fmt.Errorf("app: build session for %s: %w", eventFile, err)
		}
		a.closers = append(a.closers, cleanup)

		g.Go(func() error {
			stats, err := session.Run(ctx)
			if err != nil {
				return fmt.Errorf("app: replay %s: %w", eventFile, err)
			}
			a.logStats(eventFile, stats)
			return nil
		})
	}

	return g.Wait()
}

// logStats writes the end-of-session statistics to the status stream.
func (a *App) logStats(eventFile string, stats replay.Stats) {
	attrs := []any{
		slog.String("event_file", eventFile),
		slog.Uint64("events_processed", stats.EventsProcessed),
		slog.Int("lines_skipped", stats.LinesSkipped),
		slog.Uint64("sequence_gaps", stats.SequenceGaps),
		slog.Uint64("crossed_events", stats.CrossedEvents),
		slog.Uint64("trades", stats.Trades),
		slog.Float64("avg_processing_latency_us", stats.AvgProcessingLatencyUs),
		slog.Float64("final_position", stats.FinalPosition),
		slog.Float64("final_pnl", stats.FinalPnL),
	}
	if stats.HasFinalQuote {
		attrs = append(attrs,
			slog.Float64("final_best_bid", stats.FinalBestBid),
			slog.Float64("final_best_ask", stats.FinalBestAsk),
		)
	}
	a.logger.Info("session statistics", attrs...)
}
