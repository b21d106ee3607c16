// Package metrics persists per-session trade, latency, inventory, PnL and
// book-state records as flat CSV logs and computes end-of-session latency
// percentiles.
package metrics

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Logger implements domain.MetricsSink on top of one append-only CSV file
// per category inside a session-scoped directory.
type Logger struct {
	dir    string
	logger *slog.Logger

	trades    *csvLog
	latency   *csvLog
	inventory *csvLog
	pnl       *csvLog
	orderbook *csvLog

	ingestUs     []int64
	processingUs []int64
}

type csvLog struct {
	file *os.File
	w    *csv.Writer
}

func newCSVLog(path string, header []string) (*csvLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("metrics: open %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("metrics: write header %s: %w", path, err)
	}
	return &csvLog{file: f, w: w}, nil
}

func (c *csvLog) flush() error {
	c.w.Flush()
	return c.w.Error()
}

func (c *csvLog) close() error {
	ferr := c.flush()
	cerr := c.file.Close()
	if ferr != nil {
		return ferr
	}
	return cerr
}

// NewLogger creates the session directory <baseDir>/<symbol>_<stamp>_<run>/
// and opens the five category logs inside it, each with its header row.
func NewLogger(symbol, baseDir string, logger *slog.Logger) (*Logger, error) {
	stamp := time.Now().UTC().Format("2006_01_02_15_04_05")
	run := uuid.NewString()[:8]
	dir := filepath.Join(baseDir, fmt.Sprintf("%s_%s_%s", symbol, stamp, run))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("metrics: create session dir: %w", err)
	}

	l := &Logger{
		dir: dir,
		logger: logger.With(
			slog.String("component", "metrics"),
			slog.String("dir", dir),
		),
	}

	files := []struct {
		dst    **csvLog
		name   string
		header []string
	}{
		{&l.trades, "trades.log", []string{"Time", "Price", "Quantity", "Side"}},
		{&l.latency, "latency.log", []string{"Time", "ExchangeTS", "LocalTS", "ProcessingTS", "IngestLatencyUs", "ProcessingLatencyUs"}},
		{&l.inventory, "inventory.log", []string{"Time", "Position", "PnL"}},
		{&l.pnl, "pnl.log", []string{"Time", "GrossPnL", "NetPnL", "Fees"}},
		{&l.orderbook, "orderbook.log", []string{"Time", "BestBid", "BestAsk", "MidPrice", "Spread", "Imbalance"}},
	}
	for _, s := range files {
		lg, err := newCSVLog(filepath.Join(dir, s.name), s.header)
		if err != nil {
			l.Close()
			return nil, err
		}
		*s.dst = lg
	}

	l.logger.Info("metrics logger initialized", slog.String("symbol", symbol))
	return l, nil
}

// Dir returns the session directory holding the log files.
func (l *Logger) Dir() string { return l.dir }

// RecordTrade appends one fill to trades.log.
func (l *Logger) RecordTrade(ts int64, price, quantity float64, side string) {
	l.write(l.trades, []string{wallClock(ts), ffmt(price), ffmt(quantity), side})
}

// RecordLatency appends one latency sample to latency.log and retains both
// series for the end-of-session summary. Ingest latency is exchange to local
// arrival; processing latency is the engine's own per-event cost.
func (l *Logger) RecordLatency(exchangeTS, localTS, processingUs int64) {
	ingestUs := (localTS - exchangeTS) * 1000
	processingTS := localTS + processingUs/1000
	l.ingestUs = append(l.ingestUs, ingestUs)
	l.processingUs = append(l.processingUs, processingUs)
	l.write(l.latency, []string{
		wallClock(localTS),
		strconv.FormatInt(exchangeTS, 10),
		strconv.FormatInt(localTS, 10),
		strconv.FormatInt(processingTS, 10),
		strconv.FormatInt(ingestUs, 10),
		strconv.FormatInt(processingUs, 10),
	})
}

// RecordInventory appends the running position and PnL to inventory.log.
func (l *Logger) RecordInventory(ts int64, position, pnl float64) {
	l.write(l.inventory, []string{wallClock(ts), ffmt(position), ffmt(pnl)})
}

// RecordPnL appends a PnL breakdown row to pnl.log.
func (l *Logger) RecordPnL(ts int64, gross, net, fees float64) {
	l.write(l.pnl, []string{wallClock(ts), ffmt(gross), ffmt(net), ffmt(fees)})
}

// RecordBookState appends a book snapshot row to orderbook.log.
func (l *Logger) RecordBookState(ts int64, bestBid, bestAsk, mid, spread, imbalance float64) {
	l.write(l.orderbook, []string{
		wallClock(ts), ffmt(bestBid), ffmt(bestAsk), ffmt(mid), ffmt(spread), ffmt(imbalance),
	})
}

func (l *Logger) write(c *csvLog, record []string) {
	if c == nil {
		return
	}
	if err := c.w.Write(record); err != nil {
		l.logger.Error("metrics write failed", slog.String("error", err.Error()))
	}
}

// WriteSummary produces summary.log with min/avg/p50/p95/p99/max for the
// ingest and processing latency series collected so far.
func (l *Logger) WriteSummary() error {
	s, err := newCSVLog(filepath.Join(l.dir, "summary.log"),
		[]string{"Series", "Count", "MinUs", "AvgUs", "P50Us", "P95Us", "P99Us", "MaxUs"})
	if err != nil {
		return err
	}
	for _, series := range []struct {
		name string
		data []int64
	}{
		{"ingest", l.ingestUs},
		{"processing", l.processingUs},
	} {
		if err := s.w.Write(summaryRow(series.name, series.data)); err != nil {
			s.close()
			return fmt.Errorf("metrics: write summary: %w", err)
		}
	}
	return s.close()
}

func summaryRow(name string, data []int64) []string {
	if len(data) == 0 {
		return []string{name, "0", "0", "0", "0", "0", "0", "0"}
	}
	sorted := slices.Clone(data)
	slices.Sort(sorted)

	var total int64
	for _, v := range sorted {
		total += v
	}
	avg := float64(total) / float64(len(sorted))

	return []string{
		name,
		strconv.Itoa(len(sorted)),
		strconv.FormatInt(sorted[0], 10),
		strconv.FormatFloat(avg, 'f', 2, 64),
		strconv.FormatInt(percentile(sorted, 0.50), 10),
		strconv.FormatInt(percentile(sorted, 0.95), 10),
		strconv.FormatInt(percentile(sorted, 0.99), 10),
		strconv.FormatInt(sorted[len(sorted)-1], 10),
	}
}

// percentile is nearest-rank: sorted[floor(p * (n-1))], not interpolated.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(p * float64(len(sorted)-1)))
	return sorted[idx]
}

// Flush forces all buffered rows to disk.
func (l *Logger) Flush() error {
	var first error
	for _, c := range l.logs() {
		if c == nil {
			continue
		}
		if err := c.flush(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close flushes and closes every category log.
func (l *Logger) Close() error {
	var first error
	for _, c := range l.logs() {
		if c == nil {
			continue
		}
		if err := c.close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (l *Logger) logs() []*csvLog {
	return []*csvLog{l.trades, l.latency, l.inventory, l.pnl, l.orderbook}
}

func wallClock(tsMs int64) string {
	return time.UnixMilli(tsMs).UTC().Format("15:04:05")
}

func ffmt(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
