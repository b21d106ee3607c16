package domain

// MetricsSink is the durable record of trades, latencies, inventory, PnL and
// book state for one replay session. Record methods never fail the replay;
// write errors surface on Flush or Close. Timestamps are milliseconds since
// epoch, latencies are microseconds.
type MetricsSink interface {
	RecordTrade(ts int64, price, quantity float64, side string)
	RecordLatency(exchangeTS, localTS, processingUs int64)
	RecordInventory(ts int64, position, pnl float64)
	RecordPnL(ts int64, gross, net, fees float64)
	RecordBookState(ts int64, bestBid, bestAsk, mid, spread, imbalance float64)
	WriteSummary() error
	Flush() error
	Close() error
}
