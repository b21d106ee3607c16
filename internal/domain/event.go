// Package domain defines the shared types and contracts of the replay
// engine: recorded feed events, trade signals, book levels, and the
// interfaces implemented by the feed and metrics subsystems.
package domain

// Side identifies which half of the book an event or level belongs to.
type Side string

const (
	SideBid Side = "BID"
	SideAsk Side = "ASK"
)

// EventKind distinguishes full-snapshot rows from incremental updates.
type EventKind string

const (
	KindSnapshot EventKind = "SNAPSHOT"
	KindUpdate   EventKind = "UPDATE"
)

// Event is one parsed book-update record from a recorded feed. It is
// immutable once parsed. Timestamps are milliseconds since epoch; feed
// ordering is by Sequence, not by arrival order.
type Event struct {
	Sequence   uint64
	ExchangeTS int64
	LocalTS    int64
	Kind       EventKind
	Price      float64
	Quantity   float64
	Side       Side
}

// BookLevel is one (price, aggregate volume) pair returned by depth queries.
type BookLevel struct {
	Price  float64
	Volume float64
}
