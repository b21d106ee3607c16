package book

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/google/btree"

	"github.com/alanyoungcy/bookreplay/internal/domain"
)

// CrossedPolicy selects how a crossed book (best bid above best ask) is
// handled. A locked book (best bid equal to best ask) is tolerated by both
// policies.
type CrossedPolicy string

const (
	// CrossedRepair trims bid levels priced above the best ask and ask
	// levels priced below the surviving best bid, logging each removal.
	CrossedRepair CrossedPolicy = "repair"
	// CrossedFlag reports the corruption and leaves state untouched,
	// deferring to an external resync.
	CrossedFlag CrossedPolicy = "flag"
)

// Options configure corruption handling for an OrderBook.
type Options struct {
	CrossedPolicy CrossedPolicy
	// StrictValidation makes Update return level-invariant violations as
	// errors instead of downgrading them to telemetry. Intended for tests
	// and debug runs; a violation is a defect in the delta logic, never
	// bad input.
	StrictValidation bool
}

const btreeDegree = 32

// OrderBook owns both sides of the book for one instrument: bids ordered by
// descending price, asks by ascending price. It is exclusively owned by the
// replay loop and is not safe for concurrent writers.
type OrderBook struct {
	symbol string
	bids   *btree.BTreeG[*PriceLevel]
	asks   *btree.BTreeG[*PriceLevel]
	opts   Options
	logger *slog.Logger

	nextOrderID         uint64
	crossedEvents       uint64
	repairedLevels      uint64
	invariantViolations uint64
}

// New creates an empty OrderBook for symbol. A zero-value CrossedPolicy
// defaults to CrossedRepair.
func New(symbol string, opts Options, logger *slog.Logger) *OrderBook {
	if opts.CrossedPolicy == "" {
		opts.CrossedPolicy = CrossedRepair
	}
	return &OrderBook{
		symbol: symbol,
		bids: btree.NewG(btreeDegree, func(a, b *PriceLevel) bool {
			return a.Price > b.Price
		}),
		asks: btree.NewG(btreeDegree, func(a, b *PriceLevel) bool {
			return a.Price < b.Price
		}),
		opts:        opts,
		nextOrderID: 1,
		logger: logger.With(
			slog.String("component", "orderbook"),
			slog.String("symbol", symbol),
		),
	}
}

// Symbol returns the instrument this book tracks.
func (ob *OrderBook) Symbol() string { return ob.symbol }

func (ob *OrderBook) tree(side domain.Side) *btree.BTreeG[*PriceLevel] {
	if side == domain.SideBid {
		return ob.bids
	}
	return ob.asks
}

func (ob *OrderBook) allocOrderID() uint64 {
	id := ob.nextOrderID
	ob.nextOrderID++
	return id
}

// Update applies one Level-2 replace update: quantity is the new absolute
// volume at price. A zero quantity removes the level outright. Otherwise the
// level is located or created and the delta is reconciled against its
// synthetic queue. Returns domain.ErrCrossedBook (wrapped) when the update
// leaves the book crossed under the flag policy, or an invariant error under
// strict validation.
func (ob *OrderBook) Update(price, quantity float64, side domain.Side, ts int64) error {
	tree := ob.tree(side)
	key := &PriceLevel{Price: price}

	if math.Abs(quantity) < deltaEpsilon {
		tree.Delete(key)
		return nil
	}

	lvl, ok := tree.Get(key)
	if !ok {
		lvl = NewPriceLevel(price, side)
		tree.ReplaceOrInsert(lvl)
	}
	lvl.ApplyDelta(quantity, ts, ob.allocOrderID)
	if lvl.Empty() {
		tree.Delete(key)
	} else if err := lvl.Validate(); err != nil {
		ob.invariantViolations++
		if ob.opts.StrictValidation {
			return err
		}
		ob.logger.Error("level invariant violation", slog.String("error", err.Error()))
	}

	return ob.checkIntegrity()
}

// ApplyIncrement applies an L2-incremental update: quantity is a signed
// volume delta rather than a new absolute total.
func (ob *OrderBook) ApplyIncrement(price, delta float64, side domain.Side, ts int64) error {
	return ob.Update(price, ob.VolumeAt(price, side)+delta, side, ts)
}

// checkIntegrity enforces the configured crossed-book policy after a
// mutation. It acts only when the best bid is strictly above the best ask; a
// locked book passes.
func (ob *OrderBook) checkIntegrity() error {
	if !ob.IsCrossed() {
		return nil
	}
	ob.crossedEvents++
	bid, _ := ob.BestBid()
	ask, _ := ob.BestAsk()

	if ob.opts.CrossedPolicy == CrossedFlag {
		ob.logger.Warn("crossed book detected, awaiting resync",
			slog.Float64("best_bid", bid),
			slog.Float64("best_ask", ask),
		)
		return fmt.Errorf("book %s: best bid %g above best ask %g: %w", ob.symbol, bid, ask, domain.ErrCrossedBook)
	}

	removed := ob.RepairCrossedBook()
	ob.logger.Warn("crossed book repaired",
		slog.Float64("best_bid", bid),
		slog.Float64("best_ask", ask),
		slog.Int("levels_removed", removed),
	)
	return nil
}

// IsCrossed reports whether the best bid is strictly above the best ask. It
// never mutates the book.
func (ob *OrderBook) IsCrossed() bool {
	bid, bidOK := ob.BestBid()
	ask, askOK := ob.BestAsk()
	return bidOK && askOK && bid > ask
}

// RepairCrossedBook trims every bid level priced strictly above the best ask,
// then every ask level priced strictly below the surviving best bid, logging
// each removal. A locked book is left as is. Returns the number of levels
// removed.
func (ob *OrderBook) RepairCrossedBook() int {
	removed := 0

	if ask, ok := ob.BestAsk(); ok {
		for {
			lvl, ok := ob.bids.Min()
			if !ok || lvl.Price <= ask {
				break
			}
			ob.bids.Delete(lvl)
			removed++
			ob.logger.Warn("dropped crossed bid level",
				slog.Float64("price", lvl.Price),
				slog.Float64("volume", lvl.Volume),
			)
		}
	}
	if bid, ok := ob.BestBid(); ok {
		for {
			lvl, ok := ob.asks.Min()
			if !ok || lvl.Price >= bid {
				break
			}
			ob.asks.Delete(lvl)
			removed++
			ob.logger.Warn("dropped crossed ask level",
				slog.Float64("price", lvl.Price),
				slog.Float64("volume", lvl.Volume),
			)
		}
	}

	ob.repairedLevels += uint64(removed)
	return removed
}

// BestBid returns the highest bid price, if any.
func (ob *OrderBook) BestBid() (float64, bool) {
	lvl, ok := ob.bids.Min()
	if !ok {
		return 0, false
	}
	return lvl.Price, true
}

// BestAsk returns the lowest ask price, if any.
func (ob *OrderBook) BestAsk() (float64, bool) {
	lvl, ok := ob.asks.Min()
	if !ok {
		return 0, false
	}
	return lvl.Price, true
}

// MidPrice returns the average of the best bid and ask. Defined only when
// both sides are non-empty.
func (ob *OrderBook) MidPrice() (float64, bool) {
	bid, bidOK := ob.BestBid()
	ask, askOK := ob.BestAsk()
	if !bidOK || !askOK {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// Spread returns best ask minus best bid. Defined only when both sides are
// non-empty.
func (ob *OrderBook) Spread() (float64, bool) {
	bid, bidOK := ob.BestBid()
	ask, askOK := ob.BestAsk()
	if !bidOK || !askOK {
		return 0, false
	}
	return ask - bid, true
}

// VolumeAt returns the aggregate volume at price on the given side, or zero
// when no level exists there.
func (ob *OrderBook) VolumeAt(price float64, side domain.Side) float64 {
	lvl, ok := ob.tree(side).Get(&PriceLevel{Price: price})
	if !ok {
		return 0
	}
	return lvl.Volume
}

// OrdersAt returns a copy of the synthetic queue at price on the given side,
// oldest first.
func (ob *OrderBook) OrdersAt(price float64, side domain.Side) []SyntheticOrder {
	lvl, ok := ob.tree(side).Get(&PriceLevel{Price: price})
	if !ok {
		return nil
	}
	out := make([]SyntheticOrder, len(lvl.Orders))
	copy(out, lvl.Orders)
	return out
}

// Depth returns up to n (price, volume) pairs from the given side in its
// natural sort order: bids descending, asks ascending.
func (ob *OrderBook) Depth(side domain.Side, n int) []domain.BookLevel {
	out := make([]domain.BookLevel, 0, n)
	ob.tree(side).Ascend(func(lvl *PriceLevel) bool {
		if len(out) >= n {
			return false
		}
		out = append(out, domain.BookLevel{Price: lvl.Price, Volume: lvl.Volume})
		return true
	})
	return out
}

// TotalBidVolume sums aggregate volume over the top depth bid levels.
func (ob *OrderBook) TotalBidVolume(depth int) float64 {
	return sumVolume(ob.bids, depth)
}

// TotalAskVolume sums aggregate volume over the top depth ask levels.
func (ob *OrderBook) TotalAskVolume(depth int) float64 {
	return sumVolume(ob.asks, depth)
}

func sumVolume(tree *btree.BTreeG[*PriceLevel], depth int) float64 {
	var total float64
	count := 0
	tree.Ascend(func(lvl *PriceLevel) bool {
		if count >= depth {
			return false
		}
		total += lvl.Volume
		count++
		return true
	})
	return total
}

// Imbalance returns (bidVolume - askVolume) / (bidVolume + askVolume) over
// the top depth levels of each side, in [-1, 1]. Defined as 0 when the
// combined volume is below deltaEpsilon.
func (ob *OrderBook) Imbalance(depth int) float64 {
	bidVol := ob.TotalBidVolume(depth)
	askVol := ob.TotalAskVolume(depth)
	total := bidVol + askVol
	if total < deltaEpsilon {
		return 0
	}
	return (bidVol - askVol) / total
}

// BidLevels reports how many bid price levels are populated.
func (ob *OrderBook) BidLevels() int { return ob.bids.Len() }

// AskLevels reports how many ask price levels are populated.
func (ob *OrderBook) AskLevels() int { return ob.asks.Len() }

// CrossedEvents reports how many times a crossed book was detected.
func (ob *OrderBook) CrossedEvents() uint64 { return ob.crossedEvents }

// RepairedLevels reports how many levels crossed-book repair has discarded.
func (ob *OrderBook) RepairedLevels() uint64 { return ob.repairedLevels }

// InvariantViolations reports how many level validations failed. Nonzero
// values indicate a defect in the delta reconstruction.
func (ob *OrderBook) InvariantViolations() uint64 { return ob.invariantViolations }

// Clear empties both sides and restarts the synthetic order id counter at 1.
// Used when the event stream signals a fresh snapshot.
func (ob *OrderBook) Clear() {
	ob.bids.Clear(false)
	ob.asks.Clear(false)
	ob.nextOrderID = 1
}

// Validate checks every level's internal invariants. Intended for tests and
// debug runs.
func (ob *OrderBook) Validate() error {
	var err error
	check := func(lvl *PriceLevel) bool {
		if verr := lvl.Validate(); verr != nil {
			err = verr
			return false
		}
		return true
	}
	ob.bids.Ascend(check)
	if err != nil {
		return err
	}
	ob.asks.Ascend(check)
	return err
}
