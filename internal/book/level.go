// Package book implements the reconstructed limit order book: per-price
// FIFO queues of synthetic orders rebuilt from Level-2 aggregate-volume
// updates, and the two-sided book with its microstructure queries.
//
// The queues are a research approximation. A Level-2 feed only reports the
// aggregate resting volume at each price, so the book diffs every update
// against the previous aggregate: a positive delta becomes one new synthetic
// order at the back of the queue, a negative delta is consumed from the
// front, oldest first, matching exchange FIFO priority conventions.
package book

import (
	"fmt"
	"math"

	"github.com/alanyoungcy/bookreplay/internal/domain"
)

const (
	// deltaEpsilon bounds what counts as a real volume change. Anything
	// smaller is floating-point noise from re-transmission and must not
	// mint a zero-size synthetic order. A level whose volume falls below
	// it is considered empty.
	deltaEpsilon = 1e-8

	// sumEpsilon is the tolerance for the queue-sum versus aggregate
	// volume invariant check.
	sumEpsilon = 1e-6
)

// SyntheticOrder is a reconstruction artifact: one inferred resting order in
// a price level's queue. It is not a real exchange order and has no identity
// outside its owning level. IDs are assigned by the book, process-local, and
// never reused within a session.
type SyntheticOrder struct {
	ID        uint64
	Price     float64
	Quantity  float64
	Side      domain.Side
	Timestamp int64
}

// PriceLevel is the aggregate state at one price plus the synthetic FIFO
// queue reconstructed from volume deltas. Orders[0] is the oldest.
type PriceLevel struct {
	Price  float64
	Volume float64
	Side   domain.Side
	Orders []SyntheticOrder
}

// NewPriceLevel creates an empty level at the given price.
func NewPriceLevel(price float64, side domain.Side) *PriceLevel {
	return &PriceLevel{Price: price, Side: side}
}

// ApplyDelta moves the level to a new absolute total volume. A positive
// delta appends one synthetic order of that size; a negative delta is
// consumed from the front of the queue, oldest first. Deltas within
// deltaEpsilon are ignored. nextID supplies fresh order identifiers.
func (l *PriceLevel) ApplyDelta(newTotal float64, ts int64, nextID func() uint64) {
	delta := newTotal - l.Volume
	switch {
	case delta > deltaEpsilon:
		l.Orders = append(l.Orders, SyntheticOrder{
			ID:        nextID(),
			Price:     l.Price,
			Quantity:  delta,
			Side:      l.Side,
			Timestamp: ts,
		})
		l.Volume += delta
	case delta < -deltaEpsilon:
		l.reduce(-delta)
	}
}

// reduce consumes qty from the front of the queue: whole orders first, then
// a partial reduction of the next one. Over-reduction past an empty queue
// leaves the level empty rather than letting a quantity go negative.
func (l *PriceLevel) reduce(qty float64) {
	remaining := qty
	for len(l.Orders) > 0 && remaining > deltaEpsilon {
		head := &l.Orders[0]
		if head.Quantity <= remaining+deltaEpsilon {
			remaining -= head.Quantity
			l.Volume -= head.Quantity
			l.Orders = l.Orders[1:]
			continue
		}
		head.Quantity -= remaining
		l.Volume -= remaining
		remaining = 0
	}
	if len(l.Orders) == 0 {
		l.Volume = 0
	}
}

// OrderCount reports the queue length.
func (l *PriceLevel) OrderCount() int { return len(l.Orders) }

// Empty reports whether the level carries no meaningful volume.
func (l *PriceLevel) Empty() bool { return l.Volume < deltaEpsilon }

// Clear empties the queue and zeroes the aggregate volume.
func (l *PriceLevel) Clear() {
	l.Orders = nil
	l.Volume = 0
}

// Validate checks the level's internal invariants: the queue sum equals the
// aggregate volume within sumEpsilon, every quantity is non-negative, and
// the queue is empty exactly when the volume is. A violation indicates a
// defect in the delta logic itself, not bad input.
func (l *PriceLevel) Validate() error {
	var sum float64
	for _, o := range l.Orders {
		if o.Quantity < 0 {
			return fmt.Errorf("book: level %g: synthetic order %d has negative quantity %g", l.Price, o.ID, o.Quantity)
		}
		sum += o.Quantity
	}
	if math.Abs(sum-l.Volume) > sumEpsilon {
		return fmt.Errorf("book: level %g: queue sum %g diverges from aggregate volume %g", l.Price, sum, l.Volume)
	}
	if (len(l.Orders) == 0) != (l.Volume < deltaEpsilon) {
		return fmt.Errorf("book: level %g: queue length %d inconsistent with aggregate volume %g", l.Price, len(l.Orders), l.Volume)
	}
	return nil
}
