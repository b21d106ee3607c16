package strategy

import "math"

// flatEpsilon decides when a position counts as flat after a fill.
const flatEpsilon = 1e-8

// tracker is the position/PnL bookkeeping embedded by every strategy.
type tracker struct {
	position float64
	avgEntry float64
	pnl      float64
}

// RecordFill books a signed fill quantity at price. Realized PnL is applied
// against the current average entry price before the new entry price is
// recomputed as a position-weighted blend. A position that returns to flat
// resets the average entry price to zero.
func (t *tracker) RecordFill(quantity, price float64) {
	if t.position != 0 {
		t.pnl += -quantity * (price - t.avgEntry)
	}
	newPosition := t.position + quantity
	if math.Abs(newPosition) > flatEpsilon {
		t.avgEntry = (t.position*t.avgEntry + quantity*price) / newPosition
	} else {
		t.avgEntry = 0
	}
	t.position = newPosition
}

// Position returns the running signed quantity.
func (t *tracker) Position() float64 { return t.position }

// PnL returns the realized-plus-mark profit and loss.
func (t *tracker) PnL() float64 { return t.pnl }

// AvgEntryPrice returns the volume-weighted average entry price of the
// current position, or zero when flat.
func (t *tracker) AvgEntryPrice() float64 { return t.avgEntry }
