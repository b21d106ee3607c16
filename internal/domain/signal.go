package domain

// Signal is the discrete output of a strategy evaluation.
type Signal int

const (
	SignalSell Signal = -1
	SignalHold Signal = 0
	SignalBuy  Signal = 1
)

// String returns the trade-log spelling of the signal.
func (s Signal) String() string {
	switch {
	case s > 0:
		return "BUY"
	case s < 0:
		return "SELL"
	default:
		return "HOLD"
	}
}
