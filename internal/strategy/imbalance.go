package strategy

import (
	"log/slog"

	"github.com/alanyoungcy/bookreplay/internal/domain"
)

const (
	defaultImbalanceThreshold = 0.3
	defaultImbalanceDepth     = 5
)

// Imbalance is a strategy that buys when top-of-book volume is skewed toward
// the bids beyond a threshold and sells on the mirror condition. Skew toward
// the bids suggests buying pressure and a rising price.
type Imbalance struct {
	tracker
	threshold     float64
	depth         int
	lastImbalance float64
	logger        *slog.Logger
}

// NewImbalance creates an Imbalance strategy. Non-positive threshold or
// depth fall back to the defaults (0.3 over 5 levels).
func NewImbalance(threshold float64, depth int, logger *slog.Logger) *Imbalance {
	if threshold <= 0 {
		threshold = defaultImbalanceThreshold
	}
	if depth <= 0 {
		depth = defaultImbalanceDepth
	}
	return &Imbalance{
		threshold: threshold,
		depth:     depth,
		logger:    logger.With(slog.String("strategy", "imbalance")),
	}
}

// Name returns the strategy identifier.
func (s *Imbalance) Name() string { return "imbalance" }

// Evaluate emits a buy when imbalance exceeds the threshold, a sell when it
// falls below the negated threshold, and hold otherwise.
func (s *Imbalance) Evaluate(book Book, _ int64) domain.Signal {
	imb := book.Imbalance(s.depth)
	s.lastImbalance = imb

	switch {
	case imb > s.threshold:
		return domain.SignalBuy
	case imb < -s.threshold:
		return domain.SignalSell
	default:
		return domain.SignalHold
	}
}

// LastImbalance returns the imbalance observed by the most recent Evaluate.
func (s *Imbalance) LastImbalance() float64 { return s.lastImbalance }
