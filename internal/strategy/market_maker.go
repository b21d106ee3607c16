package strategy

import (
	"log/slog"

	"github.com/alanyoungcy/bookreplay/internal/domain"
)

const (
	defaultRiskAversion   = 0.1
	defaultInventoryLimit = 10.0

	// deRiskRatio forces a one-sided signal once the position uses this
	// share of the inventory limit, before any reservation-price logic.
	deRiskRatio = 0.7

	// reservationBand is the dead zone around the reservation price inside
	// which no signal is emitted.
	reservationBand = 1e-4
)

// MarketMaker is an inventory-aware strategy built on a simplified
// Avellaneda-Stoikov reservation price: mid shifted against the current
// inventory by position * riskAversion. It signals to take liquidity when
// the mid drifts outside a small band around that price, and de-risks
// one-sidedly when inventory grows too large.
type MarketMaker struct {
	tracker
	riskAversion   float64
	inventoryLimit float64
	reservation    float64
	logger         *slog.Logger
}

// NewMarketMaker creates a MarketMaker strategy. Non-positive parameters
// fall back to the defaults (risk aversion 0.1, inventory limit 10).
func NewMarketMaker(riskAversion, inventoryLimit float64, logger *slog.Logger) *MarketMaker {
	if riskAversion <= 0 {
		riskAversion = defaultRiskAversion
	}
	if inventoryLimit <= 0 {
		inventoryLimit = defaultInventoryLimit
	}
	return &MarketMaker{
		riskAversion:   riskAversion,
		inventoryLimit: inventoryLimit,
		logger:         logger.With(slog.String("strategy", "market_maker")),
	}
}

// Name returns the strategy identifier.
func (s *MarketMaker) Name() string { return "market_maker" }

// Evaluate computes the reservation price, de-risks when inventory exceeds
// the de-risk share of the limit, and otherwise signals against the mid's
// position relative to the reservation band.
func (s *MarketMaker) Evaluate(book Book, _ int64) domain.Signal {
	mid, ok := book.MidPrice()
	if !ok {
		return domain.SignalHold
	}
	s.reservation = mid - s.position*s.riskAversion

	ratio := s.position / s.inventoryLimit
	if ratio > deRiskRatio {
		return domain.SignalSell
	}
	if ratio < -deRiskRatio {
		return domain.SignalBuy
	}

	if mid < s.reservation-reservationBand {
		return domain.SignalBuy
	}
	if mid > s.reservation+reservationBand {
		return domain.SignalSell
	}
	return domain.SignalHold
}

// ReservationPrice returns the reservation price computed by the most recent
// Evaluate.
func (s *MarketMaker) ReservationPrice() float64 { return s.reservation }
