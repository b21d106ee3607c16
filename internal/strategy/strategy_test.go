package strategy

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bookreplay/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBook is a canned Book view for strategy tests.
type fakeBook struct {
	mid       float64
	hasMid    bool
	spread    float64
	imbalance float64
}

func (f fakeBook) MidPrice() (float64, bool) { return f.mid, f.hasMid }
func (f fakeBook) Spread() (float64, bool)   { return f.spread, f.hasMid }
func (f fakeBook) Imbalance(int) float64     { return f.imbalance }

func TestTrackerRecordFill(t *testing.T) {
	var tr tracker

	tr.RecordFill(2, 100)
	assert.Equal(t, 2.0, tr.Position())
	assert.Equal(t, 100.0, tr.AvgEntryPrice())
	assert.Equal(t, 0.0, tr.PnL())

	// Averaging up: 2@100 + 2@110 -> 4@105. The realized delta
	// -quantity*(price-avgEntry) books -20 before the entry price blends.
	tr.RecordFill(2, 110)
	assert.Equal(t, 4.0, tr.Position())
	assert.InDelta(t, 105.0, tr.AvgEntryPrice(), 1e-12)
	assert.InDelta(t, -20.0, tr.PnL(), 1e-12)

	// Selling 4 at 110 books 4 * (110 - 105) = 20 and goes flat.
	tr.RecordFill(-4, 110)
	assert.InDelta(t, 0.0, tr.Position(), 1e-12)
	assert.InDelta(t, 0.0, tr.PnL(), 1e-12)
	assert.Equal(t, 0.0, tr.AvgEntryPrice(), "flat position resets entry price")
}

func TestTrackerShortSide(t *testing.T) {
	var tr tracker

	tr.RecordFill(-1, 100)
	assert.Equal(t, -1.0, tr.Position())
	assert.Equal(t, 100.0, tr.AvgEntryPrice())

	// Covering the short at 90 realizes 1 * (100 - 90) = 10.
	tr.RecordFill(1, 90)
	assert.InDelta(t, 0.0, tr.Position(), 1e-12)
	assert.InDelta(t, 10.0, tr.PnL(), 1e-12)
	assert.Equal(t, 0.0, tr.AvgEntryPrice())
}

func TestImbalanceSignals(t *testing.T) {
	s := NewImbalance(0.3, 5, discardLogger())
	require.Equal(t, "imbalance", s.Name())

	assert.Equal(t, domain.SignalBuy, s.Evaluate(fakeBook{imbalance: 0.5}, 0))
	assert.Equal(t, domain.SignalSell, s.Evaluate(fakeBook{imbalance: -0.5}, 0))
	assert.Equal(t, domain.SignalHold, s.Evaluate(fakeBook{imbalance: 0.2}, 0))
	assert.Equal(t, domain.SignalHold, s.Evaluate(fakeBook{imbalance: -0.3}, 0), "threshold is exclusive")
	assert.Equal(t, -0.3, s.LastImbalance())
}

func TestImbalanceDefaults(t *testing.T) {
	s := NewImbalance(0, 0, discardLogger())
	assert.Equal(t, defaultImbalanceThreshold, s.threshold)
	assert.Equal(t, defaultImbalanceDepth, s.depth)
}

func TestMarketMakerDeRiskOverridesReservation(t *testing.T) {
	s := NewMarketMaker(0.1, 10, discardLogger())
	require.Equal(t, "market_maker", s.Name())

	// Long 8 of a limit of 10 exceeds the de-risk share: forced sell even
	// though the reservation logic alone would also say sell here.
	s.RecordFill(8, 100)
	assert.Equal(t, domain.SignalSell, s.Evaluate(fakeBook{mid: 100, hasMid: true}, 0))

	// Mirror case: deep short forces a buy.
	s.RecordFill(-16, 100)
	require.Equal(t, -8.0, s.Position())
	assert.Equal(t, domain.SignalBuy, s.Evaluate(fakeBook{mid: 100, hasMid: true}, 0))
}

func TestMarketMakerReservationBand(t *testing.T) {
	s := NewMarketMaker(0.1, 10, discardLogger())

	// Flat book: reservation == mid, inside the band, hold.
	assert.Equal(t, domain.SignalHold, s.Evaluate(fakeBook{mid: 100, hasMid: true}, 0))
	assert.Equal(t, 100.0, s.ReservationPrice())

	// Long inventory shifts the reservation below mid: mid sits above it,
	// so the strategy works the position off with a sell.
	s.RecordFill(2, 100)
	assert.Equal(t, domain.SignalSell, s.Evaluate(fakeBook{mid: 100, hasMid: true}, 0))
	assert.InDelta(t, 99.8, s.ReservationPrice(), 1e-12)

	// Short inventory shifts it above mid: buy.
	s.RecordFill(-4, 100)
	assert.Equal(t, domain.SignalBuy, s.Evaluate(fakeBook{mid: 100, hasMid: true}, 0))
}

func TestMarketMakerHoldsWithoutMid(t *testing.T) {
	s := NewMarketMaker(0.1, 10, discardLogger())
	assert.Equal(t, domain.SignalHold, s.Evaluate(fakeBook{hasMid: false}, 0))
}

func TestNewFactory(t *testing.T) {
	s, err := New(Config{Name: "imbalance", ImbalanceThreshold: 0.4, ImbalanceDepth: 3}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "imbalance", s.Name())

	s, err = New(Config{Name: "market_maker"}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "market_maker", s.Name())

	s, err = New(Config{}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "imbalance", s.Name(), "empty name selects the default strategy")

	_, err = New(Config{Name: "momentum"}, discardLogger())
	assert.Error(t, err)

	assert.Equal(t, []string{"imbalance", "market_maker"}, Names())
}
