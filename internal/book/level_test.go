package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bookreplay/internal/domain"
)

func newIDGen() func() uint64 {
	var next uint64
	return func() uint64 {
		next++
		return next
	}
}

func quantities(orders []SyntheticOrder) []float64 {
	out := make([]float64, len(orders))
	for i, o := range orders {
		out[i] = o.Quantity
	}
	return out
}

func TestApplyDeltaAppendsNewOrder(t *testing.T) {
	lvl := NewPriceLevel(100, domain.SideBid)
	gen := newIDGen()

	lvl.ApplyDelta(50, 1000, gen)
	require.NoError(t, lvl.Validate())
	assert.Equal(t, []float64{50}, quantities(lvl.Orders))
	assert.Equal(t, 50.0, lvl.Volume)

	lvl.ApplyDelta(80, 1001, gen)
	require.NoError(t, lvl.Validate())
	assert.Equal(t, []float64{50, 30}, quantities(lvl.Orders))
	assert.Equal(t, 80.0, lvl.Volume)
	assert.Equal(t, 2, lvl.OrderCount())
}

func TestApplyDeltaReducesFIFO(t *testing.T) {
	lvl := NewPriceLevel(100, domain.SideBid)
	gen := newIDGen()
	lvl.ApplyDelta(50, 1000, gen)
	lvl.ApplyDelta(80, 1001, gen) // [50, 30]

	// Delta -20: oldest order partially reduced, second untouched.
	lvl.ApplyDelta(60, 1002, gen)
	require.NoError(t, lvl.Validate())
	assert.Equal(t, []float64{30, 30}, quantities(lvl.Orders))
	assert.Equal(t, 60.0, lvl.Volume)

	// Delta -50: first order of 30 removed, second reduced to 10.
	lvl.ApplyDelta(10, 1003, gen)
	require.NoError(t, lvl.Validate())
	assert.Equal(t, []float64{10}, quantities(lvl.Orders))
	assert.Equal(t, 10.0, lvl.Volume)
}

func TestApplyDeltaFIFOPreservation(t *testing.T) {
	lvl := NewPriceLevel(100, domain.SideBid)
	gen := newIDGen()
	lvl.ApplyDelta(10, 1000, gen)
	lvl.ApplyDelta(25, 1001, gen)
	lvl.ApplyDelta(45, 1002, gen)
	lvl.ApplyDelta(70, 1003, gen)
	require.Equal(t, []float64{10, 15, 20, 25}, quantities(lvl.Orders))

	// -30 removes the first two and shaves 5 off the third.
	lvl.ApplyDelta(40, 1004, gen)
	require.NoError(t, lvl.Validate())
	assert.Equal(t, []float64{15, 25}, quantities(lvl.Orders))
}

func TestApplyDeltaIgnoresNoise(t *testing.T) {
	lvl := NewPriceLevel(100, domain.SideAsk)
	gen := newIDGen()
	lvl.ApplyDelta(50, 1000, gen)

	// Retransmission of an unchanged level must not mint a zero-size order.
	lvl.ApplyDelta(50+5e-9, 1001, gen)
	require.NoError(t, lvl.Validate())
	assert.Equal(t, 1, lvl.OrderCount())
	assert.Equal(t, 50.0, lvl.Volume)
}

func TestApplyDeltaOverReduction(t *testing.T) {
	lvl := NewPriceLevel(100, domain.SideBid)
	gen := newIDGen()
	lvl.ApplyDelta(50, 1000, gen)

	// Reducing past what the queue holds may not leave a negative quantity.
	lvl.reduce(80)
	require.NoError(t, lvl.Validate())
	assert.Empty(t, lvl.Orders)
	assert.Equal(t, 0.0, lvl.Volume)
}

func TestLevelClear(t *testing.T) {
	lvl := NewPriceLevel(100, domain.SideBid)
	gen := newIDGen()
	lvl.ApplyDelta(50, 1000, gen)
	lvl.ApplyDelta(80, 1001, gen)

	lvl.Clear()
	require.NoError(t, lvl.Validate())
	assert.True(t, lvl.Empty())
	assert.Zero(t, lvl.OrderCount())
}

func TestLevelValidateDetectsCorruption(t *testing.T) {
	lvl := NewPriceLevel(100, domain.SideBid)
	gen := newIDGen()
	lvl.ApplyDelta(50, 1000, gen)

	lvl.Volume = 70 // corrupt the aggregate behind the queue's back
	assert.Error(t, lvl.Validate())

	lvl.Volume = 50
	lvl.Orders[0].Quantity = -1
	assert.Error(t, lvl.Validate())
}
