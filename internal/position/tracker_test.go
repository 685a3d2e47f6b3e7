package position

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"main/internal/model"
	"main/internal/model/enum"
)

func fill(d enum.Direction, price, qty float64) model.Trade {
	return model.Trade{Direction: d, Price: price, Quantity: qty}
}

func TestApplyWeightedAverage(t *testing.T) {
	s := State{}
	s = Apply(s, fill(enum.DirectionLong, 100, 2))
	s = Apply(s, fill(enum.DirectionLong, 110, 3))

	assert.Equal(t, 5.0, s.Quantity)
	assert.InDelta(t, 106.0, s.AvgPrice, 1e-9)
}

func TestApplyReduceKeepsAverage(t *testing.T) {
	s := State{Quantity: 5, AvgPrice: 106}
	s = Apply(s, fill(enum.DirectionShort, 120, 2))

	assert.Equal(t, 3.0, s.Quantity)
	assert.InDelta(t, 106.0, s.AvgPrice, 1e-9)
}

func TestApplyFlatResetsAverage(t *testing.T) {
	s := State{Quantity: 5, AvgPrice: 106}
	s = Apply(s, fill(enum.DirectionShort, 120, 5))

	assert.Equal(t, 0.0, s.Quantity)
	assert.Equal(t, 0.0, s.AvgPrice)
}

func TestApplyFlipRestartsAtFillPrice(t *testing.T) {
	s := State{Quantity: 2, AvgPrice: 100}
	s = Apply(s, fill(enum.DirectionShort, 95, 6))

	assert.Equal(t, -4.0, s.Quantity)
	assert.Equal(t, 95.0, s.AvgPrice)
}

func TestApplyShortSide(t *testing.T) {
	s := State{}
	s = Apply(s, fill(enum.DirectionShort, 200, 4))
	assert.Equal(t, -4.0, s.Quantity)
	assert.InDelta(t, 200.0, s.AvgPrice, 1e-9)

	s = Apply(s, fill(enum.DirectionShort, 210, 4))
	assert.Equal(t, -8.0, s.Quantity)
	assert.InDelta(t, 205.0, s.AvgPrice, 1e-9)
}

// The grid adjustment is a preserved accounting convention: reducing
// without flipping moves the basis by gridStep*qty/|remaining| toward
// the profitable side instead of realizing the grid's P&L. These cases
// pin the convention, they do not derive it.
func TestApplyGridReduceAdjustsBasis(t *testing.T) {
	s := State{Quantity: 4, AvgPrice: 100}
	s = ApplyGrid(s, fill(enum.DirectionShort, 102, 2), 2)

	assert.Equal(t, 2.0, s.Quantity)
	assert.InDelta(t, 98.0, s.AvgPrice, 1e-9)

	short := State{Quantity: -4, AvgPrice: 100}
	short = ApplyGrid(short, fill(enum.DirectionLong, 98, 2), 2)

	assert.Equal(t, -2.0, short.Quantity)
	assert.InDelta(t, 102.0, short.AvgPrice, 1e-9)
}

func TestApplyGridOtherTransitionsMatchApply(t *testing.T) {
	s := State{Quantity: 4, AvgPrice: 100}

	add := ApplyGrid(s, fill(enum.DirectionLong, 96, 2), 2)
	assert.Equal(t, Apply(s, fill(enum.DirectionLong, 96, 2)), add)

	flat := ApplyGrid(s, fill(enum.DirectionShort, 104, 4), 2)
	assert.Equal(t, State{}, flat)

	flip := ApplyGrid(s, fill(enum.DirectionShort, 104, 6), 2)
	assert.Equal(t, Apply(s, fill(enum.DirectionShort, 104, 6)), flip)
}

func TestApplyIsPure(t *testing.T) {
	s := State{Quantity: 4, AvgPrice: 100}
	_ = Apply(s, fill(enum.DirectionShort, 102, 2))

	assert.Equal(t, State{Quantity: 4, AvgPrice: 100}, s)
}
