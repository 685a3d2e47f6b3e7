package position

import "main/internal/model"

// State is the per (strategy, symbol) position: signed quantity and
// weighted average entry price. Invariant: AvgPrice is 0 exactly when
// Quantity is 0.
type State struct {
	Quantity float64
	AvgPrice float64
}

// Apply folds one fill into the state and returns the new state. Pure:
// the receiver value is never mutated. Callers must reject fills with
// quantity <= 0 before reaching this point.
func Apply(s State, t model.Trade) State {
	return apply(s, t.Direction.Sign()*t.Quantity, t.Price, 0)
}

// ApplyGrid behaves like Apply except while the fill reduces the
// position without flipping its sign: the configured grid step is then
// folded into the average price instead of being treated as realized
// P&L. This is a documented accounting convention of grid strategies,
// not a textbook weighted average.
func ApplyGrid(s State, t model.Trade, gridStep float64) State {
	return apply(s, t.Direction.Sign()*t.Quantity, t.Price, gridStep)
}

func apply(s State, signedQty, price, gridStep float64) State {
	oldQty := s.Quantity
	newQty := oldQty + signedQty

	switch {
	case newQty == 0:
		s.AvgPrice = 0

	case oldQty == 0 || sameSign(oldQty, signedQty):
		// Opening from flat or adding in the position's direction.
		s.AvgPrice = (abs(oldQty)*s.AvgPrice + abs(signedQty)*price) / abs(newQty)

	case !sameSign(oldQty, newQty):
		// Flipped through zero: basis restarts at the flipping fill.
		s.AvgPrice = price

	default:
		// Reduced without flipping: basis unchanged, unless the grid
		// convention embeds the per-level step into it.
		if gridStep != 0 {
			adj := gridStep * abs(signedQty) / abs(newQty)
			if oldQty > 0 {
				s.AvgPrice -= adj
			} else {
				s.AvgPrice += adj
			}
		}
	}

	s.Quantity = newQty
	return s
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
