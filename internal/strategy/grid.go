package strategy

import (
	"main/internal/model"
	"main/internal/position"
)

// Grid keeps a ladder of resting orders around its cost basis: it bids
// one step below the last price to add, and offers one step above the
// basis to reduce. Its cost basis uses the grid accounting convention
// (position.ApplyGrid), which folds the per-level step into the average
// price when reducing.
type Grid struct {
	Step   float64
	Size   float64
	MaxPos float64

	state position.State
	last  float64
}

// NewGrid returns a grid strategy with conservative defaults.
func NewGrid() Strategy {
	return &Grid{Step: 1, Size: 1, MaxPos: 5}
}

func (s *Grid) Params() map[string]any {
	return map[string]any{
		"step":    s.Step,
		"size":    s.Size,
		"max_pos": s.MaxPos,
	}
}

func (s *Grid) ApplyParams(settings map[string]any) error {
	if err := floatSetting(settings, "step", &s.Step); err != nil {
		return err
	}
	if err := floatSetting(settings, "size", &s.Size); err != nil {
		return err
	}
	return floatSetting(settings, "max_pos", &s.MaxPos)
}

// Vars persists the full basis state. Quantity must ride along with the
// average price: a restored basis with a zero quantity would be treated
// as opening from flat on the next fill.
func (s *Grid) Vars() map[string]any {
	return map[string]any{
		"qty":       s.state.Quantity,
		"avg_price": s.state.AvgPrice,
		"last":      s.last,
	}
}

func (s *Grid) ApplyVars(settings map[string]any) {
	_ = floatSetting(settings, "qty", &s.state.Quantity)
	_ = floatSetting(settings, "avg_price", &s.state.AvgPrice)
	_ = floatSetting(settings, "last", &s.last)
}

func (s *Grid) OnInit(ctx Context) error {
	return ctx.LoadBars(10, func(bar model.Bar) {
		s.last = bar.Close
	})
}

func (s *Grid) OnStart(ctx Context) error {
	ctx.Log("grid started: step=%v size=%v", s.Step, s.Size)
	return nil
}

func (s *Grid) OnStop(ctx Context) error {
	ctx.CancelAll()
	return nil
}

func (s *Grid) OnTick(ctx Context, tick model.Tick) error {
	s.last = tick.Last
	return s.requote(ctx)
}

func (s *Grid) OnBar(ctx Context, bar model.Bar) error {
	s.last = bar.Close
	return s.requote(ctx)
}

func (s *Grid) requote(ctx Context) error {
	ctx.CancelAll()

	pos := ctx.Pos()
	if pos < s.MaxPos {
		if _, err := Buy(ctx, s.last-s.Step, s.Size, false); err != nil {
			return err
		}
	}
	if pos > 0 {
		qty := s.Size
		if pos < qty {
			qty = pos
		}
		if _, err := Sell(ctx, s.state.AvgPrice+s.Step, qty, false); err != nil {
			return err
		}
	}
	return nil
}

func (s *Grid) OnOrder(Context, model.Order) error { return nil }

func (s *Grid) OnTrade(ctx Context, trade model.Trade) error {
	s.state = position.ApplyGrid(s.state, trade, s.Step)
	return nil
}

func (s *Grid) OnStopOrder(Context, model.StopOrder) error { return nil }
