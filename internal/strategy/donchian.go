package strategy

import (
	"main/internal/model"
)

// Donchian is a channel breakout: it rests stop orders on the channel
// boundaries and reverses the exits once a side is held. All entries
// and exits go through client-simulated stops.
type Donchian struct {
	Window int
	Size   float64

	highs []float64
	lows  []float64
	upper float64
	lower float64
}

// NewDonchian returns a donchian breakout strategy with defaults.
func NewDonchian() Strategy {
	return &Donchian{Window: 20, Size: 1}
}

func (s *Donchian) Params() map[string]any {
	return map[string]any{
		"window": s.Window,
		"size":   s.Size,
	}
}

func (s *Donchian) ApplyParams(settings map[string]any) error {
	if err := intSetting(settings, "window", &s.Window); err != nil {
		return err
	}
	return floatSetting(settings, "size", &s.Size)
}

func (s *Donchian) Vars() map[string]any {
	return map[string]any{
		"upper": s.upper,
		"lower": s.lower,
	}
}

func (s *Donchian) ApplyVars(settings map[string]any) {
	_ = floatSetting(settings, "upper", &s.upper)
	_ = floatSetting(settings, "lower", &s.lower)
}

func (s *Donchian) OnInit(ctx Context) error {
	return ctx.LoadBars(s.Window, func(bar model.Bar) {
		s.push(bar)
	})
}

func (s *Donchian) OnStart(ctx Context) error {
	ctx.Log("donchian started: window=%d", s.Window)
	return nil
}

func (s *Donchian) OnStop(ctx Context) error {
	ctx.CancelAll()
	return nil
}

func (s *Donchian) OnTick(Context, model.Tick) error { return nil }

func (s *Donchian) OnBar(ctx Context, bar model.Bar) error {
	s.push(bar)
	if len(s.highs) < s.Window {
		return nil
	}
	s.upper = maxOf(s.highs)
	s.lower = minOf(s.lows)

	ctx.CancelAll()

	pos := ctx.Pos()
	switch {
	case pos == 0:
		if _, err := Buy(ctx, s.upper, s.Size, true); err != nil {
			return err
		}
		if _, err := Short(ctx, s.lower, s.Size, true); err != nil {
			return err
		}
	case pos > 0:
		if _, err := Sell(ctx, s.lower, pos, true); err != nil {
			return err
		}
	default:
		if _, err := Cover(ctx, s.upper, -pos, true); err != nil {
			return err
		}
	}
	return nil
}

func (s *Donchian) OnOrder(Context, model.Order) error { return nil }

func (s *Donchian) OnTrade(Context, model.Trade) error { return nil }

func (s *Donchian) OnStopOrder(Context, model.StopOrder) error { return nil }

func (s *Donchian) push(bar model.Bar) {
	s.highs = append(s.highs, bar.High)
	s.lows = append(s.lows, bar.Low)
	if len(s.highs) > s.Window {
		s.highs = s.highs[1:]
		s.lows = s.lows[1:]
	}
}

func maxOf(values []float64) float64 {
	out := values[0]
	for _, v := range values[1:] {
		if v > out {
			out = v
		}
	}
	return out
}

func minOf(values []float64) float64 {
	out := values[0]
	for _, v := range values[1:] {
		if v < out {
			out = v
		}
	}
	return out
}
