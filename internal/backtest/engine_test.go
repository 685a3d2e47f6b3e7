package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/strategy"
)

// replayStrategy drives the engine from scripted per-bar actions.
type replayStrategy struct {
	bars    int
	barsSeen []model.Bar
	stops   []model.StopOrder
	orders  []model.Order
	trades  []model.Trade

	onBar func(ctx strategy.Context, n int, bar model.Bar) error
}

func (s *replayStrategy) Params() map[string]any          { return nil }
func (s *replayStrategy) ApplyParams(map[string]any) error { return nil }
func (s *replayStrategy) Vars() map[string]any             { return nil }
func (s *replayStrategy) ApplyVars(map[string]any)         {}
func (s *replayStrategy) OnInit(strategy.Context) error    { return nil }
func (s *replayStrategy) OnStart(strategy.Context) error   { return nil }
func (s *replayStrategy) OnStop(strategy.Context) error    { return nil }
func (s *replayStrategy) OnTick(strategy.Context, model.Tick) error { return nil }
func (s *replayStrategy) OnBar(ctx strategy.Context, bar model.Bar) error {
	s.barsSeen = append(s.barsSeen, bar)
	if bar.Symbol != ctx.Symbol() {
		return nil
	}
	s.bars++
	if s.onBar != nil {
		return s.onBar(ctx, s.bars, bar)
	}
	return nil
}
func (s *replayStrategy) OnOrder(_ strategy.Context, o model.Order) error {
	s.orders = append(s.orders, o)
	return nil
}
func (s *replayStrategy) OnTrade(_ strategy.Context, t model.Trade) error {
	s.trades = append(s.trades, t)
	return nil
}
func (s *replayStrategy) OnStopOrder(_ strategy.Context, so model.StopOrder) error {
	s.stops = append(s.stops, so)
	return nil
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func dailyBar(symbol string, d int, o, h, l, c float64) model.Bar {
	return model.Bar{
		Symbol: symbol, Venue: "BACKTEST", Time: day(d),
		Interval: enum.IntervalDaily,
		Open:     o, High: h, Low: l, Close: c, Volume: 100,
	}
}

func config() Config {
	return Config{
		Symbol:   "IF888",
		Interval: enum.IntervalDaily,
		Start:    day(1),
		End:      day(28),
		Size:     1,
	}
}

func TestLimitFillAtOwnPriceInsideRange(t *testing.T) {
	s := &replayStrategy{}
	s.onBar = func(ctx strategy.Context, n int, _ model.Bar) error {
		if n == 1 {
			_, err := strategy.Buy(ctx, 100, 5, false)
			return err
		}
		return nil
	}
	eng, err := New(config(), s)
	require.NoError(t, err)
	eng.SetBars([]model.Bar{
		dailyBar("IF888", 1, 100, 100, 100, 100),
		dailyBar("IF888", 2, 101, 102, 99, 101),
	})
	require.NoError(t, eng.Run())

	trades := eng.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, 100.0, trades[0].Price) // 100 <= open 101, no clamp
	assert.Equal(t, 5.0, trades[0].Quantity)
	assert.Equal(t, day(2), trades[0].Time)
	assert.Equal(t, 5.0, eng.Pos())
}

func TestLimitFillClampsToFavorableOpen(t *testing.T) {
	s := &replayStrategy{}
	s.onBar = func(ctx strategy.Context, n int, _ model.Bar) error {
		if n == 1 {
			strategy.Buy(ctx, 100, 1, false)
			strategy.Short(ctx, 104, 1, false)
		}
		return nil
	}
	eng, err := New(config(), s)
	require.NoError(t, err)
	eng.SetBars([]model.Bar{
		dailyBar("IF888", 1, 100, 100, 100, 100),
		// Gap down: the buy fills at the open, better than its limit.
		// The short's limit 104 <= high 105, open 98 < 104 so it keeps 104...
		dailyBar("IF888", 2, 98, 105, 97, 99),
	})
	require.NoError(t, eng.Run())

	trades := eng.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, 98.0, trades[0].Price)  // long: min(100, open 98)
	assert.Equal(t, 104.0, trades[1].Price) // short: max(104, open 98)
}

func TestOrderNeverFillsOnItsOwnBar(t *testing.T) {
	s := &replayStrategy{}
	s.onBar = func(ctx strategy.Context, n int, _ model.Bar) error {
		if n == 1 {
			_, err := strategy.Buy(ctx, 100, 1, false)
			return err
		}
		return nil
	}
	eng, err := New(config(), s)
	require.NoError(t, err)
	// The placing bar itself would cross, but acknowledgement takes one
	// step; there is no second bar, so the order rests unfilled.
	eng.SetBars([]model.Bar{dailyBar("IF888", 1, 100, 101, 99, 100)})
	require.NoError(t, eng.Run())
	assert.Empty(t, eng.Trades())
}

func TestStopCrossesInsideBarRange(t *testing.T) {
	s := &replayStrategy{}
	s.onBar = func(ctx strategy.Context, n int, _ model.Bar) error {
		if n == 1 {
			_, err := strategy.Buy(ctx, 105, 1, true)
			return err
		}
		return nil
	}
	eng, err := New(config(), s)
	require.NoError(t, err)
	eng.SetBars([]model.Bar{
		dailyBar("IF888", 1, 100, 100, 100, 100),
		dailyBar("IF888", 2, 104, 106, 103, 105),
		dailyBar("IF888", 3, 105, 107, 104, 106),
	})
	require.NoError(t, eng.Run())

	require.Len(t, s.stops, 1)
	assert.Equal(t, enum.StopTriggered, s.stops[0].Status)
	require.Len(t, eng.Trades(), 1)
	assert.Equal(t, 105.0, eng.Trades()[0].Price) // max(trigger 105, open 104)
}

func TestDailyPnLDecomposition(t *testing.T) {
	s := &replayStrategy{}
	s.onBar = func(ctx strategy.Context, n int, _ model.Bar) error {
		switch n {
		case 1:
			strategy.Buy(ctx, 100, 2, false)
		case 3:
			strategy.Sell(ctx, 101, 2, false)
		}
		return nil
	}
	eng, err := New(config(), s)
	require.NoError(t, err)
	eng.SetBars([]model.Bar{
		dailyBar("IF888", 1, 100, 100, 100, 100),
		dailyBar("IF888", 2, 100, 102, 99, 101),
		dailyBar("IF888", 3, 101, 103, 100, 102),
		dailyBar("IF888", 4, 102, 102, 101, 101),
	})
	require.NoError(t, eng.Run())

	days := eng.Days()
	require.Len(t, days, 4)

	// Day 2: bought 2 at 100, close 101. All P&L is trading P&L.
	assert.Equal(t, 0.0, days[1].HoldingPnL)
	assert.Equal(t, 2.0, days[1].TradingPnL)
	assert.Equal(t, 2.0, days[1].EndPos)

	// Day 3: carried 2 through 101 -> 102, no fills.
	assert.Equal(t, 2.0, days[2].HoldingPnL)
	assert.Equal(t, 0.0, days[2].TradingPnL)

	// Day 4: sold 2 at the open gap 102, close 101.
	assert.Equal(t, 2.0, days[3].StartPos)
	assert.Equal(t, 0.0, days[3].EndPos)
	assert.Equal(t, -2.0, days[3].HoldingPnL) // 2 * (101 - 102)
	assert.Equal(t, 2.0, days[3].TradingPnL)  // -2 * (101 - 102)
	assert.Equal(t, 0.0, days[3].NetPnL)

	assert.Equal(t, 0.0, eng.Pos())
}

func TestCommissionAndSlippageReduceNet(t *testing.T) {
	cfg := config()
	cfg.Rate = 0.001
	cfg.Slippage = 0.5
	s := &replayStrategy{}
	s.onBar = func(ctx strategy.Context, n int, _ model.Bar) error {
		if n == 1 {
			strategy.Buy(ctx, 100, 2, false)
		}
		return nil
	}
	eng, err := New(cfg, s)
	require.NoError(t, err)
	eng.SetBars([]model.Bar{
		dailyBar("IF888", 1, 100, 100, 100, 100),
		dailyBar("IF888", 2, 100, 101, 99, 101),
	})
	require.NoError(t, eng.Run())

	days := eng.Days()
	require.Len(t, days, 2)
	d := days[1]
	assert.Equal(t, 200.0, d.Turnover)   // 2 * 1 * 100
	assert.Equal(t, 0.2, d.Commission)   // turnover * 0.001
	assert.Equal(t, 1.0, d.Slippage)     // 2 * 1 * 0.5
	assert.InDelta(t, 2.0-0.2-1.0, d.NetPnL, 1e-9)
}

func TestFlatBarSynthesisKeepsTimeAxis(t *testing.T) {
	s := &replayStrategy{}
	eng, err := New(config(), s)
	require.NoError(t, err)
	eng.SetBars([]model.Bar{
		dailyBar("IF888", 1, 100, 100, 100, 100),
		dailyBar("IF888", 2, 101, 101, 101, 101),
		dailyBar("IF888", 3, 102, 102, 102, 102),
		dailyBar("AU888", 1, 50, 50, 50, 51),
		// AU888 has no bar on day 2.
		dailyBar("AU888", 3, 52, 52, 52, 52),
	})
	require.NoError(t, eng.Run())

	var synthesized *model.Bar
	for i, b := range s.barsSeen {
		if b.Symbol == "AU888" && b.Time.Equal(day(2)) {
			synthesized = &s.barsSeen[i]
		}
	}
	require.NotNil(t, synthesized)
	assert.Equal(t, 51.0, synthesized.Open)
	assert.Equal(t, 51.0, synthesized.High)
	assert.Equal(t, 51.0, synthesized.Low)
	assert.Equal(t, 51.0, synthesized.Close)
	assert.Equal(t, 0.0, synthesized.Volume)
}

func TestWarmupBarsAreNotMatched(t *testing.T) {
	s := &replayStrategy{}
	var warmed []model.Bar
	eng, err := New(config(), s)
	require.NoError(t, err)
	eng.SetBars([]model.Bar{
		dailyBar("IF888", 1, 100, 100, 100, 100),
		dailyBar("IF888", 2, 101, 101, 101, 101),
		dailyBar("IF888", 3, 102, 102, 102, 102),
	})
	require.NoError(t, eng.LoadBars(2, func(b model.Bar) { warmed = append(warmed, b) }))
	require.NoError(t, eng.Run())

	require.Len(t, warmed, 2)
	assert.Equal(t, 1, s.bars) // only day 3 replays after warm-up
}

func TestCancelBeforeCross(t *testing.T) {
	s := &replayStrategy{}
	var ids []string
	s.onBar = func(ctx strategy.Context, n int, _ model.Bar) error {
		switch n {
		case 1:
			var err error
			ids, err = strategy.Buy(ctx, 100, 1, false)
			return err
		case 2:
			// Cancelled before the crossing bar on day 3.
			ctx.CancelOrder(ids[0])
		}
		return nil
	}
	eng, err := New(config(), s)
	require.NoError(t, err)
	eng.SetBars([]model.Bar{
		dailyBar("IF888", 1, 102, 102, 101, 102),
		dailyBar("IF888", 2, 102, 102, 101, 102),
		dailyBar("IF888", 3, 100, 100, 99, 99),
	})
	require.NoError(t, eng.Run())
	assert.Empty(t, eng.Trades())

	last := s.orders[len(s.orders)-1]
	assert.Equal(t, enum.StatusCancelled, last.Status)
}

func TestReplayIsDeterministic(t *testing.T) {
	run := func() ([]model.Trade, []DailyResult) {
		s := &replayStrategy{}
		s.onBar = func(ctx strategy.Context, n int, bar model.Bar) error {
			if n%2 == 1 {
				strategy.Buy(ctx, bar.Close, 1, false)
			} else if ctx.Pos() > 0 {
				strategy.Sell(ctx, bar.Close-1, ctx.Pos(), false)
			}
			return nil
		}
		eng, err := New(config(), s)
		require.NoError(t, err)
		eng.SetBars([]model.Bar{
			dailyBar("IF888", 1, 100, 101, 99, 100),
			dailyBar("IF888", 2, 100, 103, 98, 102),
			dailyBar("IF888", 3, 102, 104, 100, 101),
			dailyBar("IF888", 4, 101, 102, 97, 98),
			dailyBar("IF888", 5, 98, 100, 96, 99),
		})
		require.NoError(t, eng.Run())
		return eng.Trades(), eng.Days()
	}

	trades1, days1 := run()
	trades2, days2 := run()
	assert.Equal(t, trades1, trades2)
	assert.Equal(t, days1, days2)
}

func TestBadWindowRejected(t *testing.T) {
	cfg := config()
	cfg.Start, cfg.End = cfg.End, cfg.Start
	_, err := New(cfg, &replayStrategy{})
	assert.ErrorIs(t, err, ErrBadWindow)

	eng, err := New(config(), &replayStrategy{})
	require.NoError(t, err)
	assert.ErrorIs(t, eng.Run(), ErrNoData)
}
