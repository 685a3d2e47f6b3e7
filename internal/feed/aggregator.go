package feed

import (
	"main/internal/model"
	"main/internal/model/enum"
)

// BarHandler consumes completed bars.
type BarHandler func(model.Bar)

// BarAggregator folds a tick stream into fixed-interval bars, one open
// bar per symbol. A bar is emitted when the first tick of the next
// window arrives, so the last open bar of a session stays unemitted
// unless Flush is called.
type BarAggregator struct {
	interval enum.Interval
	open     map[string]*model.Bar
	volume   map[string]float64
	turnover map[string]float64
	handler  BarHandler
}

func NewBarAggregator(interval enum.Interval, handler BarHandler) *BarAggregator {
	return &BarAggregator{
		interval: interval,
		open:     make(map[string]*model.Bar),
		volume:   make(map[string]float64),
		turnover: make(map[string]float64),
		handler:  handler,
	}
}

// OnTick updates the open bar for the tick's symbol, emitting the
// previous bar when the tick crosses a window boundary.
func (a *BarAggregator) OnTick(tick model.Tick) {
	if tick.Last <= 0 {
		return
	}

	window := tick.Time.Truncate(a.interval.Duration())
	bar := a.open[tick.Symbol]
	if bar != nil && window.After(bar.Time) {
		a.handler(*bar)
		bar = nil
	}
	if bar == nil {
		a.open[tick.Symbol] = &model.Bar{
			Symbol:   tick.Symbol,
			Venue:    tick.Venue,
			Time:     window,
			Interval: a.interval,
			Open:     tick.Last,
			High:     tick.Last,
			Low:      tick.Last,
			Close:    tick.Last,
		}
		a.volume[tick.Symbol] = tick.Volume
		a.turnover[tick.Symbol] = tick.Turnover
		return
	}

	if tick.Last > bar.High {
		bar.High = tick.Last
	}
	if tick.Last < bar.Low {
		bar.Low = tick.Last
	}
	bar.Close = tick.Last

	// Venue volume fields are cumulative for the day, so the bar keeps
	// the delta since its first tick.
	if tick.Volume > 0 {
		bar.Volume = tick.Volume - a.volume[tick.Symbol]
	}
	if tick.Turnover > 0 {
		bar.Turnover = tick.Turnover - a.turnover[tick.Symbol]
	}
}

// Flush emits every open bar and resets the aggregator.
func (a *BarAggregator) Flush() {
	for _, bar := range a.open {
		a.handler(*bar)
	}
	a.open = make(map[string]*model.Bar)
	a.volume = make(map[string]float64)
	a.turnover = make(map[string]float64)
}
