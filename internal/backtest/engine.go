package backtest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/history"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/og"
	"main/internal/position"
	"main/internal/strategy"
)

var (
	ErrBadWindow = errors.New("backtest start must precede end")
	ErrNoData    = errors.New("backtest has no bars")
)

// Config describes one backtest run.
type Config struct {
	Symbol   string
	Venue    string
	Interval enum.Interval
	Start    time.Time
	End      time.Time

	// Size is the contract multiplier, Rate the commission per unit of
	// turnover, Slippage the price paid per unit crossed.
	Size     float64
	Rate     float64
	Slippage float64

	Capital    float64
	RiskFree   float64
	AnnualDays int
}

func (c Config) validate() error {
	if !c.Start.Before(c.End) {
		return ErrBadWindow
	}
	if c.Symbol == "" {
		return errors.New("backtest symbol is empty")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Size <= 0 {
		c.Size = 1
	}
	if c.Capital <= 0 {
		c.Capital = 1_000_000
	}
	if c.AnnualDays <= 0 {
		c.AnnualDays = 240
	}
	if c.Venue == "" {
		c.Venue = "BACKTEST"
	}
	if !c.Interval.IsAvailable() {
		c.Interval = enum.IntervalDaily
	}
	return c
}

type stopEntry struct {
	so model.StopOrder
}

// Engine replays a time-ordered bar sequence through one strategy,
// matching resting orders deterministically. It shares no state across
// runs, so parameter sweeps replay many engines in parallel.
type Engine struct {
	cfg   Config
	strat strategy.Strategy

	machine *og.StateMachine
	clock   time.Time

	bars      map[string][]model.Bar // per symbol, time ascending
	symbols   []string
	lastBar   map[string]model.Bar
	warmupLen int

	resting  map[string]model.Order
	restSeq  []string
	nextStop uint64
	stops    map[string]*stopEntry
	stopSeq  []string

	pos    position.State
	trades []model.Trade
	days   []*DailyResult
	dayIdx map[string]int
	logbuf []string
}

// New creates an engine for one run.
func New(cfg Config, strat strategy.Strategy) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:     cfg,
		strat:   strat,
		machine: og.NewStateMachine(cfg.Venue),
		bars:    make(map[string][]model.Bar),
		lastBar: make(map[string]model.Bar),
		resting: make(map[string]model.Order),
		stops:   make(map[string]*stopEntry),
		dayIdx:  make(map[string]int),
	}, nil
}

// SetBars feeds replay data directly. Bars outside the configured
// window are kept for warm-up history but never matched.
func (e *Engine) SetBars(bars []model.Bar) {
	for _, b := range bars {
		if _, ok := e.bars[b.Symbol]; !ok {
			e.symbols = append(e.symbols, b.Symbol)
		}
		e.bars[b.Symbol] = append(e.bars[b.Symbol], b)
	}
	for _, symbol := range e.symbols {
		series := e.bars[symbol]
		sort.SliceStable(series, func(i, j int) bool { return series[i].Time.Before(series[j].Time) })
	}
	sort.Strings(e.symbols)
}

// LoadHistory pulls replay data from a history source.
func (e *Engine) LoadHistory(ctx context.Context, source history.Source, symbols ...string) error {
	if len(symbols) == 0 {
		symbols = []string{e.cfg.Symbol}
	}
	for _, symbol := range symbols {
		bars, err := source.Bars(ctx, symbol, e.cfg.Interval, e.cfg.Start, e.cfg.End)
		if err != nil {
			return errors.Wrapf(err, "load bars %s", symbol)
		}
		e.SetBars(bars)
	}
	return nil
}

// Run replays the whole window: init, start, every bar, stop.
func (e *Engine) Run() error {
	if len(e.bars[e.cfg.Symbol]) == 0 {
		return ErrNoData
	}

	if err := e.strat.OnInit(e); err != nil {
		return errors.Wrap(err, "strategy init")
	}
	if err := e.strat.OnStart(e); err != nil {
		return errors.Wrap(err, "strategy start")
	}

	for _, ts := range e.timeline() {
		e.clock = ts
		bars := e.crossSection(ts)
		for _, b := range bars {
			e.crossStopOrders(b)
			e.crossLimitOrders(b)
		}
		for _, b := range bars {
			if err := e.strat.OnBar(e, b); err != nil {
				return errors.Wrapf(err, "strategy bar %s", ts.Format(time.RFC3339))
			}
		}
		for _, b := range bars {
			if b.Symbol == e.cfg.Symbol {
				e.updateDaily(b)
			}
		}
	}

	if err := e.strat.OnStop(e); err != nil {
		return errors.Wrap(err, "strategy stop")
	}
	e.finalizeDaily()
	return nil
}

// timeline merges every symbol's bar timestamps inside the window.
func (e *Engine) timeline() []time.Time {
	seen := make(map[int64]struct{})
	var out []time.Time
	warmupEnd := e.warmupEnd()
	for _, symbol := range e.symbols {
		for _, b := range e.bars[symbol] {
			if b.Time.Before(warmupEnd) || b.Time.Before(e.cfg.Start) || b.Time.After(e.cfg.End) {
				continue
			}
			key := b.Time.UnixNano()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, b.Time)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (e *Engine) warmupEnd() time.Time {
	series := e.bars[e.cfg.Symbol]
	if e.warmupLen <= 0 || e.warmupLen >= len(series) {
		return e.cfg.Start
	}
	return series[e.warmupLen-1].Time.Add(time.Nanosecond)
}

// crossSection returns one bar per symbol for the timestamp,
// synthesizing a flat bar at the previous close for symbols with a gap.
// The primary symbol comes first so its accounting sees the bar before
// the strategy reacts.
func (e *Engine) crossSection(ts time.Time) []model.Bar {
	var out []model.Bar
	for _, symbol := range e.symbols {
		bar, ok := e.barAt(symbol, ts)
		if !ok {
			prev, seen := e.lastBar[symbol]
			if !seen {
				continue
			}
			bar = model.FlatBar(prev, ts)
		}
		e.lastBar[symbol] = bar
		if symbol == e.cfg.Symbol {
			out = append([]model.Bar{bar}, out...)
		} else {
			out = append(out, bar)
		}
	}
	return out
}

func (e *Engine) barAt(symbol string, ts time.Time) (model.Bar, bool) {
	series := e.bars[symbol]
	idx := sort.Search(len(series), func(i int) bool { return !series[i].Time.Before(ts) })
	if idx < len(series) && series[idx].Time.Equal(ts) {
		return series[idx], true
	}
	return model.Bar{}, false
}

// crossLimitOrders acknowledges and fills resting orders against one
// bar. A long fills when its price reaches the bar's low, a short when
// it reaches the high; the fill price is clamped toward the open in the
// favorable direction but never beyond the traded range. Fills are
// whole, the bar engine does not model partials.
func (e *Engine) crossLimitOrders(bar model.Bar) {
	// Callbacks fired mid-cross may submit new orders; snapshot the
	// sequence so the compaction never races its own appends.
	snapshot := len(e.restSeq)
	seq := make([]string, snapshot)
	copy(seq, e.restSeq)
	remaining := seq[:0]
	for _, id := range seq {
		o, ok := e.resting[id]
		if !ok {
			continue
		}
		if o.Symbol != bar.Symbol {
			remaining = append(remaining, id)
			continue
		}

		if o.Status == enum.StatusSubmitting {
			updated, _, err := e.machine.Reconcile(og.OrderUpdate{
				OrderID: o.OrderID,
				Status:  enum.StatusNotTraded,
				Filled:  o.Filled,
				Time:    bar.Time,
			})
			if err == nil {
				o = updated
				e.resting[id] = o
				e.emitOrder(updated)
			}
		}

		longCross := o.Direction == enum.DirectionLong && o.Price >= bar.Low
		shortCross := o.Direction == enum.DirectionShort && o.Price <= bar.High
		if !longCross && !shortCross {
			remaining = append(remaining, id)
			continue
		}

		price := o.Price
		if longCross && bar.Open < price {
			price = bar.Open
		}
		if shortCross && bar.Open > price {
			price = bar.Open
		}
		e.fill(o, price, bar.Time)
	}
	e.restSeq = append(remaining, e.restSeq[snapshot:]...)
}

// crossStopOrders fires waiting stops whose trigger is inside the bar's
// range: a long stop when the high reaches it, a short stop when the
// low does. The fired stop becomes an immediate fill at the trigger
// clamped toward the open in the adverse direction.
func (e *Engine) crossStopOrders(bar model.Bar) {
	snapshot := len(e.stopSeq)
	seq := make([]string, snapshot)
	copy(seq, e.stopSeq)
	remaining := seq[:0]
	for _, id := range seq {
		entry, ok := e.stops[id]
		if !ok {
			continue
		}
		so := entry.so
		if so.Symbol != bar.Symbol {
			remaining = append(remaining, id)
			continue
		}

		longCross := so.Direction == enum.DirectionLong && bar.High >= so.Trigger
		shortCross := so.Direction == enum.DirectionShort && bar.Low <= so.Trigger
		if !longCross && !shortCross {
			remaining = append(remaining, id)
			continue
		}

		delete(e.stops, id)
		so.Status = enum.StopTriggered

		price := so.Trigger
		if longCross && bar.Open > price {
			price = bar.Open
		}
		if shortCross && bar.Open < price {
			price = bar.Open
		}

		order, err := e.machine.Submit(model.OrderRequest{
			Symbol:    so.Symbol,
			Venue:     e.cfg.Venue,
			Type:      enum.OrderTypeLimit,
			Direction: so.Direction,
			Offset:    so.Offset,
			Price:     price,
			Quantity:  so.Quantity,
			Reference: so.StopID,
		}, bar.Time)
		if err != nil {
			logs.Errorf("stop %s submit: %+v", so.StopID, err)
			continue
		}
		so.OrderIDs = []string{order.OrderID}
		if err := e.strat.OnStopOrder(e, so); err != nil {
			logs.Errorf("stop callback %s: %+v", so.StopID, err)
		}
		e.fill(order, price, bar.Time)
	}
	e.stopSeq = append(remaining, e.stopSeq[snapshot:]...)
}

func (e *Engine) fill(o model.Order, price float64, ts time.Time) {
	updated, trade, err := e.machine.Reconcile(og.OrderUpdate{
		OrderID: o.OrderID,
		Status:  enum.StatusAllTraded,
		Filled:  o.Quantity,
		Price:   price,
		Time:    ts,
	})
	if err != nil {
		logs.Errorf("fill %s: %+v", o.OrderID, err)
		return
	}
	delete(e.resting, o.OrderID)
	e.emitOrder(updated)
	if trade == nil {
		return
	}
	e.pos = position.Apply(e.pos, *trade)
	e.trades = append(e.trades, *trade)
	if err := e.strat.OnTrade(e, *trade); err != nil {
		logs.Errorf("trade callback %s: %+v", trade.TradeID, err)
	}
}

func (e *Engine) emitOrder(o model.Order) {
	if err := e.strat.OnOrder(e, o); err != nil {
		logs.Errorf("order callback %s: %+v", o.OrderID, err)
	}
}

// Trades returns the fills of the finished run, in emission order.
func (e *Engine) Trades() []model.Trade {
	out := make([]model.Trade, len(e.trades))
	copy(out, e.trades)
	return out
}

// Days returns the finalized daily results.
func (e *Engine) Days() []DailyResult {
	out := make([]DailyResult, 0, len(e.days))
	for _, d := range e.days {
		out = append(out, *d)
	}
	return out
}

// strategy.Context implementation. All replay work happens on one
// goroutine, so no locking is needed.

func (e *Engine) SendOrder(intent strategy.Intent) ([]string, error) {
	if intent.Stop {
		e.nextStop++
		so := model.StopOrder{
			Symbol:      e.cfg.Symbol,
			StopID:      "STOP." + strconv.FormatUint(e.nextStop, 10),
			Direction:   intent.Direction,
			Offset:      intent.Offset,
			Trigger:     intent.Price,
			Quantity:    intent.Quantity,
			Status:      enum.StopWaiting,
			CreatedTime: e.clock,
		}
		if so.Trigger <= 0 || so.Quantity <= 0 {
			return nil, og.ErrInvalidRequest
		}
		e.stops[so.StopID] = &stopEntry{so: so}
		e.stopSeq = append(e.stopSeq, so.StopID)
		return []string{so.StopID}, nil
	}

	order, err := e.machine.Submit(model.OrderRequest{
		Symbol:    e.cfg.Symbol,
		Venue:     e.cfg.Venue,
		Type:      enum.OrderTypeLimit,
		Direction: intent.Direction,
		Offset:    intent.Offset,
		Price:     intent.Price,
		Quantity:  intent.Quantity,
	}, e.clock)
	if err != nil {
		return nil, err
	}
	e.resting[order.OrderID] = order
	e.restSeq = append(e.restSeq, order.OrderID)
	return []string{order.OrderID}, nil
}

func (e *Engine) CancelOrder(orderID string) {
	if entry, ok := e.stops[orderID]; ok {
		delete(e.stops, orderID)
		entry.so.Status = enum.StopCancelled
		return
	}
	o, ok := e.resting[orderID]
	if !ok {
		return
	}
	delete(e.resting, orderID)
	updated, _, err := e.machine.Reconcile(og.OrderUpdate{
		OrderID: o.OrderID,
		Status:  enum.StatusCancelled,
		Filled:  o.Filled,
		Time:    e.clock,
	})
	if err != nil {
		logs.Errorf("cancel %s: %+v", orderID, err)
		return
	}
	e.emitOrder(updated)
}

func (e *Engine) CancelAll() {
	for _, id := range append(append([]string{}, e.restSeq...), e.stopSeq...) {
		e.CancelOrder(id)
	}
}

func (e *Engine) Pos() float64 { return e.pos.Quantity }

func (e *Engine) Symbol() string { return e.cfg.Symbol }

// LoadBars replays warm-up history through the callback. The consumed
// bars are excluded from matching; the replay starts right after them.
func (e *Engine) LoadBars(count int, callback func(model.Bar)) error {
	series := e.bars[e.cfg.Symbol]
	if count > len(series) {
		count = len(series)
	}
	for _, b := range series[:count] {
		e.lastBar[b.Symbol] = b
		callback(b)
	}
	if count > e.warmupLen {
		e.warmupLen = count
	}
	return nil
}

func (e *Engine) Log(format string, args ...any) {
	e.logbuf = append(e.logbuf, fmt.Sprintf(format, args...))
}

// Logs returns the strategy's log lines for the run.
func (e *Engine) Logs() []string { return e.logbuf }
