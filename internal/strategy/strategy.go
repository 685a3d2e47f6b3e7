package strategy

import (
	"main/internal/model"
	"main/internal/model/enum"
)

// Intent is a strategy's abstract order request. The owning engine
// decides whether it becomes a real order, a set of converted orders,
// or a client-simulated stop.
type Intent struct {
	Direction enum.Direction
	Offset    enum.Offset
	Price     float64
	Quantity  float64

	// Stop requests a conditional order triggered at Price.
	Stop bool
	// Lock/Net select the offset conversion mode on venues that
	// distinguish them; both false means pass-through.
	Lock bool
	Net  bool
}

// Context is the engine-side surface a strategy calls back into. Both
// the live runtime and the backtest matching engine implement it, so a
// strategy runs unchanged against either.
type Context interface {
	// SendOrder submits an intent and returns the locally assigned
	// order ids (stop intents return the stop id). Fire-and-forget:
	// confirmations arrive later through OnOrder/OnTrade.
	SendOrder(intent Intent) ([]string, error)

	// CancelOrder requests cancellation of one order; a no-op when the
	// order is already terminal.
	CancelOrder(orderID string)

	// CancelAll requests cancellation of every outstanding order and
	// waiting stop owned by the calling strategy.
	CancelAll()

	// Pos is the strategy's current signed net position.
	Pos() float64

	// Symbol is the instrument the strategy trades.
	Symbol() string

	// LoadBars replays up to count most recent historical bars through
	// the callback. Intended for OnInit warm-up.
	LoadBars(count int, callback func(model.Bar)) error

	// Log records a strategy-scoped log line.
	Log(format string, args ...any)
}

// Strategy is one trading algorithm. Implementations must be
// deterministic given the same event sequence, and report failures by
// returning an error: the dispatcher treats any error (or panic) as a
// fault that disables the instance.
type Strategy interface {
	// Params returns the tunable parameters by name.
	Params() map[string]any
	// ApplyParams overrides parameters from a name->value map. Unknown
	// names are ignored; bad values are reported.
	ApplyParams(settings map[string]any) error
	// Vars returns the persisted runtime variables by name.
	Vars() map[string]any
	// ApplyVars restores previously persisted variables.
	ApplyVars(settings map[string]any)

	OnInit(ctx Context) error
	OnStart(ctx Context) error
	OnStop(ctx Context) error
	OnTick(ctx Context, tick model.Tick) error
	OnBar(ctx Context, bar model.Bar) error
	OnOrder(ctx Context, order model.Order) error
	OnTrade(ctx Context, trade model.Trade) error
	OnStopOrder(ctx Context, so model.StopOrder) error
}

// Buy opens or adds a long position.
func Buy(ctx Context, price, quantity float64, stop bool) ([]string, error) {
	return ctx.SendOrder(Intent{Direction: enum.DirectionLong, Offset: enum.OffsetOpen, Price: price, Quantity: quantity, Stop: stop})
}

// Sell closes a long position.
func Sell(ctx Context, price, quantity float64, stop bool) ([]string, error) {
	return ctx.SendOrder(Intent{Direction: enum.DirectionShort, Offset: enum.OffsetClose, Price: price, Quantity: quantity, Stop: stop})
}

// Short opens or adds a short position.
func Short(ctx Context, price, quantity float64, stop bool) ([]string, error) {
	return ctx.SendOrder(Intent{Direction: enum.DirectionShort, Offset: enum.OffsetOpen, Price: price, Quantity: quantity, Stop: stop})
}

// Cover closes a short position.
func Cover(ctx Context, price, quantity float64, stop bool) ([]string, error) {
	return ctx.SendOrder(Intent{Direction: enum.DirectionLong, Offset: enum.OffsetClose, Price: price, Quantity: quantity, Stop: stop})
}
