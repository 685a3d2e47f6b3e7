package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/strategy"
)

// strategyContext is the engine-side Context handed to strategy
// callbacks. It is only ever used on the dispatch path, with the engine
// lock already held.
type strategyContext struct {
	e    *Engine
	inst *Instance
}

func (c *strategyContext) SendOrder(intent strategy.Intent) ([]string, error) {
	return c.e.routeLocked(c.inst, intent)
}

func (c *strategyContext) CancelOrder(orderID string) {
	c.e.cancelLocked(c.inst, orderID)
}

func (c *strategyContext) CancelAll() {
	c.e.cancelAllLocked(c.inst)
}

func (c *strategyContext) Pos() float64 {
	return c.inst.Position.Quantity
}

func (c *strategyContext) Symbol() string {
	return c.inst.Symbol
}

func (c *strategyContext) LoadBars(count int, callback func(model.Bar)) error {
	return c.e.loadBars(c.inst, count, callback)
}

func (c *strategyContext) Log(format string, args ...any) {
	line := c.inst.Name + ": " + fmt.Sprintf(format, args...)
	logs.Info(line)
	c.e.metrics.IncTopic(enum.TopicLog)
	c.e.publishLocked(enum.TopicLog, line)
}

// initContext is the Context handed to OnInit. Initialization runs with
// the engine lock released, so every engine-touching call takes the
// lock itself; the history load, the part worth keeping off the lock,
// does not need it at all.
type initContext struct {
	e    *Engine
	inst *Instance
}

func (c *initContext) SendOrder(intent strategy.Intent) ([]string, error) {
	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	return c.e.routeLocked(c.inst, intent)
}

func (c *initContext) CancelOrder(orderID string) {
	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	c.e.cancelLocked(c.inst, orderID)
}

func (c *initContext) CancelAll() {
	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	c.e.cancelAllLocked(c.inst)
}

func (c *initContext) Pos() float64 {
	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	return c.inst.Position.Quantity
}

func (c *initContext) Symbol() string {
	return c.inst.Symbol
}

func (c *initContext) LoadBars(count int, callback func(model.Bar)) error {
	return c.e.loadBars(c.inst, count, callback)
}

func (c *initContext) Log(format string, args ...any) {
	line := c.inst.Name + ": " + fmt.Sprintf(format, args...)
	logs.Info(line)
	c.e.metrics.IncTopic(enum.TopicLog)
	c.e.mu.Lock()
	c.e.publishLocked(enum.TopicLog, line)
	c.e.mu.Unlock()
}

// dispatchLocked invokes one strategy callback inside the fault
// boundary. An error return or a panic disables this instance
// (trading=false, initialized=false) and is logged with the strategy
// name; other instances are untouched and outstanding orders are
// deliberately left alone. Returns false when the callback faulted.
func (e *Engine) dispatchLocked(inst *Instance, hook string, fn func(strategy.Context) error) (ok bool) {
	ctx := &strategyContext{e: e, inst: inst}
	started := e.now()
	traceID := e.metrics.NextTrace()

	defer func() {
		e.metrics.ObserveDispatch(time.Since(started))
		if r := recover(); r != nil {
			e.faultLocked(inst, hook, traceID, fmt.Sprintf("panic: %v", r))
			ok = false
		}
	}()

	if err := fn(ctx); err != nil {
		e.faultLocked(inst, hook, traceID, err.Error())
		return false
	}
	return true
}

func (e *Engine) faultLocked(inst *Instance, hook string, traceID uint64, reason string) {
	inst.Trading = false
	inst.Initialized = false
	e.metrics.IncFault()
	logs.Errorf("strategy fault: strategy=%s hook=%s trace=%d reason=%s", inst.Name, hook, traceID, reason)
	e.publishStatusLocked(inst, reason)
}

// loadBars reads warmup history for an instance. It touches only
// immutable instance fields and the history source, so it is safe both
// under the engine lock (dispatch path) and off it (init path).
func (e *Engine) loadBars(inst *Instance, count int, callback func(model.Bar)) error {
	if e.history == nil || count <= 0 {
		return nil
	}
	end := e.now()
	// Double the window to survive gaps, then keep the newest bars.
	start := end.Add(-time.Duration(2*count) * inst.interval.Duration())
	bars, err := e.history.Bars(context.Background(), inst.Symbol, inst.interval, start, end)
	if err != nil {
		return err
	}
	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	for _, b := range bars {
		callback(b)
	}
	return nil
}
