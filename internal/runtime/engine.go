package runtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/gateway"
	"main/internal/history"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/og"
	"main/internal/position"
	"main/internal/store"
	"main/internal/strategy"
)

var (
	ErrUnknownInstance = errors.New("unknown strategy instance")
	ErrUnknownClass    = errors.New("unknown strategy class")
	ErrUnknownContract = errors.New("unknown contract")
	ErrNotInitialized  = errors.New("strategy not initialized")
	ErrStillTrading    = errors.New("strategy still trading")
	ErrNoGateway       = errors.New("no gateway for venue")
)

const stopIDPrefix = "STOP."

// Status is the strategy lifecycle event published on the strategy
// topic.
type Status struct {
	Name        string
	Class       string
	Symbol      string
	Initialized bool
	Trading     bool
	Fault       string
}

// Instance is one running strategy: its flags, its position, and the
// orders it still owns. The engine owns all of this; the strategy sees
// it only through its Context.
type Instance struct {
	Name   string
	Class  string
	Symbol string
	Venue  string

	Initialized bool
	Trading     bool
	Position    position.State

	strat        strategy.Strategy
	interval     enum.Interval
	orders       map[string]struct{}
	initializing bool
}

// Options wires the engine's collaborators.
type Options struct {
	Bus       *bus.Bus
	Metrics   *obs.Metrics
	Contracts *model.ContractRegistry
	Registry  *strategy.Registry
	Store     store.Store
	History   history.Source
	Converter Converter
	Gateways  []gateway.Gateway

	// StaleAfter is how long an active order may go without any update
	// before the engine re-queries it. Zero disables polling.
	StaleAfter time.Duration
	// WarmupInterval is the bar interval used for OnInit history loads.
	WarmupInterval enum.Interval
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Engine is the live strategy runtime. All dispatch into strategies
// happens under one lock, so a strategy never observes concurrent
// re-entrancy; initialization runs off that lock entirely, so a slow
// history load cannot stall market data for strategies already
// running.
type Engine struct {
	bus       *bus.Bus
	metrics   *obs.Metrics
	contracts *model.ContractRegistry
	registry  *strategy.Registry
	store     store.Store
	history   history.Source
	converter Converter

	staleAfter time.Duration
	warmup     enum.Interval
	now        func() time.Time

	mu          sync.Mutex
	gateways    map[string]gateway.Gateway
	machines    map[string]*og.StateMachine
	stops       *og.StopBook
	instances   map[string]*Instance
	subscribers map[string][]string
	orderOwner  map[string]string
	lastUpdate  map[string]time.Time

	initQueue chan string
}

// New builds an engine around the given collaborators.
func New(opt Options) (*Engine, error) {
	if opt.Bus == nil || opt.Contracts == nil || opt.Registry == nil || opt.Store == nil {
		return nil, errors.New("engine: missing collaborator")
	}
	if opt.Converter == nil {
		opt.Converter = Passthrough{}
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if !opt.WarmupInterval.IsAvailable() {
		opt.WarmupInterval = enum.IntervalMinute
	}

	e := &Engine{
		bus:         opt.Bus,
		metrics:     opt.Metrics,
		contracts:   opt.Contracts,
		registry:    opt.Registry,
		store:       opt.Store,
		history:     opt.History,
		converter:   opt.Converter,
		staleAfter:  opt.StaleAfter,
		warmup:      opt.WarmupInterval,
		now:         opt.Now,
		gateways:    make(map[string]gateway.Gateway),
		machines:    make(map[string]*og.StateMachine),
		stops:       og.NewStopBook(),
		instances:   make(map[string]*Instance),
		subscribers: make(map[string][]string),
		orderOwner:  make(map[string]string),
		lastUpdate:  make(map[string]time.Time),
		initQueue:   make(chan string, 64),
	}
	for _, g := range opt.Gateways {
		venue := g.Venue()
		e.gateways[venue] = g
		e.machines[venue] = og.NewStateMachine(venue)
		g.OnUpdate(e.HandleOrderUpdate)
	}
	return e, nil
}

// Run pumps the init worker and the stale-order poller until the
// context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	go e.initWorker(ctx)
	if e.staleAfter <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(e.staleAfter)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.PollStale()
			}
		}
	}()
}

// AddInstance creates a strategy instance. Configuration errors reject
// synchronously and no instance is created.
func (e *Engine) AddInstance(name, class, symbol string, params map[string]any) error {
	if name == "" {
		return errors.Wrap(ErrUnknownInstance, "empty instance name")
	}
	spec, ok := e.contracts.Contract(symbol)
	if !ok {
		return errors.Wrapf(ErrUnknownContract, "symbol %s", symbol)
	}
	strat, err := e.registry.Create(class)
	if err != nil {
		return errors.Wrap(ErrUnknownClass, class)
	}
	if err := strat.ApplyParams(params); err != nil {
		return errors.Wrapf(err, "params for %s", name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.instances[name]; ok {
		return errors.Errorf("instance already exists: %s", name)
	}
	if _, ok := e.gateways[spec.Venue]; !ok && len(e.gateways) > 0 {
		return errors.Wrap(ErrNoGateway, spec.Venue)
	}
	inst := &Instance{
		Name:     name,
		Class:    class,
		Symbol:   symbol,
		Venue:    spec.Venue,
		strat:    strat,
		interval: e.warmup,
		orders:   make(map[string]struct{}),
	}
	e.instances[name] = inst
	e.subscribers[symbol] = append(e.subscribers[symbol], name)
	e.publishStatusLocked(inst, "")
	return nil
}

// RemoveInstance deletes a stopped instance.
func (e *Engine) RemoveInstance(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[name]
	if !ok {
		return errors.Wrap(ErrUnknownInstance, name)
	}
	if inst.Trading {
		return errors.Wrap(ErrStillTrading, name)
	}
	delete(e.instances, name)
	subs := e.subscribers[inst.Symbol][:0]
	for _, sub := range e.subscribers[inst.Symbol] {
		if sub != name {
			subs = append(subs, sub)
		}
	}
	e.subscribers[inst.Symbol] = subs
	return nil
}

// Init queues the instance for initialization on the worker.
func (e *Engine) Init(name string) error {
	e.mu.Lock()
	_, ok := e.instances[name]
	e.mu.Unlock()
	if !ok {
		return errors.Wrap(ErrUnknownInstance, name)
	}
	select {
	case e.initQueue <- name:
		return nil
	default:
		return errors.Errorf("init queue full, retry %s", name)
	}
}

// InitSync initializes the instance on the calling goroutine. Tests and
// the backtest runner use this; live code goes through Init.
func (e *Engine) InitSync(name string) error {
	return e.initInstance(name)
}

func (e *Engine) initWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case name := <-e.initQueue:
			if err := e.initInstance(name); err != nil {
				logs.Errorf("init %s: %+v", name, err)
			}
		}
	}
}

// initInstance restores persisted state and runs OnInit with the engine
// lock released, so a slow history load never stalls tick dispatch for
// strategies already running. The initializing flag serializes init per
// instance; only flag and status mutation happens under the lock.
func (e *Engine) initInstance(name string) error {
	e.mu.Lock()
	inst, ok := e.instances[name]
	if !ok {
		e.mu.Unlock()
		return errors.Wrap(ErrUnknownInstance, name)
	}
	if inst.Initialized || inst.initializing {
		e.mu.Unlock()
		return nil
	}
	inst.initializing = true
	e.mu.Unlock()

	err := e.runInit(inst)

	e.mu.Lock()
	inst.initializing = false
	if err == nil {
		inst.Initialized = true
		e.publishStatusLocked(inst, "")
	}
	e.mu.Unlock()
	if err == nil {
		logs.Infof("strategy initialized: %s", name)
	}
	return err
}

// runInit is the unlocked part of initialization. The instance is not
// dispatchable yet (Initialized is false and the initializing flag
// blocks a second init), so nothing else touches it; the restore still
// takes the lock briefly because Instance() copies Position under it.
func (e *Engine) runInit(inst *Instance) (err error) {
	blob, err := e.store.LoadJSON(settingName(inst))
	if err != nil {
		return errors.Wrapf(err, "restore %s", inst.Name)
	}
	e.mu.Lock()
	e.restoreLocked(inst, blob)
	e.mu.Unlock()

	started := e.now()
	traceID := e.metrics.NextTrace()
	defer func() {
		e.metrics.ObserveDispatch(time.Since(started))
		if r := recover(); r != nil {
			e.mu.Lock()
			e.faultLocked(inst, "oninit", traceID, fmt.Sprintf("panic: %v", r))
			e.mu.Unlock()
			err = errors.Errorf("init callback faulted: %s", inst.Name)
		}
	}()
	if cerr := inst.strat.OnInit(&initContext{e: e, inst: inst}); cerr != nil {
		e.mu.Lock()
		e.faultLocked(inst, "oninit", traceID, cerr.Error())
		e.mu.Unlock()
		return errors.Errorf("init callback faulted: %s", inst.Name)
	}
	return nil
}

// restoreLocked applies a persisted blob: position first, then the
// strategy's own variables. The initialized/trading control flags are
// runtime-local and never restored.
func (e *Engine) restoreLocked(inst *Instance, blob map[string]any) {
	if len(blob) == 0 {
		return
	}
	vars := make(map[string]any, len(blob))
	for k, v := range blob {
		switch k {
		case "initialized", "trading":
		case "pos":
			if q, ok := v.(float64); ok {
				inst.Position.Quantity = q
			}
		case "pos_avg_price":
			if p, ok := v.(float64); ok {
				inst.Position.AvgPrice = p
			}
		default:
			vars[k] = v
		}
	}
	inst.strat.ApplyVars(vars)
}

// Start begins trading for an initialized instance.
func (e *Engine) Start(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[name]
	if !ok {
		return errors.Wrap(ErrUnknownInstance, name)
	}
	if !inst.Initialized {
		return errors.Wrap(ErrNotInitialized, name)
	}
	if inst.Trading {
		return nil
	}
	if !e.dispatchLocked(inst, "onstart", func(ctx strategy.Context) error {
		return inst.strat.OnStart(ctx)
	}) {
		return errors.Errorf("start callback faulted: %s", name)
	}
	inst.Trading = true
	e.publishStatusLocked(inst, "")
	return nil
}

// Stop halts trading, cancels everything the instance owns, and
// persists its variables.
func (e *Engine) Stop(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[name]
	if !ok {
		return errors.Wrap(ErrUnknownInstance, name)
	}
	if !inst.Initialized {
		return errors.Wrap(ErrNotInitialized, name)
	}
	e.dispatchLocked(inst, "onstop", func(ctx strategy.Context) error {
		return inst.strat.OnStop(ctx)
	})
	e.cancelAllLocked(inst)
	inst.Trading = false
	e.publishStatusLocked(inst, "")
	return e.persistLocked(inst)
}

func (e *Engine) persistLocked(inst *Instance) error {
	blob := inst.strat.Vars()
	out := make(map[string]any, len(blob)+2)
	for k, v := range blob {
		out[k] = v
	}
	out["pos"] = inst.Position.Quantity
	out["pos_avg_price"] = inst.Position.AvgPrice
	if err := e.store.SaveJSON(settingName(inst), out); err != nil {
		return errors.Wrapf(err, "persist %s", inst.Name)
	}
	return nil
}

// Instance returns a copy of the instance's public state.
func (e *Engine) Instance(name string) (Instance, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[name]
	if !ok {
		return Instance{}, false
	}
	return Instance{
		Name:        inst.Name,
		Class:       inst.Class,
		Symbol:      inst.Symbol,
		Venue:       inst.Venue,
		Initialized: inst.Initialized,
		Trading:     inst.Trading,
		Position:    inst.Position,
	}, true
}

// ProcessTick triggers waiting stops, then routes the tick to every
// initialized subscriber.
func (e *Engine) ProcessTick(tick model.Tick) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics.IncTopic(enum.TopicTick)
	e.publishLocked(enum.TopicTick, tick)

	for _, fired := range e.stops.Trigger(tick) {
		e.fireStopLocked(fired)
	}

	for _, name := range e.subscribers[tick.Symbol] {
		inst, ok := e.instances[name]
		if !ok || !inst.Initialized {
			continue
		}
		e.dispatchLocked(inst, "ontick", func(ctx strategy.Context) error {
			return inst.strat.OnTick(ctx, tick)
		})
	}
}

// ProcessBar routes the bar to every initialized subscriber.
func (e *Engine) ProcessBar(bar model.Bar) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics.IncTopic(enum.TopicBar)
	e.publishLocked(enum.TopicBar, bar)

	for _, name := range e.subscribers[bar.Symbol] {
		inst, ok := e.instances[name]
		if !ok || !inst.Initialized {
			continue
		}
		e.dispatchLocked(inst, "onbar", func(ctx strategy.Context) error {
			return inst.strat.OnBar(ctx, bar)
		})
	}
}

// fireStopLocked turns a triggered stop into a real limit order owned
// by the same strategy. A failed submission leaves the stop triggered;
// the fault surfaces through the rejected order's callback, never by
// re-arming the stop.
func (e *Engine) fireStopLocked(fired og.Triggered) {
	e.metrics.IncStopTrigger()
	so := fired.Stop

	inst, ok := e.instances[so.Strategy]
	if ok {
		ids, err := e.routeLocked(inst, strategy.Intent{
			Direction: so.Direction,
			Offset:    so.Offset,
			Price:     fired.Price,
			Quantity:  so.Quantity,
		})
		if err != nil {
			logs.Errorf("stop %s submit: %+v", so.StopID, err)
		}
		so.OrderIDs = ids
	}

	e.metrics.IncTopic(enum.TopicStopOrder)
	e.publishLocked(enum.TopicStopOrder, so)
	if ok {
		e.dispatchLocked(inst, "onstoporder", func(ctx strategy.Context) error {
			return inst.strat.OnStopOrder(ctx, so)
		})
	}
}

// HandleOrderUpdate reconciles a venue update through the owning state
// machine and routes the resulting order and trade to their strategy.
func (e *Engine) HandleOrderUpdate(venue string, u og.OrderUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	machine, ok := e.machines[venue]
	if !ok {
		logs.Errorf("order update for unknown venue %s", venue)
		return
	}
	order, trade, err := machine.Reconcile(u)
	if err != nil {
		if !errors.Is(err, og.ErrTerminalOrder) && !errors.Is(err, og.ErrStaleUpdate) {
			logs.Errorf("reconcile %s.%s: %+v", venue, u.OrderID, err)
		}
		return
	}
	e.lastUpdate[order.ID()] = e.now()
	e.converter.OnOrder(order)
	e.metrics.IncTopic(enum.TopicOrder)
	e.publishLocked(enum.TopicOrder, order)

	owner := e.orderOwner[order.ID()]
	inst, owned := e.instances[owner]
	if owned {
		if !order.IsActive() {
			delete(inst.orders, order.OrderID)
		}
		e.dispatchLocked(inst, "onorder", func(ctx strategy.Context) error {
			return inst.strat.OnOrder(ctx, order)
		})
	}

	if trade == nil {
		return
	}
	e.converter.OnTrade(*trade)
	e.metrics.IncTopic(enum.TopicTrade)
	e.publishLocked(enum.TopicTrade, *trade)
	if owned {
		inst.Position = position.Apply(inst.Position, *trade)
		e.dispatchLocked(inst, "ontrade", func(ctx strategy.Context) error {
			return inst.strat.OnTrade(ctx, *trade)
		})
	}
}

// PollStale re-queries every active order that has gone quiet longer
// than the configured interval.
func (e *Engine) PollStale() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.staleAfter <= 0 {
		return
	}
	now := e.now()
	for venue, machine := range e.machines {
		g, ok := e.gateways[venue]
		if !ok {
			continue
		}
		for _, o := range machine.ActiveOrders() {
			last, seen := e.lastUpdate[o.ID()]
			if seen && now.Sub(last) < e.staleAfter {
				continue
			}
			if err := g.QueryOrder(model.QueryRequest{Symbol: o.Symbol, Venue: venue, OrderID: o.OrderID}); err != nil {
				logs.Errorf("query %s: %+v", o.ID(), err)
			}
		}
	}
}

// routeLocked turns a strategy intent into venue orders or a waiting
// stop. Both owner maps are updated before control returns to the
// strategy, so a fill arriving immediately still finds its owner.
func (e *Engine) routeLocked(inst *Instance, intent strategy.Intent) ([]string, error) {
	if !inst.Trading {
		return nil, errors.Errorf("strategy not trading: %s", inst.Name)
	}
	spec, ok := e.contracts.Contract(inst.Symbol)
	if !ok {
		return nil, errors.Wrap(ErrUnknownContract, inst.Symbol)
	}

	if intent.Stop && !spec.NativeStop {
		so, err := e.stops.Place(inst.Symbol, inst.Name, intent.Direction, intent.Offset, intent.Price, intent.Quantity, e.now())
		if err != nil {
			return nil, err
		}
		e.metrics.IncTopic(enum.TopicStopOrder)
		e.publishLocked(enum.TopicStopOrder, so)
		return []string{so.StopID}, nil
	}

	kind := enum.OrderTypeLimit
	if intent.Stop {
		kind = enum.OrderTypeStop
	}
	req := model.OrderRequest{
		Symbol:    inst.Symbol,
		Venue:     inst.Venue,
		Type:      kind,
		Direction: intent.Direction,
		Offset:    intent.Offset,
		Price:     intent.Price,
		Quantity:  intent.Quantity,
		Reference: inst.Name,
	}

	machine, g := e.machines[inst.Venue], e.gateways[inst.Venue]
	if machine == nil || g == nil {
		return nil, errors.Wrap(ErrNoGateway, inst.Venue)
	}

	var ids []string
	for _, converted := range e.converter.Convert(req, intent.Lock, intent.Net) {
		order, err := machine.Submit(converted, e.now())
		if err != nil {
			return ids, errors.Wrapf(err, "submit for %s", inst.Name)
		}
		e.orderOwner[order.ID()] = inst.Name
		inst.orders[order.OrderID] = struct{}{}
		e.lastUpdate[order.ID()] = e.now()
		ids = append(ids, order.OrderID)

		e.metrics.IncOrderSent()
		if err := g.SendOrder(order); err != nil {
			rejected, _ := machine.MarkRejected(order.OrderID, err.Error(), e.now())
			delete(inst.orders, order.OrderID)
			e.metrics.IncTopic(enum.TopicOrder)
			e.publishLocked(enum.TopicOrder, rejected)
			e.dispatchLocked(inst, "onorder", func(ctx strategy.Context) error {
				return inst.strat.OnOrder(ctx, rejected)
			})
		}
	}
	return ids, nil
}

func (e *Engine) cancelLocked(inst *Instance, id string) {
	if strings.HasPrefix(id, stopIDPrefix) {
		if so, ok := e.stops.Cancel(id); ok {
			e.metrics.IncTopic(enum.TopicStopOrder)
			e.publishLocked(enum.TopicStopOrder, so)
		}
		return
	}
	machine, g := e.machines[inst.Venue], e.gateways[inst.Venue]
	if machine == nil || g == nil {
		return
	}
	req, ok := machine.CancelRequest(id)
	if !ok {
		return
	}
	if err := g.CancelOrder(req); err != nil {
		logs.Errorf("cancel %s.%s: %+v", inst.Venue, id, err)
	}
}

func (e *Engine) cancelAllLocked(inst *Instance) {
	for id := range inst.orders {
		e.cancelLocked(inst, id)
	}
	for _, so := range e.stops.Waiting(inst.Name) {
		e.cancelLocked(inst, so.StopID)
	}
}

func (e *Engine) publishStatusLocked(inst *Instance, fault string) {
	e.metrics.IncTopic(enum.TopicStrategy)
	e.publishLocked(enum.TopicStrategy, Status{
		Name:        inst.Name,
		Class:       inst.Class,
		Symbol:      inst.Symbol,
		Initialized: inst.Initialized,
		Trading:     inst.Trading,
		Fault:       fault,
	})
}

func (e *Engine) publishLocked(topic enum.Topic, data any) {
	err := e.bus.TryPublish(bus.Event{
		Topic:  topic,
		TsNano: e.now().UnixNano(),
		Data:   data,
	})
	switch {
	case err == nil:
	case errors.Is(err, bus.ErrQueueFull):
		e.metrics.IncQueueDrop()
	case errors.Is(err, bus.ErrQueueClosed):
		e.metrics.IncQueueClosed()
	}
}

func settingName(inst *Instance) string {
	return inst.Class + "_" + inst.Name
}
