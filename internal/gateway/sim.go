package gateway

import (
	"context"
	"sync"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/og"
)

// Sim is a paper venue. It acknowledges every order, crosses resting
// limit orders against incoming ticks, and re-publishes pending orders
// on reconnect. Updates are queued and delivered by Drain so that
// callbacks never re-enter the caller while it holds its own locks; the
// live runner pumps Drain from a goroutine, tests call it directly.
type Sim struct {
	venue string

	mu        sync.Mutex
	connected bool
	fn        UpdateFunc
	pending   map[string]model.Order
	sequence  []string
	queue     []og.OrderUpdate
}

// NewSim creates a paper venue gateway.
func NewSim(venue string) *Sim {
	return &Sim{
		venue:   venue,
		pending: make(map[string]model.Order),
	}
}

func (g *Sim) Venue() string { return g.venue }

// Connect marks the gateway up and re-publishes the current state of
// every pending order, so a reconciling caller converges after an
// outage.
func (g *Sim) Connect(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = true
	for _, id := range g.sequence {
		o, ok := g.pending[id]
		if !ok {
			continue
		}
		g.queue = append(g.queue, og.OrderUpdate{
			OrderID: o.OrderID,
			Status:  o.Status,
			Filled:  o.Filled,
			Time:    o.UpdatedTime,
		})
	}
	return nil
}

func (g *Sim) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = false
	return nil
}

func (g *Sim) OnUpdate(fn UpdateFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fn = fn
}

// SendOrder accepts a submitted order and queues its acknowledgement.
// Market orders fill immediately at their price.
func (g *Sim) SendOrder(o model.Order) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.connected {
		return ErrDisconnected
	}

	if o.Type == enum.OrderTypeMarket {
		g.queue = append(g.queue, og.OrderUpdate{
			OrderID: o.OrderID,
			Status:  enum.StatusAllTraded,
			Filled:  o.Quantity,
			Price:   o.Price,
			Time:    o.CreatedTime,
		})
		return nil
	}

	o.Status = enum.StatusNotTraded
	g.pending[o.OrderID] = o
	g.sequence = append(g.sequence, o.OrderID)
	g.queue = append(g.queue, og.OrderUpdate{
		OrderID: o.OrderID,
		Status:  enum.StatusNotTraded,
		Time:    o.CreatedTime,
	})
	return nil
}

func (g *Sim) CancelOrder(req model.CancelRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.connected {
		return ErrDisconnected
	}
	o, ok := g.pending[req.OrderID]
	if !ok {
		return nil
	}
	delete(g.pending, req.OrderID)
	g.queue = append(g.queue, og.OrderUpdate{
		OrderID: o.OrderID,
		Status:  enum.StatusCancelled,
		Filled:  o.Filled,
		Time:    o.UpdatedTime,
	})
	return nil
}

func (g *Sim) QueryOrder(req model.QueryRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.connected {
		return ErrDisconnected
	}
	o, ok := g.pending[req.OrderID]
	if !ok {
		return nil
	}
	g.queue = append(g.queue, og.OrderUpdate{
		OrderID: o.OrderID,
		Status:  o.Status,
		Filled:  o.Filled,
		Time:    o.UpdatedTime,
	})
	return nil
}

// OnTick crosses resting limit orders against the tick: a long fills
// when the last price trades at or under its limit, a short when at or
// over. Fills are full, at the order's limit price.
func (g *Sim) OnTick(tick model.Tick) {
	g.mu.Lock()
	defer g.mu.Unlock()
	remaining := g.sequence[:0]
	for _, id := range g.sequence {
		o, ok := g.pending[id]
		if !ok {
			continue
		}
		if o.Symbol != tick.Symbol || !crossesLimit(o, tick.Last) {
			remaining = append(remaining, id)
			continue
		}
		delete(g.pending, id)
		g.queue = append(g.queue, og.OrderUpdate{
			OrderID: o.OrderID,
			Status:  enum.StatusAllTraded,
			Filled:  o.Quantity,
			Price:   o.Price,
			Time:    tick.Time,
		})
	}
	g.sequence = remaining
}

// Drain delivers all queued updates through the callback, in order, and
// reports how many were delivered.
func (g *Sim) Drain() int {
	g.mu.Lock()
	updates := g.queue
	g.queue = nil
	fn := g.fn
	g.mu.Unlock()

	if fn == nil {
		return 0
	}
	for _, u := range updates {
		fn(g.venue, u)
	}
	return len(updates)
}

// Pending reports how many orders are resting on the paper book.
func (g *Sim) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

func crossesLimit(o model.Order, last float64) bool {
	if o.Direction == enum.DirectionLong {
		return last <= o.Price
	}
	return last >= o.Price
}
