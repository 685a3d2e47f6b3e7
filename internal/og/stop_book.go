package og

import (
	"strconv"
	"time"

	"main/internal/model"
	"main/internal/model/enum"
)

// Triggered pairs a stop order that just fired with the synthesized
// execution price for the real order.
type Triggered struct {
	Stop  model.StopOrder
	Price float64
}

// StopBook holds client-simulated conditional orders keyed by trigger
// condition. Stops exist in the book only while waiting; a triggered
// stop leaves the book in the same step, so it can fire at most once
// even if a callback re-enters the check.
type StopBook struct {
	nextID  uint64
	waiting map[string]*model.StopOrder
	ordered []string
}

// NewStopBook creates an empty stop book.
func NewStopBook() *StopBook {
	return &StopBook{waiting: make(map[string]*model.StopOrder)}
}

// Place registers a waiting stop order and returns a copy of it.
func (b *StopBook) Place(symbol, strategy string, direction enum.Direction, offset enum.Offset, trigger, quantity float64, now time.Time) (model.StopOrder, error) {
	if symbol == "" || trigger <= 0 || quantity <= 0 || !direction.IsAvailable() {
		return model.StopOrder{}, ErrInvalidRequest
	}
	b.nextID++
	so := &model.StopOrder{
		Symbol:      symbol,
		StopID:      "STOP." + strconv.FormatUint(b.nextID, 10),
		Strategy:    strategy,
		Direction:   direction,
		Offset:      offset,
		Trigger:     trigger,
		Quantity:    quantity,
		Status:      enum.StopWaiting,
		CreatedTime: now,
	}
	b.waiting[so.StopID] = so
	b.ordered = append(b.ordered, so.StopID)
	return *so, nil
}

// Cancel removes a waiting stop order. Cancelling a stop that is not
// waiting is a no-op.
func (b *StopBook) Cancel(stopID string) (model.StopOrder, bool) {
	so, ok := b.waiting[stopID]
	if !ok {
		return model.StopOrder{}, false
	}
	b.remove(stopID)
	so.Status = enum.StopCancelled
	return *so, true
}

// Trigger pops every waiting stop crossed by the tick, in placement
// order. Each returned stop is already removed from the book and marked
// triggered; the caller submits the real orders and records their ids.
func (b *StopBook) Trigger(tick model.Tick) []Triggered {
	var fired []Triggered
	remaining := b.ordered[:0]
	for _, id := range b.ordered {
		so, ok := b.waiting[id]
		if !ok {
			continue
		}
		if so.Symbol != tick.Symbol || !crossed(so, tick.Last) {
			remaining = append(remaining, id)
			continue
		}
		delete(b.waiting, id)
		so.Status = enum.StopTriggered
		fired = append(fired, Triggered{
			Stop:  *so,
			Price: executionPrice(so.Direction, tick),
		})
	}
	b.ordered = remaining
	return fired
}

// Waiting returns copies of the waiting stops for one strategy, or all
// of them when strategy is empty, in placement order.
func (b *StopBook) Waiting(strategy string) []model.StopOrder {
	var out []model.StopOrder
	for _, id := range b.ordered {
		so, ok := b.waiting[id]
		if !ok {
			continue
		}
		if strategy != "" && so.Strategy != strategy {
			continue
		}
		out = append(out, *so)
	}
	return out
}

func (b *StopBook) remove(stopID string) {
	delete(b.waiting, stopID)
	for i, id := range b.ordered {
		if id == stopID {
			b.ordered = append(b.ordered[:i], b.ordered[i+1:]...)
			return
		}
	}
}

func crossed(so *model.StopOrder, last float64) bool {
	if so.Direction == enum.DirectionLong {
		return last >= so.Trigger
	}
	return last <= so.Trigger
}

// executionPrice synthesizes the limit price for the real order: the
// band edge nearest the trigger direction when the venue publishes one,
// else the best opposite-side quote, else the last price.
func executionPrice(direction enum.Direction, tick model.Tick) float64 {
	if direction == enum.DirectionLong {
		switch {
		case tick.LimitUp > 0:
			return tick.LimitUp
		case tick.AskPrice > 0:
			return tick.AskPrice
		default:
			return tick.Last
		}
	}
	switch {
	case tick.LimitDown > 0:
		return tick.LimitDown
	case tick.BidPrice > 0:
		return tick.BidPrice
	default:
		return tick.Last
	}
}
