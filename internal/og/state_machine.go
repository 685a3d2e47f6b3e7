package og

import (
	"errors"
	"sort"
	"strconv"
	"time"

	"main/internal/model"
	"main/internal/model/enum"
)

var (
	ErrUnknownOrder   = errors.New("order not found")
	ErrTerminalOrder  = errors.New("order already terminal")
	ErrStaleUpdate    = errors.New("stale order update")
	ErrInvalidRequest = errors.New("invalid order request")
)

// OrderUpdate is a venue snapshot/delta for one order: current status
// plus the cumulative filled quantity.
type OrderUpdate struct {
	OrderID string
	Status  enum.Status
	Filled  float64
	Price   float64 // fill price for the increment; 0 falls back to the order's limit price
	Reason  string
	Time    time.Time
}

// StateMachine owns the canonical order lifecycle for one venue. It
// never transitions an order spontaneously: every change is driven by
// Submit, MarkRejected or a reconciled venue update.
type StateMachine struct {
	venue     string
	nextOrder uint64
	nextTrade uint64
	orders    map[string]*model.Order
}

// NewStateMachine creates an empty state machine for a venue.
func NewStateMachine(venue string) *StateMachine {
	return &StateMachine{
		venue:  venue,
		orders: make(map[string]*model.Order),
	}
}

// Submit assigns a unique order id and registers the order as
// submitting. The id exists before any confirmation so the caller can
// track the order even if transport fails afterwards; a failed send is
// downgraded with MarkRejected, never dropped.
func (m *StateMachine) Submit(req model.OrderRequest, now time.Time) (model.Order, error) {
	if req.Symbol == "" || req.Quantity <= 0 || !req.Direction.IsAvailable() || !req.Type.IsAvailable() {
		return model.Order{}, ErrInvalidRequest
	}
	m.nextOrder++
	o := &model.Order{
		Symbol:      req.Symbol,
		Venue:       m.venue,
		OrderID:     strconv.FormatUint(m.nextOrder, 10),
		Type:        req.Type,
		Direction:   req.Direction,
		Offset:      req.Offset,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Status:      enum.StatusSubmitting,
		Reference:   req.Reference,
		CreatedTime: now,
		UpdatedTime: now,
	}
	m.orders[o.OrderID] = o
	return *o, nil
}

// MarkRejected downgrades an order whose transport send failed.
func (m *StateMachine) MarkRejected(orderID, reason string, now time.Time) (model.Order, error) {
	o, _, err := m.Reconcile(OrderUpdate{
		OrderID: orderID,
		Status:  enum.StatusRejected,
		Reason:  reason,
		Time:    now,
	})
	return o, err
}

// Reconcile applies a venue update and returns the updated order plus,
// when the cumulative filled quantity increased, exactly one new trade.
// Updates that would decrease the filled quantity are stale duplicates
// and are discarded; updates that change nothing are idempotent.
func (m *StateMachine) Reconcile(u OrderUpdate) (model.Order, *model.Trade, error) {
	o, ok := m.orders[u.OrderID]
	if !ok {
		return model.Order{}, nil, ErrUnknownOrder
	}
	if o.Status.IsTerminal() {
		return *o, nil, ErrTerminalOrder
	}

	increment := u.Filled - o.Filled
	if increment < 0 {
		return *o, nil, ErrStaleUpdate
	}

	var trade *model.Trade
	if increment > 0 {
		if u.Filled > o.Quantity {
			return *o, nil, ErrStaleUpdate
		}
		price := u.Price
		if price == 0 {
			price = o.Price
		}
		o.AvgPrice = (o.AvgPrice*o.Filled + price*increment) / u.Filled
		o.Filled = u.Filled

		m.nextTrade++
		trade = &model.Trade{
			Symbol:    o.Symbol,
			Venue:     o.Venue,
			TradeID:   strconv.FormatUint(m.nextTrade, 10),
			OrderID:   o.OrderID,
			Direction: o.Direction,
			Offset:    o.Offset,
			Price:     price,
			Quantity:  increment,
			Time:      u.Time,
		}
	}

	if u.Status.IsTerminal() || statusRank(u.Status) > statusRank(o.Status) {
		o.Status = u.Status
	}
	if o.Filled >= o.Quantity {
		o.Status = enum.StatusAllTraded
	}
	if o.Status == enum.StatusRejected {
		o.RejectReason = u.Reason
	}
	if !u.Time.IsZero() {
		o.UpdatedTime = u.Time
	}

	return *o, trade, nil
}

// CancelRequest builds the cancel request for an active order.
// Cancelling a terminal order is a no-op, signalled by ok=false. The
// order is not considered cancelled until a matching confirmation is
// reconciled.
func (m *StateMachine) CancelRequest(orderID string) (model.CancelRequest, bool) {
	o, ok := m.orders[orderID]
	if !ok || !o.IsActive() {
		return model.CancelRequest{}, false
	}
	return o.CancelRequest(), true
}

// Order returns a copy of the current order state.
func (m *StateMachine) Order(orderID string) (model.Order, bool) {
	o, ok := m.orders[orderID]
	if !ok {
		return model.Order{}, false
	}
	return *o, true
}

// ActiveOrders returns copies of all non-terminal orders in submission
// order.
func (m *StateMachine) ActiveOrders() []model.Order {
	out := make([]model.Order, 0, len(m.orders))
	for _, o := range m.orders {
		if o.IsActive() {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return orderSeq(out[i].OrderID) < orderSeq(out[j].OrderID)
	})
	return out
}

func orderSeq(id string) uint64 {
	n, _ := strconv.ParseUint(id, 10, 64)
	return n
}

// statusRank orders the non-terminal lifecycle so reconciles can never
// move an order backwards on out-of-order delivery.
func statusRank(s enum.Status) int {
	switch s {
	case enum.StatusSubmitting:
		return 0
	case enum.StatusNotTraded:
		return 1
	case enum.StatusPartTraded:
		return 2
	case enum.StatusAllTraded, enum.StatusCancelled, enum.StatusRejected:
		return 3
	default:
		return -1
	}
}
