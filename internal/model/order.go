package model

import (
	"time"

	"main/internal/model/enum"
)

// Order is an exchange-facing instruction. OrderID is assigned locally
// before any confirmation; the venue-qualified ID is globally unique and
// stable once assigned.
type Order struct {
	Symbol string
	Venue  string

	OrderID   string
	Type      enum.OrderType
	Direction enum.Direction
	Offset    enum.Offset
	Price     float64
	Quantity  float64
	Filled    float64
	AvgPrice  float64
	Status    enum.Status

	Reference    string
	RejectReason string

	CreatedTime time.Time
	UpdatedTime time.Time
}

// ID returns the venue-qualified order identity.
func (o *Order) ID() string {
	return o.Venue + "." + o.OrderID
}

// IsActive reports whether the order can still trade or be cancelled.
func (o *Order) IsActive() bool {
	return o.Status.IsActive()
}

// Remaining is the unfilled quantity.
func (o *Order) Remaining() float64 {
	return o.Quantity - o.Filled
}

// CancelRequest builds the cancel request for this order.
func (o *Order) CancelRequest() CancelRequest {
	return CancelRequest{
		Symbol:  o.Symbol,
		Venue:   o.Venue,
		OrderID: o.OrderID,
	}
}

// Trade is an immutable fill record derived from an order update.
type Trade struct {
	Symbol string
	Venue  string

	TradeID   string
	OrderID   string
	Direction enum.Direction
	Offset    enum.Offset
	Price     float64
	Quantity  float64
	Time      time.Time
}

// ID returns the venue-qualified trade identity.
func (t *Trade) ID() string {
	return t.Venue + "." + t.TradeID
}

// StopOrder is a conditional order held client-side; the venue never
// sees it until it triggers into a real order.
type StopOrder struct {
	Symbol    string
	StopID    string
	Strategy  string
	Direction enum.Direction
	Offset    enum.Offset
	Trigger   float64
	Quantity  float64
	Status    enum.StopStatus

	// OrderIDs holds the real order ids created by the trigger.
	OrderIDs []string

	CreatedTime time.Time
}
