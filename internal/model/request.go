package model

import "main/internal/model/enum"

// OrderRequest is the strategy-facing order intent before an id exists.
type OrderRequest struct {
	Symbol    string
	Venue     string
	Type      enum.OrderType
	Direction enum.Direction
	Offset    enum.Offset
	Price     float64
	Quantity  float64
	Reference string
}

// CancelRequest asks the venue to cancel a previously submitted order.
type CancelRequest struct {
	Symbol  string
	Venue   string
	OrderID string
}

// QueryRequest asks the venue to re-publish the current state of an
// order that has gone quiet.
type QueryRequest struct {
	Symbol  string
	Venue   string
	OrderID string
}
