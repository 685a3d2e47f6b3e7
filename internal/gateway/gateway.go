package gateway

import (
	"context"

	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/og"
)

var ErrDisconnected = errors.New("gateway disconnected")

// UpdateFunc receives order updates pushed back by the venue.
type UpdateFunc func(venue string, u og.OrderUpdate)

// Gateway is the transport to one venue. Orders arrive here already
// carrying their locally assigned id; the gateway only moves them and
// streams updates back through the registered callback. It never owns
// lifecycle decisions.
type Gateway interface {
	Venue() string

	Connect(ctx context.Context) error
	Close() error

	// SendOrder transmits a submitted order. A transport error means the
	// caller should downgrade the order to rejected.
	SendOrder(o model.Order) error

	// CancelOrder requests a cancel. Best effort: the order is cancelled
	// only once a matching update arrives.
	CancelOrder(req model.CancelRequest) error

	// QueryOrder asks the venue to re-publish the order's current state.
	QueryOrder(req model.QueryRequest) error

	// OnUpdate registers the update callback. Must be called before
	// Connect.
	OnUpdate(fn UpdateFunc)
}
