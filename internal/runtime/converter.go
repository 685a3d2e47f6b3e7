package runtime

import (
	"main/internal/model"
	"main/internal/model/enum"
)

// Converter is the offset conversion contract. The engine hands every
// outgoing request through Convert and submits the returned list as-is;
// lock/net bookkeeping is the converter's business, fed by the update
// callbacks.
type Converter interface {
	Convert(req model.OrderRequest, lock, net bool) []model.OrderRequest
	OnOrder(o model.Order)
	OnTrade(t model.Trade)
}

// Passthrough converts without venue-side position bookkeeping: net
// mode erases the offset, lock mode turns closes into opens so the
// opposite leg stays untouched. Good enough for venues with a single
// signed position, which is all the sim gateway models.
type Passthrough struct{}

func (Passthrough) Convert(req model.OrderRequest, lock, net bool) []model.OrderRequest {
	switch {
	case net:
		req.Offset = enum.OffsetNone
	case lock && req.Offset.IsClose():
		req.Offset = enum.OffsetOpen
	}
	return []model.OrderRequest{req}
}

func (Passthrough) OnOrder(model.Order) {}

func (Passthrough) OnTrade(model.Trade) {}
