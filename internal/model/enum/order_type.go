package enum

type OrderType uint8

const (
	_order_type_beg OrderType = iota
	OrderTypeLimit
	OrderTypeMarket
	OrderTypeStop
	OrderTypeFAK
	OrderTypeFOK
	OrderTypePostOnly
	_order_type_end
)

func (t OrderType) IsAvailable() bool {
	return t > _order_type_beg && t < _order_type_end
}

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "limit"
	case OrderTypeMarket:
		return "market"
	case OrderTypeStop:
		return "stop"
	case OrderTypeFAK:
		return "fak"
	case OrderTypeFOK:
		return "fok"
	case OrderTypePostOnly:
		return "postonly"
	default:
		return "unknown"
	}
}
