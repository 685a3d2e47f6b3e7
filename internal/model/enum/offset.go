package enum

// Offset marks whether an order opens a new position or closes an
// existing one. CloseToday/CloseYesterday matter only on venues that
// split intraday and carried positions.
type Offset uint8

const (
	OffsetNone Offset = iota
	OffsetOpen
	OffsetClose
	OffsetCloseToday
	OffsetCloseYesterday
	_offset_end
)

func (o Offset) IsAvailable() bool {
	return o < _offset_end
}

func (o Offset) IsClose() bool {
	switch o {
	case OffsetClose, OffsetCloseToday, OffsetCloseYesterday:
		return true
	default:
		return false
	}
}

func (o Offset) String() string {
	switch o {
	case OffsetNone:
		return "none"
	case OffsetOpen:
		return "open"
	case OffsetClose:
		return "close"
	case OffsetCloseToday:
		return "closetoday"
	case OffsetCloseYesterday:
		return "closeyesterday"
	default:
		return "unknown"
	}
}
