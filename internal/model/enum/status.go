package enum

// Status tracks the lifecycle of an exchange order. Terminal statuses
// are absorbing: no reconcile may move an order out of them.
type Status uint8

const (
	_status_beg Status = iota
	StatusSubmitting
	StatusNotTraded
	StatusPartTraded
	StatusAllTraded
	StatusCancelled
	StatusRejected
	_status_end
)

func (s Status) IsAvailable() bool {
	return s > _status_beg && s < _status_end
}

// IsActive reports whether the order can still trade or be cancelled.
func (s Status) IsActive() bool {
	switch s {
	case StatusSubmitting, StatusNotTraded, StatusPartTraded:
		return true
	default:
		return false
	}
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusAllTraded, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusSubmitting:
		return "submitting"
	case StatusNotTraded:
		return "nottraded"
	case StatusPartTraded:
		return "parttraded"
	case StatusAllTraded:
		return "alltraded"
	case StatusCancelled:
		return "cancelled"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
