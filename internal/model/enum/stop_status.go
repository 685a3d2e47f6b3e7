package enum

// StopStatus tracks a client-simulated stop order. A stop exists in the
// waiting book only while StopWaiting; it becomes a real order exactly
// once when it moves to StopTriggered.
type StopStatus uint8

const (
	_stop_status_beg StopStatus = iota
	StopWaiting
	StopTriggered
	StopCancelled
	_stop_status_end
)

func (s StopStatus) IsAvailable() bool {
	return s > _stop_status_beg && s < _stop_status_end
}

func (s StopStatus) String() string {
	switch s {
	case StopWaiting:
		return "waiting"
	case StopTriggered:
		return "triggered"
	case StopCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
