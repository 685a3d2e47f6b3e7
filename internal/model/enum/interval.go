package enum

import "time"

type Interval uint8

const (
	_interval_beg Interval = iota
	IntervalMinute
	IntervalHour
	IntervalDaily
	_interval_end
)

func (i Interval) IsAvailable() bool {
	return i > _interval_beg && i < _interval_end
}

func (i Interval) Duration() time.Duration {
	switch i {
	case IntervalMinute:
		return time.Minute
	case IntervalHour:
		return time.Hour
	case IntervalDaily:
		return 24 * time.Hour
	default:
		return 0
	}
}

func (i Interval) String() string {
	switch i {
	case IntervalMinute:
		return "1m"
	case IntervalHour:
		return "1h"
	case IntervalDaily:
		return "1d"
	default:
		return "unknown"
	}
}

// ParseInterval maps the wire names used by bar storage back to the enum.
func ParseInterval(s string) (Interval, bool) {
	switch s {
	case "1m":
		return IntervalMinute, true
	case "1h":
		return IntervalHour, true
	case "1d":
		return IntervalDaily, true
	default:
		return 0, false
	}
}
