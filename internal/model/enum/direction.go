package enum

type Direction uint8

const (
	_direction_beg Direction = iota
	DirectionLong
	DirectionShort
	_direction_end
)

func (d Direction) IsAvailable() bool {
	return d > _direction_beg && d < _direction_end
}

func (d Direction) Opposite() Direction {
	switch d {
	case DirectionLong:
		return DirectionShort
	case DirectionShort:
		return DirectionLong
	default:
		return d
	}
}

// Sign maps long to +1 and short to -1.
func (d Direction) Sign() float64 {
	switch d {
	case DirectionLong:
		return 1
	case DirectionShort:
		return -1
	default:
		return 0
	}
}

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "long"
	case DirectionShort:
		return "short"
	default:
		return "unknown"
	}
}
