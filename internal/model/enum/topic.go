package enum

type Topic uint8

const (
	_topic_beg Topic = iota
	TopicTick
	TopicBar
	TopicOrder
	TopicTrade
	TopicStopOrder
	TopicStrategy
	TopicLog
	_topic_end
)

func (t Topic) IsAvailable() bool {
	return t > _topic_beg && t < _topic_end
}

func (t Topic) String() string {
	switch t {
	case TopicTick:
		return "tick"
	case TopicBar:
		return "bar"
	case TopicOrder:
		return "order"
	case TopicTrade:
		return "trade"
	case TopicStopOrder:
		return "stoporder"
	case TopicStrategy:
		return "strategy"
	case TopicLog:
		return "log"
	default:
		return "unknown"
	}
}

// TopicCount is the number of valid topics, for fixed-size counters.
const TopicCount = int(_topic_end)
