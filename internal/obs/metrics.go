package obs

import (
	"sync/atomic"
	"time"

	"main/internal/model/enum"
)

// Metrics collects lightweight counters and latency stats for the
// trading runtime.
type Metrics struct {
	topicCounts  [enum.TopicCount]uint64
	faults       uint64
	stopTriggers uint64
	ordersSent   uint64
	queueDrops   uint64
	queueClosed  uint64
	traceSeq     uint64

	dispatchLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	TopicCounts     map[enum.Topic]uint64
	Faults          uint64
	StopTriggers    uint64
	OrdersSent      uint64
	QueueDrops      uint64
	QueueClosed     uint64
	DispatchLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncTopic counts one event observed on a topic.
func (m *Metrics) IncTopic(topic enum.Topic) {
	if m == nil {
		return
	}
	idx := int(topic)
	if idx >= 0 && idx < len(m.topicCounts) {
		atomic.AddUint64(&m.topicCounts[idx], 1)
	}
}

// IncFault counts one disabled strategy callback.
func (m *Metrics) IncFault() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.faults, 1)
}

// IncStopTrigger counts one fired stop order.
func (m *Metrics) IncStopTrigger() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.stopTriggers, 1)
}

// IncOrderSent counts one order handed to a gateway.
func (m *Metrics) IncOrderSent() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersSent, 1)
}

// IncQueueDrop records a bus publish dropped on a full queue.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a publish attempt on a closed bus.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// NextTrace returns an id correlating a fault log line with the
// dispatch that produced it. Ids are unique per process; a nil
// receiver always hands back 0.
func (m *Metrics) NextTrace() uint64 {
	if m == nil {
		return 0
	}
	return atomic.AddUint64(&m.traceSeq, 1)
}

// ObserveDispatch measures one strategy callback invocation.
func (m *Metrics) ObserveDispatch(d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	topicCounts := make(map[enum.Topic]uint64)
	for i := range m.topicCounts {
		if v := atomic.LoadUint64(&m.topicCounts[i]); v > 0 {
			topicCounts[enum.Topic(i)] = v
		}
	}
	return Snapshot{
		TopicCounts:     topicCounts,
		Faults:          atomic.LoadUint64(&m.faults),
		StopTriggers:    atomic.LoadUint64(&m.stopTriggers),
		OrdersSent:      atomic.LoadUint64(&m.ordersSent),
		QueueDrops:      atomic.LoadUint64(&m.queueDrops),
		QueueClosed:     atomic.LoadUint64(&m.queueClosed),
		DispatchLatency: m.dispatchLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
