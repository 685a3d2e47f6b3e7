package obs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"main/internal/model/enum"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.IncTopic(enum.TopicTick)
	m.IncTopic(enum.TopicTick)
	m.IncTopic(enum.TopicOrder)
	m.IncFault()
	m.ObserveDispatch(2 * time.Millisecond)
	m.ObserveDispatch(4 * time.Millisecond)

	s := m.Snapshot()
	assert.Equal(t, uint64(2), s.TopicCounts[enum.TopicTick])
	assert.Equal(t, uint64(1), s.TopicCounts[enum.TopicOrder])
	assert.Equal(t, uint64(1), s.Faults)
	assert.Equal(t, uint64(2), s.DispatchLatency.Count)
	assert.Equal(t, 2*time.Millisecond, s.DispatchLatency.Min)
	assert.Equal(t, 4*time.Millisecond, s.DispatchLatency.Max)
	assert.Equal(t, 3*time.Millisecond, s.DispatchLatency.Avg)
}

func TestNextTraceIsUniqueAndNilSafe(t *testing.T) {
	m := NewMetrics()
	seen := make(map[uint64]struct{})
	for i := 0; i < 100; i++ {
		id := m.NextTrace()
		assert.NotZero(t, id)
		_, dup := seen[id]
		assert.False(t, dup)
		seen[id] = struct{}{}
	}

	var nilMetrics *Metrics
	assert.Zero(t, nilMetrics.NextTrace())
	nilMetrics.IncFault() // nil receivers never panic
}
