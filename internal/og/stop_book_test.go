package og

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
)

func tick(symbol string, last float64) model.Tick {
	return model.Tick{Symbol: symbol, Last: last, BidPrice: last - 1, AskPrice: last + 1}
}

func TestStopTriggersAtMostOnce(t *testing.T) {
	b := NewStopBook()
	now := time.Now()

	so, err := b.Place("rb2501", "grid", enum.DirectionShort, enum.OffsetClose, 95, 2, now)
	require.NoError(t, err)
	assert.Equal(t, enum.StopWaiting, so.Status)

	fired := 0
	for _, last := range []float64{97, 96, 94, 93, 90} {
		fired += len(b.Trigger(tick("rb2501", last)))
	}
	assert.Equal(t, 1, fired)
	assert.Empty(t, b.Waiting(""))
}

func TestStopTriggerRules(t *testing.T) {
	b := NewStopBook()
	now := time.Now()

	long, err := b.Place("rb2501", "s", enum.DirectionLong, enum.OffsetOpen, 105, 1, now)
	require.NoError(t, err)

	// Below the trigger: nothing fires.
	assert.Empty(t, b.Trigger(tick("rb2501", 104.9)))

	fired := b.Trigger(tick("rb2501", 105))
	require.Len(t, fired, 1)
	assert.Equal(t, long.StopID, fired[0].Stop.StopID)
	assert.Equal(t, enum.StopTriggered, fired[0].Stop.Status)
}

func TestStopExecutionPricePrefersBandEdge(t *testing.T) {
	b := NewStopBook()
	now := time.Now()

	_, err := b.Place("rb2501", "s", enum.DirectionLong, enum.OffsetOpen, 100, 1, now)
	require.NoError(t, err)
	_, err = b.Place("rb2501", "s", enum.DirectionShort, enum.OffsetOpen, 100, 1, now)
	require.NoError(t, err)

	banded := model.Tick{Symbol: "rb2501", Last: 100, BidPrice: 99, AskPrice: 101, LimitUp: 110, LimitDown: 90}
	fired := b.Trigger(banded)
	require.Len(t, fired, 2)
	assert.Equal(t, 110.0, fired[0].Price)
	assert.Equal(t, 90.0, fired[1].Price)
}

func TestStopExecutionPriceFallsBackToQuote(t *testing.T) {
	b := NewStopBook()
	now := time.Now()

	_, err := b.Place("rb2501", "s", enum.DirectionLong, enum.OffsetOpen, 100, 1, now)
	require.NoError(t, err)

	fired := b.Trigger(model.Tick{Symbol: "rb2501", Last: 101, AskPrice: 101.5})
	require.Len(t, fired, 1)
	assert.Equal(t, 101.5, fired[0].Price)
}

func TestStopIgnoresOtherSymbols(t *testing.T) {
	b := NewStopBook()
	now := time.Now()

	_, err := b.Place("rb2501", "s", enum.DirectionLong, enum.OffsetOpen, 100, 1, now)
	require.NoError(t, err)

	assert.Empty(t, b.Trigger(tick("hc2501", 200)))
	assert.Len(t, b.Waiting("s"), 1)
}

func TestStopCancel(t *testing.T) {
	b := NewStopBook()
	now := time.Now()

	so, err := b.Place("rb2501", "s", enum.DirectionLong, enum.OffsetOpen, 100, 1, now)
	require.NoError(t, err)

	cancelled, ok := b.Cancel(so.StopID)
	require.True(t, ok)
	assert.Equal(t, enum.StopCancelled, cancelled.Status)
	assert.Empty(t, b.Waiting(""))

	_, ok = b.Cancel(so.StopID)
	assert.False(t, ok)
}

func TestStopPlaceValidation(t *testing.T) {
	b := NewStopBook()
	now := time.Now()

	_, err := b.Place("", "s", enum.DirectionLong, enum.OffsetOpen, 100, 1, now)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = b.Place("rb2501", "s", enum.DirectionLong, enum.OffsetOpen, 0, 1, now)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = b.Place("rb2501", "s", enum.DirectionLong, enum.OffsetOpen, 100, 0, now)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
