package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
)

func tickAt(symbol string, sec int, last, volume float64) model.Tick {
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	return model.Tick{
		Symbol: symbol,
		Venue:  "SIM",
		Time:   base.Add(time.Duration(sec) * time.Second),
		Last:   last,
		Volume: volume,
	}
}

func TestAggregatorEmitsOnWindowRollover(t *testing.T) {
	var bars []model.Bar
	a := NewBarAggregator(enum.IntervalMinute, func(b model.Bar) { bars = append(bars, b) })

	a.OnTick(tickAt("BTCUSDT", 0, 100, 10))
	a.OnTick(tickAt("BTCUSDT", 10, 104, 12))
	a.OnTick(tickAt("BTCUSDT", 20, 98, 15))
	require.Empty(t, bars)

	a.OnTick(tickAt("BTCUSDT", 61, 99, 16))
	require.Len(t, bars, 1)

	bar := bars[0]
	assert.Equal(t, 100.0, bar.Open)
	assert.Equal(t, 104.0, bar.High)
	assert.Equal(t, 98.0, bar.Low)
	assert.Equal(t, 98.0, bar.Close)
	assert.Equal(t, 5.0, bar.Volume)
	assert.Equal(t, enum.IntervalMinute, bar.Interval)
	assert.True(t, bar.Time.Equal(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)))
}

func TestAggregatorKeepsSymbolsSeparate(t *testing.T) {
	var bars []model.Bar
	a := NewBarAggregator(enum.IntervalMinute, func(b model.Bar) { bars = append(bars, b) })

	a.OnTick(tickAt("BTCUSDT", 0, 100, 0))
	a.OnTick(tickAt("ETHUSDT", 5, 50, 0))
	a.OnTick(tickAt("BTCUSDT", 61, 101, 0))
	require.Len(t, bars, 1)
	assert.Equal(t, "BTCUSDT", bars[0].Symbol)

	a.Flush()
	assert.Len(t, bars, 3)
}

func TestAggregatorIgnoresZeroPriceTicks(t *testing.T) {
	var bars []model.Bar
	a := NewBarAggregator(enum.IntervalMinute, func(b model.Bar) { bars = append(bars, b) })

	a.OnTick(model.Tick{Symbol: "BTCUSDT", Time: time.Now()})
	a.Flush()
	assert.Empty(t, bars)
}
