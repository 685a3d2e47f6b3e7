package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
)

const csvFixture = `time,open,high,low,close,volume,turnover
2024-01-02T00:00:00Z,100,102,99,101,1000,101000
2024-01-01T00:00:00Z,99,100,98,100,900,89100
2024-01-03T00:00:00Z,101,103,100,102,1100,112200
`

func TestCSVReadsSortedWindow(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BTCUSDT_1d.csv"), []byte(csvFixture), 0o644))

	s, err := NewCSV(dir, "SIM")
	require.NoError(t, err)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars, err := s.Bars(context.Background(), "BTCUSDT", enum.IntervalDaily, start, end)
	require.NoError(t, err)

	// Out-of-order rows come back sorted, and the 01-03 bar is windowed out.
	require.Len(t, bars, 2)
	assert.Equal(t, 100.0, bars[0].Close)
	assert.Equal(t, 101.0, bars[1].Close)
	assert.Equal(t, "SIM", bars[0].Venue)
	assert.Equal(t, enum.IntervalDaily, bars[0].Interval)
}

func TestCSVMissingFile(t *testing.T) {
	s, err := NewCSV(t.TempDir(), "SIM")
	require.NoError(t, err)
	_, err = s.Bars(context.Background(), "NOPE", enum.IntervalDaily, time.Time{}, time.Now())
	assert.Error(t, err)
}

func TestMemorySourceFilters(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	s := NewMemory([]model.Bar{
		{Symbol: "A", Interval: enum.IntervalDaily, Time: day(1), Close: 1},
		{Symbol: "A", Interval: enum.IntervalDaily, Time: day(2), Close: 2},
		{Symbol: "B", Interval: enum.IntervalDaily, Time: day(1), Close: 3},
	})
	bars, err := s.Bars(context.Background(), "A", enum.IntervalDaily, day(1), day(1))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 1.0, bars[0].Close)
}
