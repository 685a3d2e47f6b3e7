package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatisticsOverKnownSeries(t *testing.T) {
	days := []DailyResult{
		{Date: "2024-01-01", NetPnL: 1000, Commission: 10, Turnover: 10000, TradeCount: 2},
		{Date: "2024-01-02", NetPnL: -500, Commission: 5, Turnover: 5000, TradeCount: 1},
		{Date: "2024-01-03", NetPnL: 0},
		{Date: "2024-01-04", NetPnL: 2000, Commission: 20, Turnover: 20000, TradeCount: 3},
	}
	s, err := ComputeStatistics(days, 100_000, 0, 240)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01", s.StartDate)
	assert.Equal(t, "2024-01-04", s.EndDate)
	assert.Equal(t, 4, s.TotalDays)
	assert.Equal(t, 2, s.ProfitDays)
	assert.Equal(t, 1, s.LossDays)
	assert.Equal(t, 102_500.0, s.EndBalance)
	assert.Equal(t, 35.0, s.TotalCommission)
	assert.Equal(t, 6, s.TotalTradeCount)
	assert.InDelta(t, 2.5, s.TotalReturn, 1e-9)
	assert.InDelta(t, 2.5/4*240, s.AnnualReturn, 1e-9)

	// Balance curve and drawdown from the high-water mark.
	assert.Equal(t, []float64{101_000, 100_500, 100_500, 102_500}, s.Balance)
	assert.Equal(t, -500.0, s.MaxDrawdown)
	assert.InDelta(t, -500.0/101_000*100, s.MaxDDPercent, 1e-9)
	assert.Equal(t, 1, s.MaxDrawdownDuration)
	assert.True(t, s.Sharpe > 0)
}

func TestStatisticsEmptySeries(t *testing.T) {
	_, err := ComputeStatistics(nil, 100_000, 0, 240)
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestStatisticsAllLosingDays(t *testing.T) {
	days := []DailyResult{
		{Date: "2024-01-01", NetPnL: -100},
		{Date: "2024-01-02", NetPnL: -100},
		{Date: "2024-01-03", NetPnL: -100},
	}
	s, err := ComputeStatistics(days, 10_000, 0, 240)
	require.NoError(t, err)
	assert.Equal(t, 3, s.LossDays)
	assert.Equal(t, 0, s.ProfitDays)
	assert.Equal(t, -300.0, s.MaxDrawdown)
	assert.Equal(t, 3, s.MaxDrawdownDuration)
	assert.True(t, s.Sharpe < 0)
}
