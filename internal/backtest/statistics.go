package backtest

import (
	"math"

	"github.com/yanun0323/errors"
)

var ErrNoResults = errors.New("no daily results to compute statistics")

// Statistics aggregates a full DailyResult series into the portfolio
// numbers a sweep ranks on.
type Statistics struct {
	StartDate string
	EndDate   string

	TotalDays  int
	ProfitDays int
	LossDays   int

	Capital    float64
	EndBalance float64

	MaxDrawdown         float64
	MaxDDPercent        float64
	MaxDrawdownDuration int

	TotalNetPnL     float64
	TotalCommission float64
	TotalSlippage   float64
	TotalTurnover   float64
	TotalTradeCount int

	TotalReturn  float64
	AnnualReturn float64
	DailyReturn  float64
	ReturnStd    float64
	Sharpe       float64

	// Balance and Drawdown are the per-day curves, aligned with the
	// input series.
	Balance  []float64
	Drawdown []float64
}

// ComputeStatistics runs once over the finalized series.
func ComputeStatistics(days []DailyResult, capital, riskFree float64, annualDays int) (Statistics, error) {
	if len(days) == 0 {
		return Statistics{}, ErrNoResults
	}
	if capital <= 0 {
		capital = 1_000_000
	}
	if annualDays <= 0 {
		annualDays = 240
	}

	s := Statistics{
		StartDate: days[0].Date,
		EndDate:   days[len(days)-1].Date,
		TotalDays: len(days),
		Capital:   capital,
		Balance:   make([]float64, len(days)),
		Drawdown:  make([]float64, len(days)),
	}

	returns := make([]float64, len(days))
	balance := capital
	highWater := capital
	peakIdx := -1
	for i, d := range days {
		prev := balance
		balance += d.NetPnL
		s.Balance[i] = balance

		if d.NetPnL > 0 {
			s.ProfitDays++
		} else if d.NetPnL < 0 {
			s.LossDays++
		}
		s.TotalNetPnL += d.NetPnL
		s.TotalCommission += d.Commission
		s.TotalSlippage += d.Slippage
		s.TotalTurnover += d.Turnover
		s.TotalTradeCount += d.TradeCount

		if prev > 0 && balance > 0 {
			returns[i] = math.Log(balance / prev)
		}

		if balance >= highWater {
			highWater = balance
			peakIdx = i
		}
		dd := balance - highWater
		s.Drawdown[i] = dd
		if dd < s.MaxDrawdown {
			s.MaxDrawdown = dd
			if highWater > 0 {
				s.MaxDDPercent = dd / highWater * 100
			}
			if duration := i - peakIdx; duration > s.MaxDrawdownDuration {
				s.MaxDrawdownDuration = duration
			}
		}
	}
	s.EndBalance = balance

	s.TotalReturn = (balance/capital - 1) * 100
	s.AnnualReturn = s.TotalReturn / float64(s.TotalDays) * float64(annualDays)

	mean := meanOf(returns)
	std := stdOf(returns, mean)
	s.DailyReturn = mean * 100
	s.ReturnStd = std * 100
	if std > 0 {
		dailyRiskFree := riskFree / float64(annualDays)
		s.Sharpe = (mean - dailyRiskFree) / std * math.Sqrt(float64(annualDays))
	}
	return s, nil
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdOf(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		diff := v - mean
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
