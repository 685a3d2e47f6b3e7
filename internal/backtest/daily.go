package backtest

import (
	"main/internal/model"
)

// DailyResult is one calendar day of the replay: its trades and the
// P&L decomposition into a holding part (carrying yesterday's position
// through the close-to-close move) and a trading part (each fill
// measured against the day's close).
type DailyResult struct {
	Date     string
	Close    float64
	PreClose float64

	Trades     []model.Trade
	TradeCount int

	StartPos float64
	EndPos   float64

	Turnover   float64
	Commission float64
	Slippage   float64

	TradingPnL float64
	HoldingPnL float64
	TotalPnL   float64
	NetPnL     float64
}

const dayLayout = "2006-01-02"

// updateDaily opens or extends the result for the bar's calendar date
// and attributes every not-yet-attributed trade to it. Trades executed
// at a timestamp always precede this call for the same timestamp, so
// attribution follows execution order exactly.
func (e *Engine) updateDaily(bar model.Bar) {
	date := bar.Time.Format(dayLayout)
	idx, ok := e.dayIdx[date]
	if !ok {
		idx = len(e.days)
		e.dayIdx[date] = idx
		e.days = append(e.days, &DailyResult{Date: date})
	}
	day := e.days[idx]
	day.Close = bar.Close

	attributed := 0
	for _, d := range e.days {
		attributed += len(d.Trades)
	}
	for _, t := range e.trades[attributed:] {
		day.Trades = append(day.Trades, t)
	}
}

// finalizeDaily chains the per-day computation: the previous close and
// the end-of-day position carry forward day to day.
func (e *Engine) finalizeDaily() {
	preClose, startPos := 0.0, 0.0
	for _, day := range e.days {
		startPos = day.compute(preClose, startPos, e.cfg.Size, e.cfg.Rate, e.cfg.Slippage)
		preClose = day.Close
	}
}

func (d *DailyResult) compute(preClose, startPos, size, rate, slippage float64) (endPos float64) {
	d.PreClose = preClose
	d.StartPos = startPos
	d.TradeCount = len(d.Trades)

	if preClose > 0 {
		d.HoldingPnL = startPos * (d.Close - preClose) * size
	}

	pos := startPos
	for _, t := range d.Trades {
		delta := t.Direction.Sign() * t.Quantity
		pos += delta

		turnover := t.Quantity * size * t.Price
		d.Turnover += turnover
		d.Commission += turnover * rate
		d.Slippage += t.Quantity * size * slippage
		d.TradingPnL += delta * (d.Close - t.Price) * size
	}
	d.EndPos = pos
	d.TotalPnL = d.TradingPnL + d.HoldingPnL
	d.NetPnL = d.TotalPnL - d.Commission - d.Slippage
	return pos
}
