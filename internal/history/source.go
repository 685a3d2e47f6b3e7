package history

import (
	"context"
	"time"

	"main/internal/model"
	"main/internal/model/enum"
)

// Source loads historical bars. Both the backtest replay and strategy
// warm-up read through this; implementations must return bars sorted by
// time ascending.
type Source interface {
	Bars(ctx context.Context, symbol string, interval enum.Interval, start, end time.Time) ([]model.Bar, error)
	Close() error
}

// Memory is a fixed in-process bar source for tests and generated data.
type Memory struct {
	bars map[string][]model.Bar
}

// NewMemory indexes the given bars by symbol, preserving input order.
func NewMemory(bars []model.Bar) *Memory {
	s := &Memory{bars: make(map[string][]model.Bar)}
	for _, b := range bars {
		s.bars[b.Symbol] = append(s.bars[b.Symbol], b)
	}
	return s
}

func (s *Memory) Bars(_ context.Context, symbol string, interval enum.Interval, start, end time.Time) ([]model.Bar, error) {
	var out []model.Bar
	for _, b := range s.bars[symbol] {
		if b.Interval != interval {
			continue
		}
		if b.Time.Before(start) || b.Time.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Memory) Close() error { return nil }
