package model

import (
	"time"

	"main/internal/model/enum"
)

// Tick is a level-1 quote snapshot with the venue's daily price band.
type Tick struct {
	Symbol string
	Venue  string
	Time   time.Time

	Last     float64
	LastSize float64
	Volume   float64
	Turnover float64

	BidPrice float64
	BidSize  float64
	AskPrice float64
	AskSize  float64

	LimitUp   float64
	LimitDown float64
}

// Bar is a single OHLCV bar.
type Bar struct {
	Symbol   string
	Venue    string
	Time     time.Time
	Interval enum.Interval

	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Turnover float64
}

// FlatBar synthesizes a zero-volume bar pinned at the previous close so
// that multi-symbol replays keep a consistent time axis when a symbol
// has no bar for a timestamp.
func FlatBar(prev Bar, ts time.Time) Bar {
	return Bar{
		Symbol:   prev.Symbol,
		Venue:    prev.Venue,
		Time:     ts,
		Interval: prev.Interval,
		Open:     prev.Close,
		High:     prev.Close,
		Low:      prev.Close,
		Close:    prev.Close,
	}
}
