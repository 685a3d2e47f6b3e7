package feed

import (
	"context"
	"math/rand"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/model"
)

// Generator produces a synthetic random-walk tick stream over every
// registered contract, round-robin. A fixed seed replays the same
// sequence, which makes paper-trading runs repeatable.
type Generator struct {
	venue   string
	symbols []string
	ticks   map[string]float64
	prices  map[string]float64
	spread  float64
	rng     *rand.Rand
	index   int
}

// NewGenerator walks all contracts in the registry starting from
// basePrice.
func NewGenerator(contracts *model.ContractRegistry, seed int64, basePrice, spread float64) (*Generator, error) {
	if contracts == nil || contracts.ContractCount() == 0 {
		return nil, errors.New("registry has no contracts")
	}
	if basePrice <= 0 {
		basePrice = 100
	}
	if spread < 0 {
		spread = 0
	}

	g := &Generator{
		symbols: make([]string, 0, contracts.ContractCount()),
		ticks:   make(map[string]float64),
		prices:  make(map[string]float64),
		spread:  spread,
		rng:     rand.New(rand.NewSource(seed)),
	}
	for i := 0; i < contracts.ContractCount(); i++ {
		spec, ok := contracts.ContractAt(i)
		if !ok {
			continue
		}
		g.symbols = append(g.symbols, spec.Symbol)
		tickSize := spec.PriceTick
		if tickSize <= 0 {
			tickSize = 0.01
		}
		g.ticks[spec.Symbol] = tickSize
		g.prices[spec.Symbol] = basePrice + float64(i)
		if g.venue == "" {
			g.venue = spec.Venue
		}
	}
	return g, nil
}

// Next creates the next tick in sequence.
func (g *Generator) Next(now time.Time) model.Tick {
	symbol := g.symbols[g.index]
	g.index = (g.index + 1) % len(g.symbols)

	tickSize := g.ticks[symbol]
	price := g.prices[symbol] + float64(g.rng.Intn(5)-2)*tickSize
	if price < tickSize {
		price = tickSize
	}
	g.prices[symbol] = price

	return model.Tick{
		Symbol:   symbol,
		Venue:    g.venue,
		Time:     now,
		Last:     price,
		LastSize: 1,
		BidPrice: price - g.spread,
		BidSize:  1,
		AskPrice: price + g.spread,
		AskSize:  1,
	}
}

// Run emits ticks on a fixed cadence until the context is done.
func (g *Generator) Run(ctx context.Context, interval time.Duration, handler Handler) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			handler(g.Next(now))
		}
	}
}
