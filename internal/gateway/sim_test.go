package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/og"
)

func simOrder(id string, direction enum.Direction, price, qty float64) model.Order {
	return model.Order{
		Symbol:    "BTCUSDT",
		Venue:     "SIM",
		OrderID:   id,
		Type:      enum.OrderTypeLimit,
		Direction: direction,
		Price:     price,
		Quantity:  qty,
		Status:    enum.StatusSubmitting,
	}
}

func collect(g *Sim) []og.OrderUpdate {
	var out []og.OrderUpdate
	g.OnUpdate(func(_ string, u og.OrderUpdate) { out = append(out, u) })
	g.Drain()
	return out
}

func TestSimAcksThenFillsOnCross(t *testing.T) {
	g := NewSim("SIM")
	require.NoError(t, g.Connect(context.Background()))
	require.NoError(t, g.SendOrder(simOrder("1", enum.DirectionLong, 100, 5)))

	updates := collect(g)
	require.Len(t, updates, 1)
	assert.Equal(t, enum.StatusNotTraded, updates[0].Status)

	// Above the limit: no fill.
	g.OnTick(model.Tick{Symbol: "BTCUSDT", Last: 101, Time: time.Now()})
	assert.Equal(t, 0, g.Drain())

	g.OnTick(model.Tick{Symbol: "BTCUSDT", Last: 99.5, Time: time.Now()})
	updates = nil
	g.OnUpdate(func(_ string, u og.OrderUpdate) { updates = append(updates, u) })
	require.Equal(t, 1, g.Drain())
	assert.Equal(t, enum.StatusAllTraded, updates[0].Status)
	assert.Equal(t, 5.0, updates[0].Filled)
	assert.Equal(t, 100.0, updates[0].Price)
	assert.Equal(t, 0, g.Pending())
}

func TestSimMarketOrderFillsImmediately(t *testing.T) {
	g := NewSim("SIM")
	require.NoError(t, g.Connect(context.Background()))

	o := simOrder("1", enum.DirectionShort, 100, 2)
	o.Type = enum.OrderTypeMarket
	require.NoError(t, g.SendOrder(o))

	updates := collect(g)
	require.Len(t, updates, 1)
	assert.Equal(t, enum.StatusAllTraded, updates[0].Status)
	assert.Equal(t, 0, g.Pending())
}

func TestSimCancelAndQuery(t *testing.T) {
	g := NewSim("SIM")
	require.NoError(t, g.Connect(context.Background()))
	require.NoError(t, g.SendOrder(simOrder("1", enum.DirectionLong, 90, 1)))
	g.Drain()

	require.NoError(t, g.QueryOrder(model.QueryRequest{OrderID: "1"}))
	updates := collect(g)
	require.Len(t, updates, 1)
	assert.Equal(t, enum.StatusNotTraded, updates[0].Status)

	require.NoError(t, g.CancelOrder(model.CancelRequest{OrderID: "1"}))
	updates = nil
	g.OnUpdate(func(_ string, u og.OrderUpdate) { updates = append(updates, u) })
	g.Drain()
	require.Len(t, updates, 1)
	assert.Equal(t, enum.StatusCancelled, updates[0].Status)

	// Cancelling an unknown order is a no-op.
	require.NoError(t, g.CancelOrder(model.CancelRequest{OrderID: "9"}))
	assert.Equal(t, 0, g.Drain())
}

func TestSimResendOnReconnect(t *testing.T) {
	g := NewSim("SIM")
	require.NoError(t, g.Connect(context.Background()))
	require.NoError(t, g.SendOrder(simOrder("1", enum.DirectionLong, 90, 1)))
	g.Drain()

	require.NoError(t, g.Close())
	assert.ErrorIs(t, g.SendOrder(simOrder("2", enum.DirectionLong, 91, 1)), ErrDisconnected)

	require.NoError(t, g.Connect(context.Background()))
	updates := collect(g)
	require.Len(t, updates, 1)
	assert.Equal(t, "1", updates[0].OrderID)
	assert.Equal(t, enum.StatusNotTraded, updates[0].Status)
}
