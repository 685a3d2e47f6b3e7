package feed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/model"
)

const defaultStreamURL = "wss://stream.binance.com:9443/ws"

// Handler consumes normalized ticks.
type Handler func(model.Tick)

// Stream is a websocket market feed. It subscribes to rolling ticker
// streams and normalizes payloads into model.Tick.
type Stream struct {
	wss   *ws.WebSocket
	venue string
}

// NewStream creates a feed against the given websocket endpoint.
func NewStream(ctx context.Context, url, venue string) *Stream {
	if url == "" {
		url = defaultStreamURL
	}
	return &Stream{
		wss:   ws.New(ctx, url),
		venue: venue,
	}
}

func (s *Stream) Len() int {
	return s.wss.Len()
}

func (s *Stream) Close() {
	s.wss.Close()
}

func (s *Stream) Start(ctx context.Context) error {
	if err := s.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}
	return nil
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type subscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

// Subscribe registers the ticker stream for every symbol and waits for
// the venue's acknowledgement.
func (s *Stream) Subscribe(ctx context.Context, symbols []string) error {
	params := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		params = append(params, fmt.Sprintf("%s@ticker", strings.ToLower(symbol)))
	}

	if err := s.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			payload := subscribeRequest{
				Method: "SUBSCRIBE",
				Params: params,
				ID:     1,
			}
			if err := client.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp subscribeResponse
			if err := m.Unmarshal(&resp); err != nil || resp.ID != 1 {
				return false, nil
			}
			if resp.Result != nil {
				return false, errors.Errorf("subscribe rejected: %+v", resp.Result)
			}
			return true, nil
		},
	}, true); err != nil {
		return errors.Wrap(err, "send and wait")
	}
	return nil
}

type tickerPayload struct {
	EventType string          `json:"e"`
	EventTime int64           `json:"E"`
	Symbol    string          `json:"s"`
	Last      decimal.Decimal `json:"c"`
	LastSize  decimal.Decimal `json:"Q"`
	Bid       decimal.Decimal `json:"b"`
	BidSize   decimal.Decimal `json:"B"`
	Ask       decimal.Decimal `json:"a"`
	AskSize   decimal.Decimal `json:"A"`
	Volume    decimal.Decimal `json:"v"`
	Turnover  decimal.Decimal `json:"q"`
}

// Observe pumps normalized ticks into the handler until the context or
// the process shuts down.
func (s *Stream) Observe(ctx context.Context, handler Handler) (unsubscribe func()) {
	ch, cancel := s.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				payload, ok := ws.ReadMessage[tickerPayload](m)
				if !ok || payload.EventType != "24hrTicker" {
					continue
				}
				tick, err := s.normalize(payload)
				if err != nil {
					logs.Errorf("normalize tick, err: %+v", err)
					continue
				}
				handler(tick)
			}
		}
	}()

	return cancel
}

func (s *Stream) normalize(p tickerPayload) (model.Tick, error) {
	tick := model.Tick{
		Symbol: p.Symbol,
		Venue:  s.venue,
		Time:   time.UnixMilli(p.EventTime),
	}
	for _, field := range []struct {
		dst *float64
		src decimal.Decimal
	}{
		{&tick.Last, p.Last},
		{&tick.LastSize, p.LastSize},
		{&tick.BidPrice, p.Bid},
		{&tick.BidSize, p.BidSize},
		{&tick.AskPrice, p.Ask},
		{&tick.AskSize, p.AskSize},
		{&tick.Volume, p.Volume},
		{&tick.Turnover, p.Turnover},
	} {
		v, err := toFloat(field.src)
		if err != nil {
			return model.Tick{}, err
		}
		*field.dst = v
	}
	return tick, nil
}

func toFloat(d decimal.Decimal) (float64, error) {
	raw := d.String()
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}
