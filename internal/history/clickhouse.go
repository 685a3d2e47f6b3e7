package history

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/model/enum"
)

// ClickHouseOption configures the bar warehouse connection.
type ClickHouseOption struct {
	Addr     string
	Database string
	Username string
	Password string
	Venue    string
	// Table defaults to "bars".
	Table string
}

// ClickHouse reads bars out of a ClickHouse warehouse table with
// columns (symbol, interval, ts, open, high, low, close, volume,
// turnover).
type ClickHouse struct {
	conn  driver.Conn
	venue string
	table string
}

// NewClickHouse connects and pings the warehouse.
func NewClickHouse(ctx context.Context, opt ClickHouseOption) (*ClickHouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opt.Addr},
		Auth: clickhouse.Auth{
			Database: opt.Database,
			Username: opt.Username,
			Password: opt.Password,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "open clickhouse")
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, errors.Wrap(err, "ping clickhouse")
	}
	table := opt.Table
	if table == "" {
		table = "bars"
	}
	return &ClickHouse{conn: conn, venue: opt.Venue, table: table}, nil
}

func (s *ClickHouse) Bars(ctx context.Context, symbol string, interval enum.Interval, start, end time.Time) ([]model.Bar, error) {
	q := `
SELECT ts, open, high, low, close, volume, turnover
FROM ` + s.table + `
WHERE symbol = ? AND interval = ? AND ts BETWEEN ? AND ?
ORDER BY ts`
	rows, err := s.conn.Query(ctx, q, symbol, interval.String(), start, end)
	if err != nil {
		return nil, errors.Wrapf(err, "query bars %s", symbol)
	}
	defer rows.Close()

	var out []model.Bar
	for rows.Next() {
		var (
			ts         time.Time
			o, h, l, c float64
			vol, turn  float64
		)
		if err := rows.Scan(&ts, &o, &h, &l, &c, &vol, &turn); err != nil {
			return nil, errors.Wrapf(err, "scan bars %s", symbol)
		}
		out = append(out, model.Bar{
			Symbol:   symbol,
			Venue:    s.venue,
			Time:     ts,
			Interval: interval,
			Open:     o,
			High:     h,
			Low:      l,
			Close:    c,
			Volume:   vol,
			Turnover: turn,
		})
	}
	return out, rows.Err()
}

func (s *ClickHouse) Close() error { return s.conn.Close() }
