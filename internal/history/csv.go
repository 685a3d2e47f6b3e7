package history

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/model/enum"
)

// CSV reads bars from one file per (symbol, interval), named
// <symbol>_<interval>.csv with a header row of
// time,open,high,low,close,volume,turnover and RFC3339 timestamps.
type CSV struct {
	dir   string
	venue string
}

// NewCSV creates a CSV bar source rooted at dir.
func NewCSV(dir, venue string) (*CSV, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrap(err, "open bar directory")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("bar path is not a directory: %s", dir)
	}
	return &CSV{dir: dir, venue: venue}, nil
}

func (s *CSV) Bars(_ context.Context, symbol string, interval enum.Interval, start, end time.Time) ([]model.Bar, error) {
	path := filepath.Join(s.dir, symbol+"_"+interval.String()+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open bars %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 7

	if _, err := r.Read(); err != nil { // header
		return nil, errors.Wrapf(err, "read header %s", path)
	}

	var out []model.Bar
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		bar, err := s.parse(record, symbol, interval)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
		if bar.Time.Before(start) || bar.Time.After(end) {
			continue
		}
		out = append(out, bar)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func (s *CSV) Close() error { return nil }

func (s *CSV) parse(record []string, symbol string, interval enum.Interval) (model.Bar, error) {
	ts, err := time.Parse(time.RFC3339, record[0])
	if err != nil {
		return model.Bar{}, err
	}
	fields := make([]float64, 6)
	for i, raw := range record[1:] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.Bar{}, err
		}
		fields[i] = v
	}
	return model.Bar{
		Symbol:   symbol,
		Venue:    s.venue,
		Time:     ts,
		Interval: interval,
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
		Turnover: fields[5],
	}, nil
}
