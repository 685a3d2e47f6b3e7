package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/backtest"
	"main/internal/history"
	"main/internal/model/enum"
	"main/internal/strategy"
)

const dateLayout = "2006-01-02"

func main() {
	csvDir := flag.String("csv", "testdata/bars", "directory with <symbol>_<interval>.csv bar files")
	symbol := flag.String("symbol", "", "symbol to replay")
	venue := flag.String("venue", "BACKTEST", "venue label for replayed bars")
	intervalFlag := flag.String("interval", "1d", "bar interval (1m, 1h, 1d)")
	startFlag := flag.String("start", "", "window start (2006-01-02)")
	endFlag := flag.String("end", "", "window end (2006-01-02)")
	class := flag.String("class", "donchian", "strategy class (grid, donchian)")
	paramsJSON := flag.String("params", "{}", "strategy parameters as JSON")
	size := flag.Float64("size", 1, "contract multiplier")
	rate := flag.Float64("rate", 0, "commission rate on turnover")
	slippage := flag.Float64("slippage", 0, "slippage per unit of quantity")
	capital := flag.Float64("capital", 1_000_000, "starting capital")
	mode := flag.String("mode", "run", "run | grid | genetic")
	target := flag.String("target", "sharpe", "statistic to rank sweeps on")
	sweep := flag.String("sweep", "", "sweep ranges, e.g. step=1:10:1,max_pos=2:6:2")
	workers := flag.Int("workers", 4, "parallel sweep workers")
	seed := flag.Int64("seed", 1, "genetic search seed")
	top := flag.Int("top", 10, "sweep results to print")
	flag.Parse()

	if err := run(runArgs{
		csvDir:   *csvDir,
		symbol:   *symbol,
		venue:    *venue,
		interval: *intervalFlag,
		start:    *startFlag,
		end:      *endFlag,
		class:    *class,
		params:   *paramsJSON,
		size:     *size,
		rate:     *rate,
		slippage: *slippage,
		capital:  *capital,
		mode:     *mode,
		target:   *target,
		sweep:    *sweep,
		workers:  *workers,
		seed:     *seed,
		top:      *top,
	}); err != nil {
		logs.Errorf("backtest failed, err: %+v", err)
		os.Exit(1)
	}
}

type runArgs struct {
	csvDir, symbol, venue, interval, start, end string
	class, params, mode, target, sweep          string
	size, rate, slippage, capital               float64
	workers, top                                int
	seed                                        int64
}

func run(args runArgs) error {
	if args.symbol == "" {
		return errors.New("symbol is required")
	}
	interval, ok := enum.ParseInterval(args.interval)
	if !ok {
		return errors.Errorf("unknown interval: %s", args.interval)
	}
	start, err := time.Parse(dateLayout, args.start)
	if err != nil {
		return errors.Wrap(err, "parse start")
	}
	end, err := time.Parse(dateLayout, args.end)
	if err != nil {
		return errors.Wrap(err, "parse end")
	}

	var params map[string]any
	if err := json.Unmarshal([]byte(args.params), &params); err != nil {
		return errors.Wrap(err, "parse params")
	}

	registry := strategy.NewRegistry()
	if err := registry.Register("grid", strategy.NewGrid); err != nil {
		return err
	}
	if err := registry.Register("donchian", strategy.NewDonchian); err != nil {
		return err
	}
	if _, err := registry.Create(args.class); err != nil {
		return err
	}
	factory := func() strategy.Strategy {
		strat, _ := registry.Create(args.class)
		return strat
	}

	cfg := backtest.Config{
		Symbol:   args.symbol,
		Venue:    args.venue,
		Interval: interval,
		Start:    start,
		End:      end.Add(24 * time.Hour),
		Size:     args.size,
		Rate:     args.rate,
		Slippage: args.slippage,
		Capital:  args.capital,
	}

	source, err := history.NewCSV(args.csvDir, args.venue)
	if err != nil {
		return err
	}
	defer source.Close()

	bars, err := source.Bars(context.Background(), args.symbol, interval, cfg.Start, cfg.End)
	if err != nil {
		return err
	}

	switch args.mode {
	case "run":
		strat := factory()
		if err := strat.ApplyParams(params); err != nil {
			return err
		}
		engine, err := backtest.New(cfg, strat)
		if err != nil {
			return err
		}
		engine.SetBars(bars)
		if err := engine.Run(); err != nil {
			return err
		}
		stats, err := backtest.ComputeStatistics(engine.Days(), cfg.Capital, cfg.RiskFree, cfg.AnnualDays)
		if err != nil {
			return err
		}
		printStatistics(stats, len(engine.Trades()))
		return nil
	case "grid", "genetic":
		setting, err := parseSweep(args.target, args.sweep)
		if err != nil {
			return err
		}
		var results []backtest.RunResult
		if args.mode == "grid" {
			results = backtest.RunGrid(cfg, factory, setting, bars, args.workers)
		} else {
			results = backtest.RunGenetic(cfg, factory, setting, bars, backtest.GeneticConfig{
				Seed:    args.seed,
				Workers: args.workers,
			})
		}
		printResults(results, args.target, args.top)
		return nil
	default:
		return errors.Errorf("unknown mode: %s", args.mode)
	}
}

// parseSweep reads "name=start:end:step" clauses separated by commas.
func parseSweep(target, spec string) (*backtest.OptimizationSetting, error) {
	if spec == "" {
		return nil, errors.New("sweep mode needs -sweep ranges")
	}
	setting := backtest.NewOptimizationSetting(target)
	for _, clause := range strings.Split(spec, ",") {
		name, rng, ok := strings.Cut(clause, "=")
		if !ok {
			return nil, errors.Errorf("bad sweep clause: %s", clause)
		}
		parts := strings.Split(rng, ":")
		if len(parts) != 3 {
			return nil, errors.Errorf("bad sweep range (want start:end:step): %s", clause)
		}
		vals := make([]float64, 3)
		for i, p := range parts {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "bad sweep number: %s", p)
			}
			vals[i] = v
		}
		if err := setting.AddParameter(strings.TrimSpace(name), vals[0], vals[1], vals[2]); err != nil {
			return nil, err
		}
	}
	return setting, nil
}

func printStatistics(s backtest.Statistics, trades int) {
	fmt.Printf("window           %s .. %s (%d days, %d up / %d down)\n",
		s.StartDate, s.EndDate, s.TotalDays, s.ProfitDays, s.LossDays)
	fmt.Printf("capital          %.2f -> %.2f\n", s.Capital, s.EndBalance)
	fmt.Printf("net pnl          %.2f (commission %.2f, slippage %.2f)\n",
		s.TotalNetPnL, s.TotalCommission, s.TotalSlippage)
	fmt.Printf("turnover         %.2f over %d fills (%d trades)\n",
		s.TotalTurnover, s.TotalTradeCount, trades)
	fmt.Printf("return           total %.2f%%, annual %.2f%%, daily %.4f%% (std %.4f)\n",
		s.TotalReturn, s.AnnualReturn, s.DailyReturn, s.ReturnStd)
	fmt.Printf("max drawdown     %.2f (%.2f%%), longest %d days\n",
		s.MaxDrawdown, s.MaxDDPercent, s.MaxDrawdownDuration)
	fmt.Printf("sharpe           %.4f\n", s.Sharpe)
}

func printResults(results []backtest.RunResult, target string, top int) {
	if top <= 0 || top > len(results) {
		top = len(results)
	}
	fmt.Printf("rank  %-12s  setting\n", target)
	for i, r := range results[:top] {
		if r.Statistic == nil {
			fmt.Printf("%4d  %-12s  %v (error: %s)\n", i+1, "-", r.Setting, r.Err)
			continue
		}
		fmt.Printf("%4d  %-12.4f  %v\n", i+1, *r.Statistic, r.Setting)
	}
}
