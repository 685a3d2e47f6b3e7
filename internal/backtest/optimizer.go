package backtest

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/strategy"
)

// Factory builds a fresh strategy for one sweep combination.
type Factory func() strategy.Strategy

// OptimizationSetting spans the parameter space of a sweep and names
// the statistic to rank by.
type OptimizationSetting struct {
	Target string

	order  []string
	values map[string][]float64
}

// NewOptimizationSetting creates an empty setting ranked by target.
func NewOptimizationSetting(target string) *OptimizationSetting {
	return &OptimizationSetting{Target: target, values: make(map[string][]float64)}
}

// AddParameter spans one parameter from start to end inclusive, in
// steps. A zero step pins the parameter to start.
func (s *OptimizationSetting) AddParameter(name string, start, end, step float64) error {
	if name == "" {
		return errors.New("parameter name is empty")
	}
	if step < 0 || end < start {
		return errors.Errorf("bad range for %s", name)
	}
	if step == 0 {
		s.set(name, []float64{start})
		return nil
	}
	var vals []float64
	for v := start; v <= end+step/1e9; v += step {
		vals = append(vals, v)
	}
	s.set(name, vals)
	return nil
}

func (s *OptimizationSetting) set(name string, vals []float64) {
	if _, ok := s.values[name]; !ok {
		s.order = append(s.order, name)
	}
	s.values[name] = vals
}

// generate expands the full cartesian product.
func (s *OptimizationSetting) generate() []map[string]any {
	out := []map[string]any{{}}
	for _, name := range s.order {
		var next []map[string]any
		for _, combo := range out {
			for _, v := range s.values[name] {
				c := make(map[string]any, len(combo)+1)
				for k, cv := range combo {
					c[k] = cv
				}
				c[name] = v
				next = append(next, c)
			}
		}
		out = next
	}
	if len(out) == 1 && len(out[0]) == 0 {
		return nil
	}
	return out
}

// RunResult is one sweep combination. A run that errored carries a nil
// Statistic and the reason, never aborting the rest of the sweep.
type RunResult struct {
	ID        string
	Setting   map[string]any
	Statistic *float64
	Stats     *Statistics
	Err       string
}

// RunGrid replays every combination of the setting, in parallel.
// Engines share nothing, so the only coordination is the result slice.
func RunGrid(cfg Config, factory Factory, setting *OptimizationSetting, bars []model.Bar, workers int) []RunResult {
	combos := setting.generate()
	if workers <= 0 {
		workers = 4
	}

	results := make([]RunResult, len(combos))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = evaluate(cfg, factory, bars, combos[i], setting.Target)
			}
		}()
	}
	for i := range combos {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	sortResults(results)
	return results
}

// GeneticConfig tunes the evolutionary sweep.
type GeneticConfig struct {
	Population  int
	Generations int
	Mutation    float64
	Elite       int
	Seed        int64
	Workers     int
}

func (c GeneticConfig) withDefaults() GeneticConfig {
	if c.Population <= 0 {
		c.Population = 20
	}
	if c.Generations <= 0 {
		c.Generations = 10
	}
	if c.Mutation <= 0 {
		c.Mutation = 0.1
	}
	if c.Elite <= 0 {
		c.Elite = 2
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return c
}

// RunGenetic searches the parameter space evolutionarily instead of
// exhaustively. Every evaluated combination is returned, ranked; the
// seed makes a search reproducible.
func RunGenetic(cfg Config, factory Factory, setting *OptimizationSetting, bars []model.Bar, gc GeneticConfig) []RunResult {
	gc = gc.withDefaults()
	rng := rand.New(rand.NewSource(gc.Seed))

	if len(setting.order) == 0 {
		return nil
	}

	sample := func() map[string]any {
		combo := make(map[string]any, len(setting.order))
		for _, name := range setting.order {
			vals := setting.values[name]
			combo[name] = vals[rng.Intn(len(vals))]
		}
		return combo
	}

	cache := make(map[string]RunResult)
	var mu sync.Mutex

	evalAll := func(population []map[string]any) []RunResult {
		out := make([]RunResult, len(population))
		jobs := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < gc.Workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					key := comboKey(setting.order, population[i])
					mu.Lock()
					cached, ok := cache[key]
					mu.Unlock()
					if ok {
						out[i] = cached
						continue
					}
					r := evaluate(cfg, factory, bars, population[i], setting.Target)
					mu.Lock()
					cache[key] = r
					mu.Unlock()
					out[i] = r
				}
			}()
		}
		for i := range population {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
		return out
	}

	population := make([]map[string]any, gc.Population)
	for i := range population {
		population[i] = sample()
	}

	for gen := 0; gen < gc.Generations; gen++ {
		scored := evalAll(population)
		sortResults(scored)

		next := make([]map[string]any, 0, gc.Population)
		elite := gc.Elite
		if elite > len(scored) {
			elite = len(scored)
		}
		for i := 0; i < elite; i++ {
			next = append(next, scored[i].Setting)
		}
		half := len(scored) / 2
		if half < 1 {
			half = 1
		}
		for len(next) < gc.Population {
			a := scored[rng.Intn(half)].Setting
			b := scored[rng.Intn(half)].Setting
			child := make(map[string]any, len(setting.order))
			cut := rng.Intn(len(setting.order))
			for i, name := range setting.order {
				if i <= cut {
					child[name] = a[name]
				} else {
					child[name] = b[name]
				}
				if rng.Float64() < gc.Mutation {
					vals := setting.values[name]
					child[name] = vals[rng.Intn(len(vals))]
				}
			}
			next = append(next, child)
		}
		population = next
	}

	all := make([]RunResult, 0, len(cache))
	for _, r := range cache {
		all = append(all, r)
	}
	sortResults(all)
	return all
}

func evaluate(cfg Config, factory Factory, bars []model.Bar, combo map[string]any, target string) RunResult {
	result := RunResult{ID: uuid.NewString(), Setting: combo}

	strat := factory()
	if err := strat.ApplyParams(combo); err != nil {
		result.Err = err.Error()
		return result
	}
	eng, err := New(cfg, strat)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	eng.SetBars(bars)
	if err := eng.Run(); err != nil {
		result.Err = err.Error()
		return result
	}
	stats, err := ComputeStatistics(eng.Days(), cfg.Capital, cfg.RiskFree, cfg.AnnualDays)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	value, err := statValue(stats, target)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	result.Stats = &stats
	result.Statistic = &value
	return result
}

func statValue(s Statistics, target string) (float64, error) {
	switch target {
	case "sharpe":
		return s.Sharpe, nil
	case "total_return":
		return s.TotalReturn, nil
	case "annual_return":
		return s.AnnualReturn, nil
	case "end_balance":
		return s.EndBalance, nil
	case "total_net_pnl":
		return s.TotalNetPnL, nil
	case "max_drawdown":
		return s.MaxDrawdown, nil
	default:
		return 0, errors.Errorf("unknown target statistic: %s", target)
	}
}

func sortResults(results []RunResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return score(results[i]) > score(results[j])
	})
}

func score(r RunResult) float64 {
	if r.Statistic == nil {
		return math.Inf(-1)
	}
	return *r.Statistic
}

func comboKey(order []string, combo map[string]any) string {
	key := ""
	for _, name := range order {
		key += fmt.Sprintf("%s=%v;", name, combo[name])
	}
	return key
}
