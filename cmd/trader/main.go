package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/feed"
	"main/internal/gateway"
	"main/internal/history"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/runtime"
	"main/internal/store"
	"main/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config.json", "path to JSON config")
	profileAddr := flag.String("pyroscope", "", "pyroscope server address (empty disables profiling)")
	metricsInterval := flag.Duration("metrics-interval", time.Minute, "metrics snapshot log interval (0 disables)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *profileAddr, *metricsInterval); err != nil {
		logs.Errorf("trader exited, err: %+v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, profileAddr string, metricsInterval time.Duration) error {
	loaded, err := ops.Load(configPath)
	if err != nil {
		return err
	}

	if profileAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trader",
			ServerAddress:   profileAddr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return err
		}
		defer func() { _ = profiler.Stop() }()
	}

	settings, err := buildStore(loaded.Store)
	if err != nil {
		return err
	}
	defer settings.Close()

	bars, err := buildHistory(ctx, loaded)
	if err != nil {
		return err
	}
	defer bars.Close()

	registry := strategy.NewRegistry()
	if err := registry.Register("grid", strategy.NewGrid); err != nil {
		return err
	}
	if err := registry.Register("donchian", strategy.NewDonchian); err != nil {
		return err
	}

	queue := bus.New(loaded.QueueCapacity)
	go queue.Run(ctx)
	defer queue.Close()

	metrics := obs.NewMetrics()

	sims := make(map[string]*gateway.Sim)
	gateways := make([]gateway.Gateway, 0)
	for _, venue := range loaded.Contracts.Venues() {
		sim := gateway.NewSim(venue)
		sims[venue] = sim
		gateways = append(gateways, sim)
	}

	engine, err := runtime.New(runtime.Options{
		Bus:            queue,
		Metrics:        metrics,
		Contracts:      loaded.Contracts,
		Registry:       registry,
		Store:          settings,
		History:        bars,
		Converter:      runtime.Passthrough{},
		Gateways:       gateways,
		StaleAfter:     loaded.StaleAfter,
		WarmupInterval: loaded.WarmupInterval,
	})
	if err != nil {
		return err
	}
	for _, sim := range sims {
		if err := sim.Connect(ctx); err != nil {
			return err
		}
	}
	engine.Run(ctx)

	if err := bootInstances(engine, loaded.Strategies); err != nil {
		return err
	}

	if err := queue.Subscribe(enum.TopicStrategy, func(e bus.Event) {
		logs.Infof("strategy status: %+v", e.Data)
	}); err != nil {
		return err
	}

	if metricsInterval > 0 {
		go logMetrics(ctx, metrics, metricsInterval)
	}

	aggregator := feed.NewBarAggregator(loaded.WarmupInterval, engine.ProcessBar)
	onTick := func(tick model.Tick) {
		engine.ProcessTick(tick)
		aggregator.OnTick(tick)
		if sim, ok := sims[tick.Venue]; ok {
			sim.OnTick(tick)
			sim.Drain()
		}
	}

	if err := runFeed(ctx, loaded, onTick); err != nil {
		return err
	}

	logs.Info("shutting down")
	return nil
}

func bootInstances(engine *runtime.Engine, strategies []ops.StrategyConfig) error {
	for _, s := range strategies {
		if err := engine.AddInstance(s.Name, s.Class, s.Symbol, s.Params); err != nil {
			return err
		}
		if !s.AutoStart {
			if err := engine.Init(s.Name); err != nil {
				return err
			}
			continue
		}
		if err := engine.InitSync(s.Name); err != nil {
			return err
		}
		if err := engine.Start(s.Name); err != nil {
			return err
		}
		logs.Infof("strategy started: %s (%s on %s)", s.Name, s.Class, s.Symbol)
	}
	return nil
}

func buildStore(cfg ops.StoreConfig) (store.Store, error) {
	switch cfg.Kind {
	case "", "memory":
		return store.NewMemory(), nil
	case "file":
		return store.NewFile(cfg.Dir)
	case "postgres":
		return store.NewDB(store.DBOption{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			Database: cfg.Database,
		})
	default:
		return nil, ops.ErrUnknownKind
	}
}

func buildHistory(ctx context.Context, loaded ops.Loaded) (history.Source, error) {
	venue := ""
	if venues := loaded.Contracts.Venues(); len(venues) > 0 {
		venue = venues[0]
	}
	cfg := loaded.History
	switch cfg.Kind {
	case "", "none":
		return history.NewMemory(nil), nil
	case "csv":
		return history.NewCSV(cfg.Dir, venue)
	case "clickhouse":
		return history.NewClickHouse(ctx, history.ClickHouseOption{
			Addr:     cfg.Addr,
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
			Venue:    venue,
			Table:    cfg.Table,
		})
	default:
		return nil, ops.ErrUnknownKind
	}
}

func runFeed(ctx context.Context, loaded ops.Loaded, onTick feed.Handler) error {
	cfg := loaded.Feed
	switch cfg.Kind {
	case "", "generator":
		gen, err := feed.NewGenerator(loaded.Contracts, cfg.Seed, 100, 0)
		if err != nil {
			return err
		}
		interval := time.Duration(cfg.IntervalMs) * time.Millisecond
		gen.Run(ctx, interval, onTick)
		return nil
	case "ws":
		venue := loaded.Contracts.Venues()[0]
		stream := feed.NewStream(ctx, cfg.URL, venue)
		defer stream.Close()
		if err := stream.Start(ctx); err != nil {
			return err
		}
		if err := stream.Subscribe(ctx, cfg.Symbols); err != nil {
			return err
		}
		unsubscribe := stream.Observe(ctx, onTick)
		defer unsubscribe()
		<-ctx.Done()
		return nil
	default:
		return ops.ErrUnknownKind
	}
}

func logMetrics(ctx context.Context, metrics *obs.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := metrics.Snapshot()
			logs.Infof("metrics: topics=%v faults=%d stops=%d orders=%d drops=%d closed=%d dispatch=%+v",
				snapshot.TopicCounts, snapshot.Faults, snapshot.StopTriggers,
				snapshot.OrdersSent, snapshot.QueueDrops, snapshot.QueueClosed,
				snapshot.DispatchLatency)
		}
	}
}
