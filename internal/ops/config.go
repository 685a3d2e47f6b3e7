package ops

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"main/internal/model"
	"main/internal/model/enum"
)

// ErrUnknownKind rejects a backend selector the binary does not know.
var ErrUnknownKind = errors.New("unknown backend kind")

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Registry   RegistryConfig   `json:"registry"`
	Strategies []StrategyConfig `json:"strategies"`
	Store      StoreConfig      `json:"store"`
	Engine     EngineConfig     `json:"engine"`
	Feed       FeedConfig       `json:"feed"`
	History    HistoryConfig    `json:"history"`
}

// RegistryConfig defines venue and contract mappings.
type RegistryConfig struct {
	Venues    []VenueConfig    `json:"venues"`
	Contracts []ContractConfig `json:"contracts"`
}

// VenueConfig describes a venue entry.
type VenueConfig struct {
	Name string `json:"name"`
}

// ContractConfig describes a tradable contract.
type ContractConfig struct {
	Symbol     string  `json:"symbol"`
	Venue      string  `json:"venue"`
	Size       float64 `json:"size"`
	PriceTick  float64 `json:"priceTick"`
	NativeStop bool    `json:"nativeStop"`
}

// StrategyConfig describes one strategy instance to create at boot.
type StrategyConfig struct {
	Name      string         `json:"name"`
	Class     string         `json:"class"`
	Symbol    string         `json:"symbol"`
	Params    map[string]any `json:"params"`
	AutoStart bool           `json:"autoStart"`
}

// StoreConfig selects the settings persistence backend.
type StoreConfig struct {
	Kind string `json:"kind"` // memory | file | postgres
	Dir  string `json:"dir"`

	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// EngineConfig tunes the runtime.
type EngineConfig struct {
	QueueCapacity  int    `json:"queueCapacity"`
	StaleAfterSec  int    `json:"staleAfterSec"`
	WarmupInterval string `json:"warmupInterval"`
}

// FeedConfig selects the market data feed.
type FeedConfig struct {
	Kind       string   `json:"kind"` // ws | generator
	URL        string   `json:"url"`
	Symbols    []string `json:"symbols"`
	IntervalMs int      `json:"intervalMs"`
	Seed       int64    `json:"seed"`
}

// HistoryConfig selects the historical bar source used for warmup.
type HistoryConfig struct {
	Kind string `json:"kind"` // none | csv | clickhouse
	Dir  string `json:"dir"`

	Addr     string `json:"addr"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	Table    string `json:"table"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Contracts  *model.ContractRegistry
	Strategies []StrategyConfig
	Store      StoreConfig
	Feed       FeedConfig
	History    HistoryConfig

	QueueCapacity  int
	StaleAfter     time.Duration
	WarmupInterval enum.Interval
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return Resolve(cfg)
}

// Resolve validates a parsed config and builds the contract registry.
func Resolve(cfg FileConfig) (Loaded, error) {
	contracts, err := buildContracts(cfg.Registry)
	if err != nil {
		return Loaded{}, err
	}
	if err := validateStrategies(cfg.Strategies, contracts); err != nil {
		return Loaded{}, err
	}
	if err := validateStore(cfg.Store); err != nil {
		return Loaded{}, err
	}
	if err := validateHistory(cfg.History); err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{
		Contracts:      contracts,
		Strategies:     cfg.Strategies,
		Store:          cfg.Store,
		Feed:           cfg.Feed,
		History:        cfg.History,
		QueueCapacity:  cfg.Engine.QueueCapacity,
		StaleAfter:     time.Duration(cfg.Engine.StaleAfterSec) * time.Second,
		WarmupInterval: enum.IntervalMinute,
	}
	if loaded.QueueCapacity <= 0 {
		loaded.QueueCapacity = 4096
	}
	if cfg.Engine.WarmupInterval != "" {
		interval, ok := enum.ParseInterval(cfg.Engine.WarmupInterval)
		if !ok {
			return Loaded{}, fmt.Errorf("unknown warmup interval: %s", cfg.Engine.WarmupInterval)
		}
		loaded.WarmupInterval = interval
	}
	return loaded, nil
}

func buildContracts(cfg RegistryConfig) (*model.ContractRegistry, error) {
	reg := model.NewContractRegistry()
	for _, venue := range cfg.Venues {
		if err := reg.AddVenue(venue.Name); err != nil {
			return nil, err
		}
	}
	for _, c := range cfg.Contracts {
		if c.PriceTick < 0 || c.Size < 0 {
			return nil, fmt.Errorf("invalid contract %s: negative size or tick", c.Symbol)
		}
		if err := reg.AddContract(model.ContractSpec{
			Symbol:     c.Symbol,
			Venue:      c.Venue,
			Size:       c.Size,
			PriceTick:  c.PriceTick,
			NativeStop: c.NativeStop,
		}); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func validateStrategies(strategies []StrategyConfig, contracts *model.ContractRegistry) error {
	seen := make(map[string]struct{}, len(strategies))
	for _, s := range strategies {
		if s.Name == "" || s.Class == "" {
			return fmt.Errorf("strategy needs a name and a class: %+v", s)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("duplicate strategy name: %s", s.Name)
		}
		seen[s.Name] = struct{}{}
		if _, ok := contracts.Contract(s.Symbol); !ok {
			return fmt.Errorf("strategy %s: unknown symbol %s", s.Name, s.Symbol)
		}
	}
	return nil
}

func validateStore(cfg StoreConfig) error {
	switch cfg.Kind {
	case "", "memory":
		return nil
	case "file":
		if cfg.Dir == "" {
			return fmt.Errorf("file store needs a dir")
		}
		return nil
	case "postgres":
		if cfg.Database == "" {
			return fmt.Errorf("postgres store needs a database")
		}
		return nil
	default:
		return fmt.Errorf("unknown store kind: %s", cfg.Kind)
	}
}

func validateHistory(cfg HistoryConfig) error {
	switch cfg.Kind {
	case "", "none":
		return nil
	case "csv":
		if cfg.Dir == "" {
			return fmt.Errorf("csv history needs a dir")
		}
		return nil
	case "clickhouse":
		if cfg.Addr == "" {
			return fmt.Errorf("clickhouse history needs an addr")
		}
		return nil
	default:
		return fmt.Errorf("unknown history kind: %s", cfg.Kind)
	}
}
