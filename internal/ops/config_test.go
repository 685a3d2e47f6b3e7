package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model/enum"
)

func validConfig() FileConfig {
	return FileConfig{
		Registry: RegistryConfig{
			Venues: []VenueConfig{{Name: "SIM"}},
			Contracts: []ContractConfig{
				{Symbol: "BTCUSDT", Venue: "SIM", Size: 1, PriceTick: 0.1},
			},
		},
		Strategies: []StrategyConfig{
			{Name: "grid-btc", Class: "grid", Symbol: "BTCUSDT", Params: map[string]any{"step": 5.0}},
		},
		Store:  StoreConfig{Kind: "memory"},
		Engine: EngineConfig{QueueCapacity: 128, StaleAfterSec: 30, WarmupInterval: "1h"},
	}
}

func TestResolveValidConfig(t *testing.T) {
	loaded, err := Resolve(validConfig())
	require.NoError(t, err)

	assert.True(t, loaded.Contracts.HasVenue("SIM"))
	_, ok := loaded.Contracts.Contract("BTCUSDT")
	assert.True(t, ok)
	assert.Equal(t, 128, loaded.QueueCapacity)
	assert.Equal(t, 30*time.Second, loaded.StaleAfter)
	assert.Equal(t, enum.IntervalHour, loaded.WarmupInterval)
	require.Len(t, loaded.Strategies, 1)
}

func TestResolveDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Engine = EngineConfig{}
	loaded, err := Resolve(cfg)
	require.NoError(t, err)
	assert.Equal(t, 4096, loaded.QueueCapacity)
	assert.Equal(t, time.Duration(0), loaded.StaleAfter)
	assert.Equal(t, enum.IntervalMinute, loaded.WarmupInterval)
}

func TestResolveRejectsBadConfigs(t *testing.T) {
	for name, mutate := range map[string]func(*FileConfig){
		"unknown strategy symbol": func(c *FileConfig) { c.Strategies[0].Symbol = "NOPE" },
		"duplicate strategy": func(c *FileConfig) {
			c.Strategies = append(c.Strategies, c.Strategies[0])
		},
		"missing class":       func(c *FileConfig) { c.Strategies[0].Class = "" },
		"unknown venue":       func(c *FileConfig) { c.Registry.Contracts[0].Venue = "NOPE" },
		"bad warmup interval": func(c *FileConfig) { c.Engine.WarmupInterval = "7x" },
		"bad store kind":      func(c *FileConfig) { c.Store.Kind = "redis" },
		"file store no dir":   func(c *FileConfig) { c.Store = StoreConfig{Kind: "file"} },
		"bad history kind":    func(c *FileConfig) { c.History.Kind = "sqlite" },
		"csv history no dir":  func(c *FileConfig) { c.History = HistoryConfig{Kind: "csv"} },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			_, err := Resolve(cfg)
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	payload := `{
  "registry": {
    "venues": [{"name": "SIM"}],
    "contracts": [{"symbol": "BTCUSDT", "venue": "SIM", "size": 1}]
  },
  "strategies": [{"name": "a", "class": "grid", "symbol": "BTCUSDT"}],
  "engine": {"staleAfterSec": 10}
}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, loaded.StaleAfter)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
