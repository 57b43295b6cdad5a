package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pool.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NativeSymbol != "FTM" || cfg.Epoch.Source != "manual" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default file to be written: %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	params, err := again.PoolParams()
	if err != nil {
		t.Fatalf("pool params: %v", err)
	}
	if params.Limit.Limit.String() != "1/1" || params.Fee.Fee.String() != "0/1" {
		t.Fatalf("unexpected default params: %+v", params)
	}
}

func TestLoadParsesPoolSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.toml")
	contents := `DataDir = "./data"
NativeSymbol = "wftm"

[Epoch]
Source = "time"
LengthSeconds = 3600
Genesis = "2024-01-01T00:00:00Z"

[Pool]
InstantReward = "1/100"
EpochReward = "1/1000"
EpochMin = "1"
EpochMax = "25"
Fee = "1/2"
Limit = "1/2"

[Pauses]
liquidity = true

[Oracle.Prices]
WFTM = "3/2"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NativeSymbol != "WFTM" || cfg.NativeName != "WFTM" {
		t.Fatalf("expected normalised symbol, got %q/%q", cfg.NativeSymbol, cfg.NativeName)
	}
	params, err := cfg.PoolParams()
	if err != nil {
		t.Fatalf("pool params: %v", err)
	}
	if params.Reward.Instant.String() != "1/100" || params.Reward.Epoch.String() != "1/1000" {
		t.Fatalf("unexpected reward rates: %+v", params.Reward)
	}
	if params.Reward.EpochMin.Uint64() != 1 || params.Reward.EpochMax.Uint64() != 25 {
		t.Fatalf("unexpected clamps: %s %s", params.Reward.EpochMin.Dec(), params.Reward.EpochMax.Dec())
	}
	clock, err := cfg.EpochClock()
	if err != nil {
		t.Fatalf("epoch clock: %v", err)
	}
	if clock.Length.Hours() != 1 || clock.Genesis.Year() != 2024 {
		t.Fatalf("unexpected clock config %+v", clock)
	}
	if !cfg.Pauses["liquidity"] {
		t.Fatalf("expected liquidity pause to be set")
	}
	prices, err := cfg.OraclePrices()
	if err != nil {
		t.Fatalf("oracle prices: %v", err)
	}
	if prices["WFTM"].String() != "3/2" {
		t.Fatalf("unexpected oracle prices %+v", prices)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"zero denominator": func(c *Config) { c.Pool.Fee = "1/0" },
		"fraction clamp":   func(c *Config) { c.Pool.EpochMin = "1/2" },
		"bad rate":         func(c *Config) { c.Pool.Limit = "half" },
		"stable symbol":    func(c *Config) { c.NativeSymbol = "fusd" },
		"unknown source":   func(c *Config) { c.Epoch.Source = "block" },
		"missing genesis":  func(c *Config) { c.Epoch.Source = "time" },
		"zero price":       func(c *Config) { c.Oracle.Prices = map[string]string{"FTM": "0/1"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if err := ValidateConfig(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if err := ValidateConfig(Default()); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.toml")
	cfg := Default()
	cfg.Pool.Fee = "1/4"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), `Fee = "1/4"`) {
		t.Fatalf("expected fee in encoded config:\n%s", raw)
	}
}
