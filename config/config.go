package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"fusdpool/core/epoch"
	"fusdpool/native/liquidity"
)

// Config is the on-disk pool configuration shared by the daemon and the CLI.
type Config struct {
	DataDir        string          `toml:"DataDir"`
	NativeSymbol   string          `toml:"NativeSymbol"`
	NativeName     string          `toml:"NativeName"`
	NativeDecimals uint8           `toml:"NativeDecimals"`
	Epoch          EpochConfig     `toml:"Epoch"`
	Pool           PoolConfig      `toml:"Pool"`
	Pauses         map[string]bool `toml:"Pauses"`
	Oracle         OracleConfig    `toml:"Oracle"`
}

// EpochConfig selects the epoch clock.
type EpochConfig struct {
	Source        string `toml:"Source"`
	LengthSeconds uint64 `toml:"LengthSeconds"`
	Genesis       string `toml:"Genesis"`
}

// PoolConfig holds the parameters written to state the first time the pool
// is opened. Rates use the "numerator/denominator" text form.
type PoolConfig struct {
	InstantReward string `toml:"InstantReward"`
	EpochReward   string `toml:"EpochReward"`
	EpochMin      string `toml:"EpochMin"`
	EpochMax      string `toml:"EpochMax"`
	Fee           string `toml:"Fee"`
	Limit         string `toml:"Limit"`
}

// OracleConfig configures static prices. An empty price table disables the
// oracle and deposits convert 1:1.
type OracleConfig struct {
	Prices map[string]string `toml:"Prices"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written by createDefault.
func Default() *Config {
	cfg := &Config{
		DataDir:        "./fusd-data",
		NativeSymbol:   "FTM",
		NativeName:     "Fantom",
		NativeDecimals: 18,
		Epoch:          EpochConfig{Source: epoch.SourceManual, LengthSeconds: 86400},
		Pool: PoolConfig{
			InstantReward: "0/1",
			EpochReward:   "0/1",
			EpochMin:      "0",
			EpochMax:      "0",
			Fee:           "0/1",
			Limit:         "1/1",
		},
		Pauses: map[string]bool{},
		Oracle: OracleConfig{Prices: map[string]string{}},
	}
	return cfg
}

func (c *Config) applyDefaults() {
	def := Default()
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = def.DataDir
	}
	c.NativeSymbol = strings.ToUpper(strings.TrimSpace(c.NativeSymbol))
	if c.NativeSymbol == "" {
		c.NativeSymbol = def.NativeSymbol
	}
	if strings.TrimSpace(c.NativeName) == "" {
		c.NativeName = c.NativeSymbol
	}
	if strings.TrimSpace(c.Epoch.Source) == "" {
		c.Epoch.Source = def.Epoch.Source
	}
	if c.Epoch.LengthSeconds == 0 {
		c.Epoch.LengthSeconds = def.Epoch.LengthSeconds
	}
	fill := func(dst *string, fallback string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = fallback
		}
	}
	fill(&c.Pool.InstantReward, def.Pool.InstantReward)
	fill(&c.Pool.EpochReward, def.Pool.EpochReward)
	fill(&c.Pool.EpochMin, def.Pool.EpochMin)
	fill(&c.Pool.EpochMax, def.Pool.EpochMax)
	fill(&c.Pool.Fee, def.Pool.Fee)
	fill(&c.Pool.Limit, def.Pool.Limit)
	pauses := make(map[string]bool, len(c.Pauses))
	for module, paused := range c.Pauses {
		pauses[strings.ToLower(strings.TrimSpace(module))] = paused
	}
	c.Pauses = pauses
	if c.Oracle.Prices == nil {
		c.Oracle.Prices = map[string]string{}
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path in TOML form.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config must not be nil")
	}
	return persist(path, cfg)
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// EpochClock converts the epoch section into the clock configuration.
func (c *Config) EpochClock() (epoch.Config, error) {
	out := epoch.Config{
		Source: strings.ToLower(strings.TrimSpace(c.Epoch.Source)),
		Length: time.Duration(c.Epoch.LengthSeconds) * time.Second,
	}
	if genesis := strings.TrimSpace(c.Epoch.Genesis); genesis != "" {
		ts, err := time.Parse(time.RFC3339, genesis)
		if err != nil {
			return epoch.Config{}, fmt.Errorf("epoch: invalid Genesis %q: %w", genesis, err)
		}
		out.Genesis = ts
	}
	return out, out.Validate()
}

// PoolParams holds the parsed initial pool parameters.
type PoolParams struct {
	Reward liquidity.RewardConfig
	Fee    liquidity.FeeConfig
	Limit  liquidity.LimitConfig
}

// PoolParams parses the pool section.
func (c *Config) PoolParams() (PoolParams, error) {
	var out PoolParams
	var err error
	if out.Reward.Instant, err = parseRate("InstantReward", c.Pool.InstantReward); err != nil {
		return PoolParams{}, err
	}
	if out.Reward.Epoch, err = parseRate("EpochReward", c.Pool.EpochReward); err != nil {
		return PoolParams{}, err
	}
	floor, err := parseClamp("EpochMin", c.Pool.EpochMin)
	if err != nil {
		return PoolParams{}, err
	}
	ceiling, err := parseClamp("EpochMax", c.Pool.EpochMax)
	if err != nil {
		return PoolParams{}, err
	}
	out.Reward.EpochMin = floor.Numerator
	out.Reward.EpochMax = ceiling.Numerator
	if out.Fee.Fee, err = parseRate("Fee", c.Pool.Fee); err != nil {
		return PoolParams{}, err
	}
	if out.Limit.Limit, err = parseRate("Limit", c.Pool.Limit); err != nil {
		return PoolParams{}, err
	}
	if err := out.Reward.Validate(); err != nil {
		return PoolParams{}, fmt.Errorf("pool: %w", err)
	}
	if err := out.Fee.Validate(); err != nil {
		return PoolParams{}, fmt.Errorf("pool: %w", err)
	}
	if err := out.Limit.Validate(); err != nil {
		return PoolParams{}, fmt.Errorf("pool: %w", err)
	}
	return out, nil
}

// OraclePrices parses the static price table. A nil map means no oracle.
func (c *Config) OraclePrices() (map[string]liquidity.Rate, error) {
	if len(c.Oracle.Prices) == 0 {
		return nil, nil
	}
	out := make(map[string]liquidity.Rate, len(c.Oracle.Prices))
	for symbol, raw := range c.Oracle.Prices {
		price, err := parseRate("Oracle.Prices."+symbol, raw)
		if err != nil {
			return nil, err
		}
		if err := price.Validate(); err != nil {
			return nil, fmt.Errorf("oracle: price for %s: %w", symbol, err)
		}
		if price.IsZero() {
			return nil, fmt.Errorf("oracle: price for %s must be positive", symbol)
		}
		out[strings.ToUpper(strings.TrimSpace(symbol))] = price
	}
	return out, nil
}

func parseRate(field, raw string) (liquidity.Rate, error) {
	rate, err := liquidity.ParseRate(raw)
	if err != nil {
		return liquidity.Rate{}, fmt.Errorf("pool: invalid %s: %w", field, err)
	}
	return rate, nil
}

func parseClamp(field, raw string) (liquidity.Rate, error) {
	if strings.Contains(raw, "/") {
		return liquidity.Rate{}, fmt.Errorf("pool: %s must be an integer amount", field)
	}
	return parseRate(field, raw)
}
