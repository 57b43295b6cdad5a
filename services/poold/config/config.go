package config

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen        = ":8085"
	defaultPoolConfig    = "./config.toml"
	defaultSweepInterval = time.Minute
	defaultPageSize      = 200
)

// Config captures the runtime settings for the pool daemon.
type Config struct {
	ListenAddress string          `yaml:"listen"`
	PoolConfig    string          `yaml:"pool_config"`
	TLS           TLSConfig       `yaml:"tls"`
	Auth          AuthConfig      `yaml:"auth"`
	Scheduler     SchedulerConfig `yaml:"scheduler"`
	Logging       LoggingConfig   `yaml:"logging"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
	Stream        StreamConfig    `yaml:"stream"`
	// Operator enables the fund and epoch-advance routes.
	Operator bool `yaml:"operator"`
}

// TLSConfig describes the TLS material for the HTTP server.
type TLSConfig struct {
	CertPath      string `yaml:"cert"`
	KeyPath       string `yaml:"key"`
	AllowInsecure bool   `yaml:"allow_insecure"`
}

// AuthConfig lists the credentials accepted on operator routes.
type AuthConfig struct {
	APITokens []string  `yaml:"api_tokens"`
	JWT       JWTConfig `yaml:"jwt"`
}

// JWTConfig enables HS256 bearer tokens. The secret is read from the named
// environment variable.
type JWTConfig struct {
	SecretEnv string        `yaml:"secret_env"`
	Issuer    string        `yaml:"issuer"`
	Audience  string        `yaml:"audience"`
	Leeway    time.Duration `yaml:"leeway"`
}

// SchedulerConfig drives background reward accrual.
type SchedulerConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Interval       time.Duration `yaml:"interval"`
	PageSize       int           `yaml:"page_size"`
	PagesPerSecond float64       `yaml:"pages_per_second"`
}

// LoggingConfig selects the log level and optional rotating file output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// TelemetryConfig configures OTLP export. Standard OTEL_* environment
// variables override the endpoint and headers at startup.
type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	Traces      bool    `yaml:"traces"`
	Metrics     bool    `yaml:"metrics"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// StreamConfig bounds the event replay history served over websocket.
type StreamConfig struct {
	History int `yaml:"history"`
	// OriginPatterns are the cross-origin hosts allowed to open the stream.
	// Empty accepts same-origin requests only.
	OriginPatterns []string `yaml:"origin_patterns"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: defaultListen,
		PoolConfig:    defaultPoolConfig,
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Interval: defaultSweepInterval,
			PageSize: defaultPageSize,
		},
	}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListen
	}
	cfg.PoolConfig = strings.TrimSpace(cfg.PoolConfig)
	if cfg.PoolConfig == "" {
		cfg.PoolConfig = defaultPoolConfig
	}
	cfg.TLS.CertPath = strings.TrimSpace(cfg.TLS.CertPath)
	cfg.TLS.KeyPath = strings.TrimSpace(cfg.TLS.KeyPath)

	tokens := make([]string, 0, len(cfg.Auth.APITokens))
	for _, token := range cfg.Auth.APITokens {
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			tokens = append(tokens, trimmed)
		}
	}
	cfg.Auth.APITokens = tokens
	cfg.Auth.JWT.SecretEnv = strings.TrimSpace(cfg.Auth.JWT.SecretEnv)
	cfg.Auth.JWT.Issuer = strings.TrimSpace(cfg.Auth.JWT.Issuer)
	cfg.Auth.JWT.Audience = strings.TrimSpace(cfg.Auth.JWT.Audience)

	if cfg.Scheduler.Interval <= 0 {
		cfg.Scheduler.Interval = defaultSweepInterval
	}
	if cfg.Scheduler.PageSize <= 0 {
		cfg.Scheduler.PageSize = defaultPageSize
	}
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.File = strings.TrimSpace(cfg.Logging.File)
	cfg.Telemetry.Endpoint = strings.TrimSpace(cfg.Telemetry.Endpoint)

	origins := make([]string, 0, len(cfg.Stream.OriginPatterns))
	for _, pattern := range cfg.Stream.OriginPatterns {
		if trimmed := strings.ToLower(strings.TrimSpace(pattern)); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	cfg.Stream.OriginPatterns = origins
}

func (cfg *Config) validate() error {
	if err := cfg.TLS.validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if err := cfg.Auth.validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if cfg.Scheduler.PagesPerSecond < 0 {
		return fmt.Errorf("scheduler: pages_per_second must not be negative")
	}
	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", cfg.Logging.Level)
	}
	if cfg.Logging.MaxSizeMB < 0 || cfg.Logging.MaxBackups < 0 || cfg.Logging.MaxAgeDays < 0 {
		return fmt.Errorf("logging: rotation limits must not be negative")
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample_ratio must be within [0, 1]")
	}
	if cfg.Stream.History < 0 {
		return fmt.Errorf("stream: history must not be negative")
	}
	for _, pattern := range cfg.Stream.OriginPatterns {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("stream: invalid origin pattern %q", pattern)
		}
	}
	return nil
}

func (cfg TLSConfig) validate() error {
	hasCert := cfg.CertPath != ""
	hasKey := cfg.KeyPath != ""
	if hasCert != hasKey {
		return fmt.Errorf("cert and key must either both be provided or both be empty")
	}
	if !cfg.AllowInsecure && !hasCert {
		return fmt.Errorf("cert and key are required unless allow_insecure=true")
	}
	return nil
}

// Enabled reports whether the server should terminate TLS.
func (cfg TLSConfig) Enabled() bool {
	return cfg.CertPath != "" && cfg.KeyPath != ""
}

func (cfg AuthConfig) validate() error {
	if len(cfg.APITokens) == 0 && cfg.JWT.SecretEnv == "" {
		return fmt.Errorf("at least one api token or jwt.secret_env must be configured")
	}
	if cfg.JWT.Leeway < 0 {
		return fmt.Errorf("jwt.leeway must not be negative")
	}
	return nil
}

// JWTSecret resolves the HS256 secret from the environment. An empty result
// with a configured variable is an error.
func (cfg JWTConfig) JWTSecret() (string, error) {
	if cfg.SecretEnv == "" {
		return "", nil
	}
	secret := strings.TrimSpace(os.Getenv(cfg.SecretEnv))
	if secret == "" {
		return "", fmt.Errorf("auth: environment variable %s is empty", cfg.SecretEnv)
	}
	return secret, nil
}
