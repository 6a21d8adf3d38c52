// Package config loads the engine configuration from a YAML file
// layered with .env and process environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Engine   EngineConfig   `yaml:"engine"`
	Stream   StreamConfig   `yaml:"stream"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Storage  StorageConfig  `yaml:"storage"`
	Telegram TelegramConfig `yaml:"telegram"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ProviderConfig identifies the upstream data stream.
type ProviderConfig struct {
	BaseURL         string  `yaml:"base_url"`
	APIKey          string  `yaml:"api_key"`
	SolPriceHint    float64 `yaml:"sol_price_hint"`
	TokenSupplyHint float64 `yaml:"token_supply_hint"`
}

type EngineConfig struct {
	RefreshIntervalSeconds int `yaml:"refresh_interval_seconds"`
	Workers                int `yaml:"workers"`
	RecentEventsCap        int `yaml:"recent_events_cap"`
}

// RefreshInterval returns the profile reload cadence.
func (c EngineConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

type StreamConfig struct {
	ReconnectDelayMS        int `yaml:"reconnect_delay_ms"`
	MaxReconnectAttempts    int `yaml:"max_reconnect_attempts"`
	PingIntervalSeconds     int `yaml:"ping_interval_seconds"`
	WriteTimeoutSeconds     int `yaml:"write_timeout_seconds"`
	HandshakeTimeoutSeconds int `yaml:"handshake_timeout_seconds"`
	ReadTimeoutSeconds      int `yaml:"read_timeout_seconds"`
}

func (c StreamConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMS) * time.Millisecond
}

func (c StreamConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalSeconds) * time.Second
}

func (c StreamConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

func (c StreamConfig) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutSeconds) * time.Second
}

func (c StreamConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

type DispatchConfig struct {
	RatePerSecond  float64            `yaml:"rate_per_second"`
	RateBurst      int                `yaml:"rate_burst"`
	DryRunDelayMS  int                `yaml:"dry_run_delay_ms"`
	WalletBalances map[string]float64 `yaml:"wallet_balances"`
}

// DryRunDelay returns the artificial fill latency for paper trading.
func (c DispatchConfig) DryRunDelay() time.Duration {
	return time.Duration(c.DryRunDelayMS) * time.Millisecond
}

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type StorageConfig struct {
	Backend    string           `yaml:"backend"` // memory | postgres
	Postgres   PostgresConfig   `yaml:"postgres"`
	Clickhouse ClickhouseConfig `yaml:"clickhouse"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// ClickhouseConfig controls the append-only archive. It is independent
// of the profile backend; memory-backed runs may still archive.
type ClickhouseConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chat_id"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// Load reads the YAML file at path and layers overrides on top: first
// .env (which never overrides variables already set), then the process
// environment. An empty path skips the file and configures from
// defaults and environment alone.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			RefreshIntervalSeconds: 15,
			Workers:                4,
			RecentEventsCap:        250,
		},
		Stream: StreamConfig{
			ReconnectDelayMS:        3000,
			MaxReconnectAttempts:    10,
			PingIntervalSeconds:     30,
			WriteTimeoutSeconds:     10,
			HandshakeTimeoutSeconds: 10,
			ReadTimeoutSeconds:      60,
		},
		Dispatch: DispatchConfig{
			RatePerSecond: 5,
			RateBurst:     10,
		},
		Storage: StorageConfig{Backend: BackendMemory},
		Metrics: MetricsConfig{Enabled: true, Listen: ":9090"},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("PROVIDER_API_KEY"); v != "" {
		cfg.Provider.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = strings.TrimSpace(v)
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.Clickhouse.DSN = strings.TrimSpace(v)
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = strings.TrimSpace(v)
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("provider.api_key is required")
	}

	if cfg.Engine.Workers <= 0 {
		return fmt.Errorf("engine.workers must be greater than 0")
	}
	if cfg.Engine.RefreshIntervalSeconds <= 0 {
		return fmt.Errorf("engine.refresh_interval_seconds must be greater than 0")
	}

	if cfg.Stream.ReconnectDelayMS <= 0 {
		return fmt.Errorf("stream.reconnect_delay_ms must be greater than 0")
	}
	if cfg.Stream.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("stream.max_reconnect_attempts must be greater than 0")
	}
	if cfg.Stream.PingIntervalSeconds <= 0 {
		return fmt.Errorf("stream.ping_interval_seconds must be greater than 0")
	}

	if cfg.Dispatch.RatePerSecond <= 0 {
		return fmt.Errorf("dispatch.rate_per_second must be greater than 0")
	}
	if cfg.Dispatch.RateBurst <= 0 {
		return fmt.Errorf("dispatch.rate_burst must be greater than 0")
	}

	switch cfg.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required when backend is postgres")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", cfg.Storage.Backend)
	}

	if cfg.Storage.Clickhouse.Enabled && cfg.Storage.Clickhouse.DSN == "" {
		return fmt.Errorf("storage.clickhouse.dsn is required when the archive is enabled")
	}

	if cfg.Telegram.Enabled {
		if cfg.Telegram.Token == "" {
			return fmt.Errorf("telegram.token is required when telegram is enabled")
		}
		if cfg.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics are enabled")
	}

	return nil
}
