package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Log        LogConfig
	EventStore EventStoreConfig
	Redis      RedisConfig
	Reactor    ReactorConfig
	Projector  ProjectorConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// EventStoreConfig selects and configures the event store backend
type EventStoreConfig struct {
	Driver string // memory, sqlite
	DSN    string // sqlite DSN, e.g. "ledger.db" or "file::memory:?cache=shared"
}

// RedisConfig holds Redis connection settings for the shared
// idempotency store. Only used when IdempotencyBackend is "redis".
type RedisConfig struct {
	Host               string
	Port               int
	Password           string
	DB                 int
	IdempotencyBackend string // memory, redis
}

// ReactorConfig holds retry behaviour for cross-aggregate reactors
type ReactorConfig struct {
	MaxAttempts    int
	BaseBackoff    time.Duration
	IdempotencyTTL time.Duration
}

// ProjectorConfig holds the reporting projector's polling settings
type ProjectorConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with LEDGER_ prefix (e.g., LEDGER_REDIS_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		EventStore: EventStoreConfig{
			Driver: v.GetString("eventstore.driver"),
			DSN:    v.GetString("eventstore.dsn"),
		},
		Redis: RedisConfig{
			Host:               v.GetString("redis.host"),
			Port:               v.GetInt("redis.port"),
			Password:           v.GetString("redis.password"),
			DB:                 v.GetInt("redis.db"),
			IdempotencyBackend: v.GetString("redis.idempotency_backend"),
		},
		Reactor: ReactorConfig{
			MaxAttempts:    v.GetInt("reactor.max_attempts"),
			BaseBackoff:    v.GetDuration("reactor.base_backoff"),
			IdempotencyTTL: v.GetDuration("reactor.idempotency_ttl"),
		},
		Projector: ProjectorConfig{
			BatchSize:    v.GetInt("projector.batch_size"),
			PollInterval: v.GetDuration("projector.poll_interval"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "ledgerd"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.EventStore.Driver == "" {
		cfg.EventStore.Driver = "memory"
	}
	if cfg.EventStore.DSN == "" {
		cfg.EventStore.DSN = "ledger.db"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.IdempotencyBackend == "" {
		cfg.Redis.IdempotencyBackend = "memory"
	}
	if cfg.Reactor.MaxAttempts == 0 {
		cfg.Reactor.MaxAttempts = 5
	}
	if cfg.Reactor.BaseBackoff == 0 {
		cfg.Reactor.BaseBackoff = 100 * time.Millisecond
	}
	if cfg.Reactor.IdempotencyTTL == 0 {
		cfg.Reactor.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Projector.BatchSize == 0 {
		cfg.Projector.BatchSize = 100
	}
	if cfg.Projector.PollInterval == 0 {
		cfg.Projector.PollInterval = time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.EventStore.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("eventstore.driver must be \"memory\" or \"sqlite\", got %q", c.EventStore.Driver)
	}

	switch c.Redis.IdempotencyBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("redis.idempotency_backend must be \"memory\" or \"redis\", got %q", c.Redis.IdempotencyBackend)
	}

	if c.Projector.BatchSize <= 0 {
		return fmt.Errorf("projector.batch_size must be positive")
	}
	if c.Reactor.MaxAttempts <= 0 {
		return fmt.Errorf("reactor.max_attempts must be positive")
	}

	// The durable backend is required once out of development
	if c.App.Env == "production" {
		if c.EventStore.Driver == "memory" {
			return fmt.Errorf("eventstore.driver \"memory\" is not allowed in production")
		}
		if c.Redis.IdempotencyBackend == "redis" && c.Redis.Password == "" {
			return fmt.Errorf("redis.password is required in production")
		}
	}

	return nil
}
