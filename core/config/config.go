package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot transport settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// BotName restricts "/cmd@name" commands to this bot when set.
	BotName string `yaml:"bot_name" envconfig:"TELEGRAM_BOT_NAME"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig holds the per-user minimum interval between messages.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
}

// PostgresConfig holds postgres connection settings for the SQL state store.
type PostgresConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// RedisConfig holds redis settings for the key-value state store.
type RedisConfig struct {
	URL       string `yaml:"url" envconfig:"REDIS_URL"`
	KeyPrefix string `yaml:"key_prefix" envconfig:"REDIS_KEY_PREFIX"`
}

// StorageConfig selects and configures the dialogue state store.
type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
	// Path is the sqlite database file.
	Path        string         `yaml:"path" envconfig:"STORAGE_PATH"`
	OpTimeoutMS int            `yaml:"op_timeout_ms" envconfig:"STORAGE_OP_TIMEOUT_MS"`
	Postgres    PostgresConfig `yaml:"postgres"`
	Redis       RedisConfig    `yaml:"redis"`
}

// DispatchConfig tunes the inbound message dispatcher.
type DispatchConfig struct {
	Workers          int `yaml:"workers" envconfig:"DISPATCH_WORKERS"`
	QueueSize        int `yaml:"queue_size" envconfig:"DISPATCH_QUEUE_SIZE"`
	MessageTimeoutMS int `yaml:"message_timeout_ms" envconfig:"DISPATCH_MESSAGE_TIMEOUT_MS"`
}

// MetricsConfig controls the Prometheus endpoint; an empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// DriverSQLite stores dialogues in a local sqlite file.
	DriverSQLite = "sqlite"
	// DriverPostgres stores dialogues in postgres.
	DriverPostgres = "postgres"
	// DriverRedis stores dialogues in redis.
	DriverRedis = "redis"
	// DriverMemory keeps dialogues in process memory; state is lost on restart.
	DriverMemory = "memory"
)

const (
	defaultSQLitePath       = "db.sqlite"
	defaultOpTimeoutMS      = 5000
	defaultWorkers          = 16
	defaultQueueSize        = 64
	defaultMessageTimeoutMS = 30000
	defaultRedisKeyPrefix   = "numbot:dialogue:"
)

// Config aggregates the application configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Storage   StorageConfig   `yaml:"storage"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Load reads configuration from a YAML file, a local .env file and environment variables.
// A missing YAML file is tolerated so the bot can run from environment alone.
func Load(path string) (*Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" || rm == "polling" {
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm
	cfg.Telegram.BotName = strings.TrimPrefix(strings.TrimSpace(cfg.Telegram.BotName), "@")

	if cfg.RateLimit.IntervalMS < 0 {
		return fmt.Errorf("rate_limit.interval_ms must be >= 0")
	}

	if err := normalizeStorage(&cfg.Storage); err != nil {
		return err
	}

	if cfg.Dispatch.Workers < 0 || cfg.Dispatch.QueueSize < 0 || cfg.Dispatch.MessageTimeoutMS < 0 {
		return fmt.Errorf("dispatch settings must be >= 0")
	}
	if cfg.Dispatch.Workers == 0 {
		cfg.Dispatch.Workers = defaultWorkers
	}
	if cfg.Dispatch.QueueSize == 0 {
		cfg.Dispatch.QueueSize = defaultQueueSize
	}
	if cfg.Dispatch.MessageTimeoutMS == 0 {
		cfg.Dispatch.MessageTimeoutMS = defaultMessageTimeoutMS
	}
	cfg.Metrics.Listen = strings.TrimSpace(cfg.Metrics.Listen)
	return nil
}

func normalizeStorage(s *StorageConfig) error {
	driver := strings.ToLower(strings.TrimSpace(s.Driver))
	if driver == "" || driver == "sqlite3" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverSQLite:
		if strings.TrimSpace(s.Path) == "" {
			s.Path = defaultSQLitePath
		}
	case DriverPostgres:
		if strings.TrimSpace(s.Postgres.Host) == "" || strings.TrimSpace(s.Postgres.Name) == "" {
			return fmt.Errorf("storage.postgres.host and storage.postgres.name are required for the postgres driver")
		}
		if s.Postgres.Port == "" {
			s.Postgres.Port = "5432"
		}
		if s.Postgres.SSLMode == "" {
			s.Postgres.SSLMode = "disable"
		}
		if s.Postgres.MaxConnections <= 0 {
			s.Postgres.MaxConnections = 10
		}
	case DriverRedis:
		if strings.TrimSpace(s.Redis.URL) == "" {
			return fmt.Errorf("storage.redis.url is required for the redis driver")
		}
		if s.Redis.KeyPrefix == "" {
			s.Redis.KeyPrefix = defaultRedisKeyPrefix
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: sqlite, postgres, redis, memory", s.Driver)
	}
	s.Driver = driver

	if s.OpTimeoutMS < 0 {
		return fmt.Errorf("storage.op_timeout_ms must be >= 0")
	}
	if s.OpTimeoutMS == 0 {
		s.OpTimeoutMS = defaultOpTimeoutMS
	}
	return nil
}
