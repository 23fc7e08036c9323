package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application's configuration values.
type Config struct {
	Server   ServerConfig
	Database DBConfig
	Redis    RedisConfig
	Worker   WorkerConfig
	Webhook  WebhookConfig
	Enrich   EnrichConfig
	Logging  LogConfig
}

// ServerConfig configures the HTTP intake process.
type ServerConfig struct {
	Port      string
	AuthToken string
}

// DBConfig configures the Postgres connection.
type DBConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig configures the queue substrate.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// WorkerConfig configures the consumer process.
type WorkerConfig struct {
	Count       int
	PollTimeout time.Duration
}

// WebhookConfig configures outbound delivery.
type WebhookConfig struct {
	Secret  string
	Timeout time.Duration
}

// EnrichConfig configures the rate limiter and cache guarding the
// suggestion collaborator.
type EnrichConfig struct {
	RequestsPerSecond float64
	Burst             int
	CacheTTL          time.Duration
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// LoadConfig reads configuration from environment variables and a .env file,
// sets sensible defaults, and validates required fields. It uses the Viper
// library to handle configuration loading and precedence.
func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("LOG_OUTPUT", "stdout")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USER", "csvflow")
	viper.SetDefault("DB_NAME", "csvflow")
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	viper.SetDefault("DB_CONN_MAX_IDLE_TIME", "5m")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("WORKER_COUNT", 5)
	viper.SetDefault("WORKER_POLL_TIMEOUT", "2s")
	viper.SetDefault("WEBHOOK_TIMEOUT", "30s")
	viper.SetDefault("ENRICH_REQUESTS_PER_SECOND", 2.0)
	viper.SetDefault("ENRICH_BURST", 5)
	viper.SetDefault("ENRICH_CACHE_TTL", "10m")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// A missing .env file is fine; a broken one is not.
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if viper.GetString("WEBHOOK_SECRET") == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRET must be set")
	}
	if viper.GetString("DB_PASSWORD") == "" {
		return nil, fmt.Errorf("DB_PASSWORD must be set")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("SERVER_PORT"),
			AuthToken: viper.GetString("SERVER_AUTH_TOKEN"),
		},
		Database: DBConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			Username:        viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Database:        viper.GetString("DB_NAME"),
			ConnMaxLifetime: viper.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: viper.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Worker: WorkerConfig{
			Count:       viper.GetInt("WORKER_COUNT"),
			PollTimeout: viper.GetDuration("WORKER_POLL_TIMEOUT"),
		},
		Webhook: WebhookConfig{
			Secret:  viper.GetString("WEBHOOK_SECRET"),
			Timeout: viper.GetDuration("WEBHOOK_TIMEOUT"),
		},
		Enrich: EnrichConfig{
			RequestsPerSecond: viper.GetFloat64("ENRICH_REQUESTS_PER_SECOND"),
			Burst:             viper.GetInt("ENRICH_BURST"),
			CacheTTL:          viper.GetDuration("ENRICH_CACHE_TTL"),
		},
		Logging: LogConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
			Output: viper.GetString("LOG_OUTPUT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that viper defaults cannot express.
func (c *Config) Validate() error {
	if c.Worker.Count <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive, got %d", c.Worker.Count)
	}
	if c.Enrich.RequestsPerSecond <= 0 {
		return fmt.Errorf("ENRICH_REQUESTS_PER_SECOND must be positive, got %v", c.Enrich.RequestsPerSecond)
	}
	if c.Enrich.Burst <= 0 {
		return fmt.Errorf("ENRICH_BURST must be positive, got %d", c.Enrich.Burst)
	}
	return nil
}
