package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	MaxWebSocketConnections int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`

	// MaxPollTTL caps expires_in on poll creation.
	MaxPollTTL time.Duration `env:"MAX_POLL_TTL" default:"24h"`

	SimulatorInterval time.Duration `env:"SIMULATOR_INTERVAL" default:"15s"`
	SweeperInterval   time.Duration `env:"SWEEPER_INTERVAL" default:"30s"`
	SyntheticPoolSize int           `env:"SYNTHETIC_POOL_SIZE" default:"50"`

	// Token bucket for write endpoints, keyed by session token.
	VoteRateCapacity  int `env:"VOTE_RATE_CAPACITY" default:"10"`
	VoteRatePerMinute int `env:"VOTE_RATE_PER_MINUTE" default:"30"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"REDIS_URL":    cfg.RedisURL,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.MaxPollTTL <= 0 {
		return fmt.Errorf("MAX_POLL_TTL must be positive")
	}
	if cfg.SyntheticPoolSize <= 0 {
		return fmt.Errorf("SYNTHETIC_POOL_SIZE must be positive")
	}
	if cfg.VoteRateCapacity <= 0 || cfg.VoteRatePerMinute <= 0 {
		return fmt.Errorf("vote rate limit settings must be positive")
	}

	return nil
}
