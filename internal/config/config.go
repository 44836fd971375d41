package config

import (
	"arena-bot/internal/constants"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const (
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	StoreDriver      string
	DBPath           string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	PostgresURL      string
	ServerPort       string
	LogLevel         string
	PingTTL          time.Duration
	LeaderboardLimit int
	RoleWebhookURL   string
	RoleWebhookToken string
}

// Log writes the non-secret settings.
func (c *Config) Log(logger zerolog.Logger) {
	logger.Info().
		Str("store_driver", c.StoreDriver).
		Str("server_port", c.ServerPort).
		Str("log_level", c.LogLevel).
		Dur("ping_ttl", c.PingTTL).
		Int("leaderboard_limit", c.LeaderboardLimit).
		Bool("role_webhook", c.RoleWebhookURL != "").
		Msg("configuration loaded")
}

// Flags are command-line overrides supplied by cmd/server.
type Flags struct {
	EnvFile string
	Port    string
}

func Load(flags Flags) (*Config, error) {
	envFiles := []string{}
	if flags.EnvFile != "" {
		envFiles = append(envFiles, flags.EnvFile)
	}
	// a missing .env is fine, the environment and defaults still apply
	envErr := godotenv.Load(envFiles...)
	if envErr != nil && flags.EnvFile != "" {
		return nil, fmt.Errorf("failed to load env file %s: %w", flags.EnvFile, envErr)
	}

	cfg := &Config{
		StoreDriver:      getEnv("STORE_DRIVER", DriverSQLite),
		DBPath:           getEnv("DB_PATH", "arena.db"),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		PostgresURL:      getEnv("POSTGRES_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		PingTTL:          getEnvDuration("PING_TTL", constants.PingTTL),
		LeaderboardLimit: getEnvInt("LEADERBOARD_LIMIT", constants.DefaultLeaderboardLimit),
		RoleWebhookURL:   getEnv("ROLE_WEBHOOK_URL", ""),
		RoleWebhookToken: getEnv("ROLE_WEBHOOK_TOKEN", ""),
	}
	if flags.Port != "" {
		cfg.ServerPort = flags.Port
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite store")
		}
	case DriverRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis store")
		}
	case DriverPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required for the postgres store")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.PingTTL <= 0 {
		return fmt.Errorf("PING_TTL must be positive, got %s", c.PingTTL)
	}
	if c.LeaderboardLimit <= 0 || c.LeaderboardLimit > constants.MaxLeaderboardLimit {
		return fmt.Errorf("LEADERBOARD_LIMIT must be between 1 and %d", constants.MaxLeaderboardLimit)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

var Module = fx.Provide(Load)
