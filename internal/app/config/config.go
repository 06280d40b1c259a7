// Package config loads the daemon configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the full daemon configuration.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR,default=:8080"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
	LogJSON  bool   `env:"LOG_JSON,default=false"`

	// StoreBackend is one of memory, postgres, redis.
	StoreBackend  string `env:"STORE_BACKEND,default=memory"`
	DatabaseURL   string `env:"DATABASE_URL,default="`
	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD,default="`
	RedisDB       int    `env:"REDIS_DB,default=0"`

	// AuthSecret signs session tokens. API access is unauthenticated when
	// both the secret and the admin account are empty (local development).
	AuthSecret    string `env:"AUTH_SECRET,default="`
	AdminUser     string `env:"ADMIN_USER,default="`
	AdminPassword string `env:"ADMIN_PASSWORD,default="`

	// Simulated chain clock.
	GenesisHeight uint64        `env:"CHAIN_GENESIS_HEIGHT,default=0"`
	BlockInterval time.Duration `env:"CHAIN_BLOCK_INTERVAL,default=1s"`

	SweepSchedule string `env:"SWEEP_SCHEDULE,default=@every 1m"`

	// Per-sender request rate limiting.
	RateLimitPerSec float64 `env:"RATE_LIMIT_PER_SEC,default=10"`
	RateLimitBurst  int     `env:"RATE_LIMIT_BURST,default=20"`
}

// Load reads .env when present, then decodes the environment.
func Load() (Config, error) {
	_ = godotenv.Load() // allow .env for local runs

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.BlockInterval <= 0 {
		return fmt.Errorf("CHAIN_BLOCK_INTERVAL must be positive")
	}
	return nil
}
