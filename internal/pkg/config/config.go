package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	APIPrefix string `env:"API_PREFIX, default=/api"`

	Auth  AuthConfig
	Mongo MongoConfig
	Redis RedisConfig
}

type AuthConfig struct {
	TokenTTL          time.Duration `env:"TOKEN_TTL,            default=24h"`
	PasswordMinLength int           `env:"PASSWORD_MIN_LENGTH,  default=6"`
	BcryptCost        int           `env:"BCRYPT_COST,          default=10"`

	// Per-account lockout after repeated failed logins (Redis).
	LoginMaxFailures   int           `env:"LOGIN_MAX_FAILURES,   default=5"`
	LoginFailureWindow time.Duration `env:"LOGIN_FAILURE_WINDOW, default=15m"`

	// Per-client request rate on the login route.
	LoginRatePerSecond float64 `env:"LOGIN_RATE_PER_SECOND, default=5"`
	LoginRateBurst     int     `env:"LOGIN_RATE_BURST,      default=10"`

	// Opt-in background purge of expired tokens. Zero (the default) leaves
	// cleanup to the explicit purge endpoint and CLI command.
	TokenSweepInterval time.Duration `env:"TOKEN_SWEEP_INTERVAL, default=0s"`

	AdminSeedFile string `env:"ADMIN_SEED_FILE"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=devjobs"`
}

type RedisConfig struct {
	// Addr empty disables the login throttle and the identity lock.
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("config: TOKEN_TTL must be positive, got %s", c.Auth.TokenTTL)
	}
	if c.Auth.PasswordMinLength < 1 {
		return fmt.Errorf("config: PASSWORD_MIN_LENGTH must be at least 1, got %d", c.Auth.PasswordMinLength)
	}
	if c.Auth.TokenSweepInterval < 0 {
		return fmt.Errorf("config: TOKEN_SWEEP_INTERVAL must not be negative, got %s", c.Auth.TokenSweepInterval)
	}
	if c.APIPrefix == "" || c.APIPrefix[0] != '/' {
		return fmt.Errorf("config: API_PREFIX must start with '/', got %q", c.APIPrefix)
	}
	return nil
}
