// Package config handles configuration for the fastid server: defaults,
// an optional JSON/YAML file, a .env file, FASTID_* environment variables
// and command-line flags, applied in that order.
package config

import (
	"errors"
	"fmt"
	"time"
)

const envPrefix = "FASTID_"

const (
	ProfileHigh = "high"
	ProfileLow  = "low"
)

// Config holds runtime settings for the fastid server.
//
// SecretKey signs access tokens (HS256) and must never be logged.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR"`
	GRPCAddr string `env:"GRPC_ADDR"`

	DatabaseDriver string `env:"DATABASE_DRIVER"`
	DatabaseDSN    string `env:"DATABASE_DSN"`

	SecretKey       string        `env:"SECRET_KEY"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL"`

	HasherProfile        string `env:"PASSWORD_HASHER_MEMORY_PROFILE"`
	HasherWorkers        int    `env:"PASSWORD_HASHER_WORKERS"`
	HasherMemoryBudgetMB int    `env:"PASSWORD_HASHER_MEMORY_BUDGET_MB"`

	TokenSweepInterval time.Duration `env:"TOKEN_SWEEP_INTERVAL"`

	SignInRateLimit  int           `env:"SIGNIN_RATE_LIMIT"`
	SignInRateWindow time.Duration `env:"SIGNIN_RATE_WINDOW"`
	RedisAddr        string        `env:"REDIS_ADDR"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	LogEnv   string `env:"LOG_ENV"`
	LogLevel string `env:"LOG_LEVEL"`

	OtelEndpoint string `env:"OTEL_ENDPOINT"`
	ServiceName  string `env:"SERVICE_NAME"`
	Environment  string `env:"ENVIRONMENT"`
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secret key is a placeholder and must be overridden in production.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8000"
	c.GRPCAddr = ":50051"
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "file:fastid.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
	c.SecretKey = "change-me"
	c.AccessTokenTTL = 15 * time.Minute
	c.RefreshTokenTTL = 720 * time.Hour
	c.HasherProfile = ProfileLow
	c.HasherWorkers = 0
	c.HasherMemoryBudgetMB = 512
	c.TokenSweepInterval = 10 * time.Minute
	c.SignInRateLimit = 10
	c.SignInRateWindow = time.Minute
	c.RedisAddr = ""
	c.RequestTimeout = 30 * time.Second
	c.LogEnv = "dev"
	c.LogLevel = "info"
	c.OtelEndpoint = ""
	c.ServiceName = "fastid"
	c.Environment = "development"
}

// Validate reports every setting that would make the server misbehave.
func (c *Config) Validate() error {
	var errs []error

	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret_key must not be empty"))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("access_token_ttl must be positive"))
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		errs = append(errs, errors.New("refresh_token_ttl must be greater than access_token_ttl"))
	}
	switch c.HasherProfile {
	case ProfileHigh, ProfileLow:
	default:
		errs = append(errs, fmt.Errorf("unknown password_hasher_memory_profile %q", c.HasherProfile))
	}
	if c.HasherWorkers < 0 {
		errs = append(errs, errors.New("password_hasher_workers must not be negative"))
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown database_driver %q", c.DatabaseDriver))
	}
	if c.SignInRateLimit < 0 {
		errs = append(errs, errors.New("signin_rate_limit must not be negative"))
	}

	return errors.Join(errs...)
}

// Load builds a Config from defaults, then the optional config file, the
// .env file, the environment and finally the command-line flags in args.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, ".env"); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
