package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fastid/fastid/internal/flagx"
)

// Duration parses both "15m"-style strings and integer nanoseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case int:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

// fileConfig mirrors Config for file decoding. Pointer fields distinguish
// "absent" from "zero" so a partial file only overrides what it names.
type fileConfig struct {
	HTTPAddr             *string   `json:"http_addr" yaml:"http_addr"`
	GRPCAddr             *string   `json:"grpc_addr" yaml:"grpc_addr"`
	DatabaseDriver       *string   `json:"database_driver" yaml:"database_driver"`
	DatabaseDSN          *string   `json:"database_dsn" yaml:"database_dsn"`
	SecretKey            *string   `json:"secret_key" yaml:"secret_key"`
	AccessTokenTTL       *Duration `json:"access_token_ttl" yaml:"access_token_ttl"`
	RefreshTokenTTL      *Duration `json:"refresh_token_ttl" yaml:"refresh_token_ttl"`
	HasherProfile        *string   `json:"password_hasher_memory_profile" yaml:"password_hasher_memory_profile"`
	HasherWorkers        *int      `json:"password_hasher_workers" yaml:"password_hasher_workers"`
	HasherMemoryBudgetMB *int      `json:"password_hasher_memory_budget_mb" yaml:"password_hasher_memory_budget_mb"`
	TokenSweepInterval   *Duration `json:"token_sweep_interval" yaml:"token_sweep_interval"`
	SignInRateLimit      *int      `json:"signin_rate_limit" yaml:"signin_rate_limit"`
	SignInRateWindow     *Duration `json:"signin_rate_window" yaml:"signin_rate_window"`
	RedisAddr            *string   `json:"redis_addr" yaml:"redis_addr"`
	RequestTimeout       *Duration `json:"request_timeout" yaml:"request_timeout"`
	LogEnv               *string   `json:"log_env" yaml:"log_env"`
	LogLevel             *string   `json:"log_level" yaml:"log_level"`
	OtelEndpoint         *string   `json:"otel_endpoint" yaml:"otel_endpoint"`
	ServiceName          *string   `json:"service_name" yaml:"service_name"`
	Environment          *string   `json:"environment" yaml:"environment"`
}

// parseFile overlays the file named by -c/-config, if any. The format is
// YAML for .yaml/.yml files and JSON otherwise.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := &fileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, fc)
	default:
		err = json.Unmarshal(raw, fc)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	setString(&cfg.HTTPAddr, fc.HTTPAddr)
	setString(&cfg.GRPCAddr, fc.GRPCAddr)
	setString(&cfg.DatabaseDriver, fc.DatabaseDriver)
	setString(&cfg.DatabaseDSN, fc.DatabaseDSN)
	setString(&cfg.SecretKey, fc.SecretKey)
	setDuration(&cfg.AccessTokenTTL, fc.AccessTokenTTL)
	setDuration(&cfg.RefreshTokenTTL, fc.RefreshTokenTTL)
	setString(&cfg.HasherProfile, fc.HasherProfile)
	setInt(&cfg.HasherWorkers, fc.HasherWorkers)
	setInt(&cfg.HasherMemoryBudgetMB, fc.HasherMemoryBudgetMB)
	setDuration(&cfg.TokenSweepInterval, fc.TokenSweepInterval)
	setInt(&cfg.SignInRateLimit, fc.SignInRateLimit)
	setDuration(&cfg.SignInRateWindow, fc.SignInRateWindow)
	setString(&cfg.RedisAddr, fc.RedisAddr)
	setDuration(&cfg.RequestTimeout, fc.RequestTimeout)
	setString(&cfg.LogEnv, fc.LogEnv)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.OtelEndpoint, fc.OtelEndpoint)
	setString(&cfg.ServiceName, fc.ServiceName)
	setString(&cfg.Environment, fc.Environment)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
