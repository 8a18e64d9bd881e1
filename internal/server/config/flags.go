package config

import (
	"flag"
	"io"

	"github.com/fastid/fastid/internal/flagx"
)

// parseFlags overlays the server flags found in args.
//
// Supported flags:
//
//	-a string     HTTP bind address
//	-g string     gRPC bind address
//	-driver       database driver (sqlite, postgres)
//	-d string     database DSN
//	-s string     JWT HMAC secret key
//	-t duration   access token lifetime
//	-r duration   refresh token lifetime
//	-l string     log level
//
// args is filtered with flagx.FilterArgs first so that flags owned by other
// components (e.g. -c) do not break parsing.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-driver", "-d", "-s", "-t", "-r", "-l"})

	fs := flag.NewFlagSet("fastid", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "HTTP address and port")
	fs.StringVar(&cfg.GRPCAddr, "g", cfg.GRPCAddr, "gRPC address and port")
	fs.StringVar(&cfg.DatabaseDriver, "driver", cfg.DatabaseDriver, "database driver")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")
	fs.DurationVar(&cfg.AccessTokenTTL, "t", cfg.AccessTokenTTL, "access token lifetime")
	fs.DurationVar(&cfg.RefreshTokenTTL, "r", cfg.RefreshTokenTTL, "refresh token lifetime")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	return fs.Parse(args)
}
