package config

import (
	"flag"

	"github.com/dmitrijs2005/homedock/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string     HTTP bind address (":8080")
//	-g string     gRPC health bind address (":50051")
//	-env string   environment name ("production", "development")
//	-driver string  database driver ("sqlite3", "pgx")
//	-d string     database DSN
//	-s string     JWT HMAC secret
//	-k string     base64 master key
//	-t duration   access token lifetime ("15m")
//	-r duration   refresh token lifetime ("168h")
//
// Arguments are filtered through flagx.FilterArgs first so that -c and any
// foreign flags do not break parsing.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-env", "-driver", "-d", "-s", "-k", "-t", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC health address and port")
	fs.StringVar(&config.Environment, "env", config.Environment, "environment")
	fs.StringVar(&config.DatabaseDriver, "driver", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "JWT secret key")
	fs.StringVar(&config.MasterKey, "k", config.MasterKey, "base64 master key")
	fs.DurationVar(&config.AccessTokenValidityDuration, "t", config.AccessTokenValidityDuration, "access token validity")
	fs.DurationVar(&config.RefreshTokenValidityDuration, "r", config.RefreshTokenValidityDuration, "refresh token validity")

	return fs.Parse(args)
}
