// Package config handles configuration for the homedock server: defaults,
// JSON overlay, .env/environment overlay, command-line flags and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/homedock/internal/common"
	"github.com/dmitrijs2005/homedock/internal/dbx"
)

const EnvDevelopment = "development"

// Config holds runtime settings for the homedock server.
//
// SecretKey signs access tokens and has no default. The master key that
// encrypts stored credentials comes from exactly one of MasterKey (base64),
// MasterKeyFile or an S3 object (S3Bucket + S3Object); see keysource.
type Config struct {
	HTTPAddr       string
	GRPCAddr       string
	Environment    string
	DatabaseDriver string
	DatabaseDSN    string

	SecretKey     string
	MasterKey     string
	MasterKeyFile string

	S3Bucket       string
	S3Object       string
	S3Region       string
	S3BaseEndpoint string
	S3RootUser     string
	S3RootPassword string

	AccessTokenValidityDuration  time.Duration
	RefreshTokenValidityDuration time.Duration

	RefreshStore  string
	RedisURL      string
	SweepSchedule string
	RoleCacheTTL  time.Duration // zero disables the role cache

	BootstrapUsersFile string

	LogFormat string
	LogLevel  string
}

// LoadDefaults populates Config with homelab defaults. Secrets are left empty
// on purpose.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.GRPCAddr = ":50051"
	c.Environment = "production"
	c.DatabaseDriver = dbx.DriverSQLite
	c.DatabaseDSN = "file:homedock.db?_foreign_keys=on"
	c.AccessTokenValidityDuration = 15 * time.Minute
	c.RefreshTokenValidityDuration = 7 * 24 * time.Hour
	c.S3Region = "us-east-1"
	c.RefreshStore = "sql"
	c.RedisURL = "redis://localhost:6379/0"
	c.SweepSchedule = "@every 1h"
	c.RoleCacheTTL = time.Minute
	c.LogFormat = "json"
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment (including .env) and finally
// command-line flags.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	args := os.Args[1:]
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, ".env"); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, EnvDevelopment)
}

// EnsureSecret fills an empty SecretKey with a random per-process value when
// running in development. It reports whether it did so.
func (c *Config) EnsureSecret() (bool, error) {
	if c.SecretKey != "" || !c.IsDevelopment() {
		return false, nil
	}
	s, err := common.MakeRandHexString(32)
	if err != nil {
		return false, err
	}
	c.SecretKey = s
	return true, nil
}

// HasMasterKeySource reports whether any master key source is configured.
func (c *Config) HasMasterKeySource() bool {
	return c.MasterKey != "" || c.MasterKeyFile != "" || (c.S3Bucket != "" && c.S3Object != "")
}

// Validate checks the conditions under which the server must refuse to
// start. All failures wrap common.ErrConfiguration.
func (c *Config) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", common.ErrConfiguration, fmt.Sprintf(format, args...))
	}

	if c.SecretKey == "" {
		return fail("jwt secret is required (HOMEDOCK_JWT_SECRET)")
	}
	if !c.HasMasterKeySource() {
		return fail("master key is required (HOMEDOCK_MASTER_KEY, HOMEDOCK_MASTER_KEY_FILE or S3 object)")
	}
	if _, err := dbx.NormalizeDriver(c.DatabaseDriver); err != nil {
		return fail("%v", err)
	}
	if c.DatabaseDSN == "" {
		return fail("database dsn is empty")
	}
	if c.AccessTokenValidityDuration <= 0 || c.RefreshTokenValidityDuration <= 0 {
		return fail("token lifetimes must be positive")
	}
	switch c.RefreshStore {
	case "sql":
	case "redis":
		if c.RedisURL == "" {
			return fail("redis refresh store needs HOMEDOCK_REDIS_URL")
		}
	default:
		return fail("unknown refresh store %q", c.RefreshStore)
	}
	if c.RoleCacheTTL < 0 {
		return fail("role cache ttl must not be negative")
	}
	return nil
}
