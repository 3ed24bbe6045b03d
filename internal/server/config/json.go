package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/homedock/internal/flagx"
	"github.com/dmitrijs2005/homedock/internal/timex"
)

// JsonConfig mirrors Config for JSON config files. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted. Absent
// keys leave the corresponding Config field untouched.
type JsonConfig struct {
	HTTPAddr                     *string         `json:"http_addr"`
	GRPCAddr                     *string         `json:"grpc_addr"`
	Environment                  *string         `json:"environment"`
	DatabaseDriver               *string         `json:"database_driver"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	SecretKey                    *string         `json:"secret_key"`
	MasterKey                    *string         `json:"master_key"`
	MasterKeyFile                *string         `json:"master_key_file"`
	S3Bucket                     *string         `json:"s3_bucket"`
	S3Object                     *string         `json:"s3_object"`
	S3Region                     *string         `json:"s3_region"`
	S3BaseEndpoint               *string         `json:"s3_base_endpoint"`
	S3RootUser                   *string         `json:"s3_root_user"`
	S3RootPassword               *string         `json:"s3_root_password"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	RefreshStore                 *string         `json:"refresh_store"`
	RedisURL                     *string         `json:"redis_url"`
	SweepSchedule                *string         `json:"sweep_schedule"`
	RoleCacheTTL                 *timex.Duration `json:"role_cache_ttl"`
	BootstrapUsersFile           *string         `json:"bootstrap_users_file"`
	LogFormat                    *string         `json:"log_format"`
	LogLevel                     *string         `json:"log_level"`
}

// parseJson overlays values from the JSON file named by -c/-config (or
// HOMEDOCK_CONFIG). Nothing happens when no file is named.
func parseJson(config *Config, args []string) error {
	jsonConfigFile := flagx.ConfigFile(args, "HOMEDOCK_CONFIG")
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", jsonConfigFile, err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.Environment, c.Environment)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.MasterKey, c.MasterKey)
	setString(&config.MasterKeyFile, c.MasterKeyFile)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Object, c.S3Object)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.RefreshStore, c.RefreshStore)
	setString(&config.RedisURL, c.RedisURL)
	setString(&config.SweepSchedule, c.SweepSchedule)
	setString(&config.BootstrapUsersFile, c.BootstrapUsersFile)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogLevel, c.LogLevel)

	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.RoleCacheTTL != nil {
		config.RoleCacheTTL = c.RoleCacheTTL.Duration
	}

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
