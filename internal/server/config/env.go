package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv loads envFile into the process environment (existing variables
// win, a missing file is fine) and overlays HOMEDOCK_* variables.
func parseEnv(config *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	strs := map[string]*string{
		"HOMEDOCK_HTTP_ADDR":       &config.HTTPAddr,
		"HOMEDOCK_GRPC_ADDR":       &config.GRPCAddr,
		"HOMEDOCK_ENV":             &config.Environment,
		"HOMEDOCK_DB_DRIVER":       &config.DatabaseDriver,
		"HOMEDOCK_DB_DSN":          &config.DatabaseDSN,
		"HOMEDOCK_JWT_SECRET":      &config.SecretKey,
		"HOMEDOCK_MASTER_KEY":      &config.MasterKey,
		"HOMEDOCK_MASTER_KEY_FILE": &config.MasterKeyFile,
		"HOMEDOCK_S3_BUCKET":       &config.S3Bucket,
		"HOMEDOCK_S3_OBJECT":       &config.S3Object,
		"HOMEDOCK_S3_REGION":       &config.S3Region,
		"HOMEDOCK_S3_ENDPOINT":     &config.S3BaseEndpoint,
		"HOMEDOCK_S3_USER":         &config.S3RootUser,
		"HOMEDOCK_S3_PASSWORD":     &config.S3RootPassword,
		"HOMEDOCK_REFRESH_STORE":   &config.RefreshStore,
		"HOMEDOCK_REDIS_URL":       &config.RedisURL,
		"HOMEDOCK_SWEEP_SCHEDULE":  &config.SweepSchedule,
		"HOMEDOCK_USERS_FILE":      &config.BootstrapUsersFile,
		"HOMEDOCK_LOG_FORMAT":      &config.LogFormat,
		"HOMEDOCK_LOG_LEVEL":       &config.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"HOMEDOCK_ACCESS_TOKEN_TTL":  &config.AccessTokenValidityDuration,
		"HOMEDOCK_REFRESH_TOKEN_TTL": &config.RefreshTokenValidityDuration,
		"HOMEDOCK_ROLE_CACHE_TTL":    &config.RoleCacheTTL,
	}
	for key, dst := range durations {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}

	return nil
}
