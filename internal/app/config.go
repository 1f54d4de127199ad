package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aussiebroadwan/opsconsole/internal/envconf"
	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
	"github.com/aussiebroadwan/opsconsole/pkg/credstore/drivers/redis"
)

// Store drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

type Config struct {
	APIURL         string        // API root (default: http://localhost:8080/api)
	StoreDriver    string        // file, sqlite, redis or memory (default: file)
	StorePath      string        // file/sqlite location (default: <user config dir>/opsconsole/credentials.{json,db})
	RedisAddr      string        // host:port or redis:// URL (default: localhost:6379)
	RedisPrefix    string        // key prefix (default: opsconsole)
	RequestTimeout time.Duration // Per HTTP request except the refresh call (default: 10s)
	RefreshTimeout time.Duration // Bound on the refresh call (default: 10s)
	WaitTimeout    time.Duration // Bound on a queued request's wait; 0 derives it from RefreshTimeout
	Env            string        // Environment (dev, staging, prod) (default: dev)
	LogLevel       string        // Log level (debug, info, warn, error) (default: warn)
	LogFormat      string        // Log format (json, text) (default: text)
}

func LoadConfig() Config {
	return Config{
		APIURL:         envconf.String("OPS_API_URL", "http://localhost:8080/api"),
		StoreDriver:    envconf.String("OPS_STORE_DRIVER", DriverFile),
		StorePath:      envconf.String("OPS_STORE_PATH", ""),
		RedisAddr:      envconf.String("OPS_REDIS_ADDR", "localhost:6379"),
		RedisPrefix:    envconf.String("OPS_REDIS_PREFIX", redis.DefaultPrefix),
		RequestTimeout: envconf.Duration("OPS_REQUEST_TIMEOUT", authsdk.DefaultTimeout),
		RefreshTimeout: envconf.Duration("OPS_REFRESH_TIMEOUT", authsdk.DefaultTimeout),
		WaitTimeout:    envconf.Duration("OPS_REFRESH_WAIT_TIMEOUT", 0),
		Env:            envconf.String("ENV", "dev"),
		LogLevel:       envconf.String("LOG_LEVEL", "warn"),
		LogFormat:      envconf.String("LOG_FORMAT", "text"),
	}
}

// Validate checks settings that would otherwise fail late.
func (c Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api url is required")
	}
	switch c.StoreDriver {
	case DriverFile, DriverSQLite, DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.WaitTimeout < 0 || c.RefreshTimeout < 0 || c.RequestTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// storePath resolves the default location for file based drivers.
func (c Config) storePath() (string, error) {
	if c.StorePath != "" {
		return c.StorePath, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	name := "credentials.json"
	if c.StoreDriver == DriverSQLite {
		name = "credentials.db"
	}
	return filepath.Join(dir, "opsconsole", name), nil
}
