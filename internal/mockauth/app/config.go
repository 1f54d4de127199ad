package app

import (
	"time"

	"github.com/aussiebroadwan/opsconsole/internal/envconf"
	"github.com/aussiebroadwan/opsconsole/pkg/jwtx"
)

type Config struct {
	Issuer               string        // Issuer claim for tokens (default: opsconsole-mockauth)
	Secret               string        // HS256 signing secret, at least 32 bytes; generated when empty
	AccessTTL            time.Duration // Access token lifetime (default: 15m)
	RefreshTTL           time.Duration // Refresh token lifetime (default: 7 days)
	AdminPassword        string        // Password of the seeded "admin" account (default: admin123)
	UserPassword         string        // Password of the seeded "user" account (default: user123)
	Servers              int           // Fleet size reported by /monitor/dashboard (default: 12)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Revocation pruning interval (default: 10m)
}

func LoadConfig() Config {
	return Config{
		Issuer:               envconf.String("MOCKAUTH_ISSUER", "opsconsole-mockauth"),
		Secret:               envconf.String("MOCKAUTH_SECRET", ""),
		AccessTTL:            envconf.Duration("MOCKAUTH_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:           envconf.Duration("MOCKAUTH_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),
		AdminPassword:        envconf.String("MOCKAUTH_ADMIN_PASSWORD", "admin123"),
		UserPassword:         envconf.String("MOCKAUTH_USER_PASSWORD", "user123"),
		Servers:              envconf.Int("MOCKAUTH_SERVERS", 12),
		Env:                  envconf.String("ENV", "dev"),
		LogLevel:             envconf.String("LOG_LEVEL", "info"),
		LogFormat:            envconf.String("LOG_FORMAT", "json"),
		Port:                 envconf.Int("MOCKAUTH_PORT", 8080),
		ShutdownGracePeriod:  envconf.Duration("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: envconf.Duration("HOUSEKEEPING_INTERVAL", 10*time.Minute),
	}
}
