package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aussiebroadwan/opsconsole/pkg/credstore"
	"github.com/aussiebroadwan/opsconsole/pkg/credstore/drivers/file"
	"github.com/aussiebroadwan/opsconsole/pkg/credstore/drivers/redis"
	"github.com/aussiebroadwan/opsconsole/pkg/credstore/drivers/sqlite"
)

// OpenStore builds the credential store for the configured driver.
func OpenStore(cfg Config, logger *slog.Logger) (*credstore.Store, error) {
	backend, err := openBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s credential store: %w", cfg.StoreDriver, err)
	}
	return credstore.New(backend, logger), nil
}

func openBackend(cfg Config) (credstore.Backend, error) {
	switch cfg.StoreDriver {
	case DriverMemory:
		return credstore.NewMemoryBackend(), nil

	case DriverRedis:
		if strings.HasPrefix(cfg.RedisAddr, "redis://") || strings.HasPrefix(cfg.RedisAddr, "rediss://") {
			return redis.NewWithURL(cfg.RedisAddr, cfg.RedisPrefix)
		}
		return redis.New(cfg.RedisAddr, cfg.RedisPrefix)

	case DriverSQLite:
		path, err := cfg.storePath()
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create credential directory: %w", err)
		}
		return sqlite.New(fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))

	case DriverFile, "":
		path, err := cfg.storePath()
		if err != nil {
			return nil, err
		}
		return file.New(path)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
