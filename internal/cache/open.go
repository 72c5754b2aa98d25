package cache

import (
	"fmt"

	"go.uber.org/zap"

	"freightgraph/internal/config"
)

// Open selects the backend named by cfg.Backend.
func Open(cfg config.CacheConfig, log *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "snapshot":
		return NewSnapshot(cfg.Dir, log)
	case "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(cfg.RedisURL)
	case "postgres":
		return NewPostgres(cfg.DatabaseURL)
	case "sqlite":
		return NewSQLite(cfg.SQLitePath)
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}
