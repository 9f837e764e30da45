package store

import (
	"fmt"

	"github.com/lawnchairsociety/questkeeper/internal/logger"
)

// Open builds the backend named by cfg.Driver. Durable backends are wrapped
// in a CodecStore.
func Open(cfg Config) (Store, error) {
	var (
		backend Store
		err     error
	)
	switch cfg.Driver {
	case DriverMemory:
		logger.Info("Using in-memory quest store")
		return NewMemoryStore(), nil
	case "", DriverSQLite:
		backend, err = OpenSQLite(cfg.SQLitePath)
	case DriverPostgres:
		backend, err = OpenPostgres(cfg.Postgres)
	case DriverRedis:
		backend, err = OpenRedis(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	codec, err := NewCodecStore(backend, cfg.Compress)
	if err != nil {
		backend.Close()
		return nil, err
	}
	logger.Info("Quest store opened", "driver", cfg.Driver, "compress", cfg.Compress)
	return codec, nil
}
