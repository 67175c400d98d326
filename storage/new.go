package storage

import (
	"fmt"

	"github.com/adsim/adsim/config"
)

// New builds the configured backend.
func New(cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendRedis:
		return NewRedis(cfg.Redis)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
