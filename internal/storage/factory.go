// Package storage selects persistence backends from configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/bobmcallan/navsync/internal/common"
	"github.com/bobmcallan/navsync/internal/interfaces"
	"github.com/bobmcallan/navsync/internal/storage/redislock"
	"github.com/bobmcallan/navsync/internal/storage/surrealdb"
)

// NewStorageManager connects the SurrealDB document store.
func NewStorageManager(logger *common.Logger, config *common.Config) (*surrealdb.Manager, error) {
	return surrealdb.NewManager(logger, config)
}

// NewRunLock creates the run lock for the configured backend.
// Returns nil when locking is disabled.
// Supported backends: "surrealdb" (default), "redis".
func NewRunLock(ctx context.Context, logger *common.Logger, config *common.Config, manager *surrealdb.Manager) (interfaces.RunLock, error) {
	if !config.Lock.Enabled {
		return nil, nil
	}

	backend := config.Lock.Backend
	if backend == "" {
		backend = common.LockBackendSurrealDB
	}

	switch backend {
	case common.LockBackendSurrealDB:
		if manager == nil {
			return nil, fmt.Errorf("surrealdb lock backend requires a storage manager")
		}
		return manager.RunLock(), nil

	case common.LockBackendRedis:
		lock, err := redislock.New(ctx, config.Lock, logger)
		if err != nil {
			return nil, err
		}
		return lock, nil

	default:
		return nil, fmt.Errorf("unknown lock backend: %s (supported: surrealdb, redis)", backend)
	}
}
