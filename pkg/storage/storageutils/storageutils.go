// Package storageutils builds the configured storage.Driver.
package storageutils

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/grove/pkg/config"
	"github.com/papercomputeco/grove/pkg/logger"
	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/storage/firestore"
	"github.com/papercomputeco/grove/pkg/storage/inmemory"
	"github.com/papercomputeco/grove/pkg/storage/postgres"
	"github.com/papercomputeco/grove/pkg/storage/redis"
	"github.com/papercomputeco/grove/pkg/storage/sqlite"
)

// NewDriver opens the store named by cfg.Provider. The sqlite provider needs
// cfg.SQLitePath to be resolved by the caller.
func NewDriver(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (storage.Driver, error) {
	log = logger.OrNop(log)

	switch cfg.Provider {
	case config.StorageInMemory:
		log.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case config.StorageSQLite, "":
		if cfg.SQLitePath == "" {
			return nil, errors.New("sqlite storage needs a database path")
		}
		driver, err := sqlite.NewSQLiteDriver(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		log.Info("using SQLite storage", "path", cfg.SQLitePath)
		return driver, nil

	case config.StoragePostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres storage needs storage.postgres_dsn")
		}
		driver, err := postgres.NewDriver(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		log.Info("using PostgreSQL storage")
		return driver, nil

	case config.StorageRedis:
		driver, err := redis.NewDriver(ctx, redis.Config{Addr: cfg.RedisAddr})
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis driver: %w", err)
		}
		log.Info("using Redis storage", "addr", cfg.RedisAddr)
		return driver, nil

	case config.StorageFirestore:
		driver, err := firestore.NewDriver(ctx, firestore.Config{
			ProjectID:  cfg.FirestoreProject,
			Collection: cfg.FirestoreCollection,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Firestore driver: %w", err)
		}
		log.Info("using Firestore storage",
			"project", cfg.FirestoreProject,
			"collection", cfg.FirestoreCollection,
		)
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
