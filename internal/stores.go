package internal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/DukeRupert/packs/internal/metastore"
	"github.com/DukeRupert/packs/internal/storage"
)

// OpenMetaStore returns the configured meta store and a function that
// releases its connections. The Postgres store shares db.
func OpenMetaStore(ctx context.Context, cfg *Config, db *sql.DB) (metastore.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.MetaStore {
	case MetaStoreRedis:
		client, err := metastore.ConnectRedis(ctx, metastore.RedisConfig{
			URL:           cfg.RedisURL,
			Prefix:        cfg.RedisPrefix,
			RetryAttempts: 5,
			RetryInterval: 2 * time.Second,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return metastore.NewRedisStore(client, cfg.RedisPrefix), client.Close, nil
	case MetaStoreMemory:
		return metastore.NewMemoryStore(), noop, nil
	default:
		return metastore.NewPostgresStore(db), noop, nil
	}
}

// OpenStorage returns the configured file storage. The local provider is
// also returned on its own so the server can mount its file handler.
func OpenStorage(cfg *Config, logger *slog.Logger) (storage.Storage, *storage.LocalStorage, error) {
	switch cfg.StorageProvider {
	case storage.ProviderR2:
		r2, err := storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			Region:          "auto",
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("r2 storage initialization failed: %w", err)
		}
		return r2, nil, nil
	default:
		local, err := storage.NewLocalStorage(storage.LocalConfig{
			BasePath:   cfg.LocalStoragePath,
			BaseURL:    cfg.LocalStorageURL,
			SigningKey: []byte(cfg.NonceSecret),
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("local storage initialization failed: %w", err)
		}
		return local, local, nil
	}
}
