package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/KirkDiggler/vipsync/internal/config"
	"github.com/KirkDiggler/vipsync/internal/repositories/kvstore"
)

// openStore connects the configured backend. health pings it and is nil for
// backends without a remote end.
func openStore(cfg *config.Config, logger *zap.Logger) (store kvstore.Store, health func(ctx context.Context) error, err error) {
	switch cfg.Store {
	case config.StoreRedis:
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		store, err = kvstore.NewRedis(&kvstore.RedisConfig{
			RedisClient: redisClient,
			Channel:     cfg.ChangeChannel,
			Logger:      logger,
		})
		if err != nil {
			_ = redisClient.Close()
			return nil, nil, err
		}

		return &closingStore{Store: store, close: redisClient.Close}, func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}, nil

	case config.StoreSQLite:
		store, err = kvstore.NewSQLite(&kvstore.SQLiteConfig{
			Path:         cfg.SQLitePath,
			PollInterval: cfg.PollInterval,
			Logger:       logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case config.StoreMemory:
		return kvstore.NewMemory(), nil, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownStore, cfg.Store)
	}
}

// closingStore also closes the redis client the store was built on
type closingStore struct {
	kvstore.Store
	close func() error
}

func (c *closingStore) Close() error {
	if err := c.Store.Close(); err != nil {
		return err
	}
	return c.close()
}
