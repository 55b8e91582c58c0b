package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/KirkDiggler/vipsync/internal/common/logging"
	"github.com/KirkDiggler/vipsync/internal/models"
)

// DefaultChannel is the pub/sub channel change notifications are published on
const DefaultChannel = "vip_storage_changes"

// RedisConfig holds configuration for the Redis store
type RedisConfig struct {
	// Redis client
	RedisClient *redis.Client

	// Channel for change notifications; defaults to DefaultChannel
	Channel string

	// Logger is optional
	Logger *zap.Logger
}

// redisStore implements the Store interface using Redis strings for values and
// Redis pub/sub for the change feed
type redisStore struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedis creates a new Redis-backed store
func NewRedis(cfg *RedisConfig) (*redisStore, error) {
	// Validate config
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.RedisClient == nil {
		return nil, errors.New("redis client cannot be nil")
	}

	// Test connection
	if err := cfg.RedisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}

	return &redisStore{
		client:  cfg.RedisClient,
		channel: channel,
		logger:  logging.OrNop(cfg.Logger),
	}, nil
}

// Get retrieves a raw value from Redis
func (r *redisStore) Get(ctx context.Context, input *GetInput) (*GetOutput, error) {
	if input == nil || input.Key == "" {
		return nil, errors.New("input and key cannot be empty")
	}

	value, err := r.client.Get(ctx, input.Key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", input.Key, err)
	}

	return &GetOutput{
		Value: value,
	}, nil
}

// Set writes a raw value and publishes the change
func (r *redisStore) Set(ctx context.Context, input *SetInput) (*SetOutput, error) {
	if input == nil || input.Key == "" {
		return nil, errors.New("input and key cannot be empty")
	}

	// Read the previous value and write the new one in a single transaction
	var previousCmd *redis.StringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		previousCmd = pipe.Get(ctx, input.Key)
		pipe.Set(ctx, input.Key, input.Value, 0) // No expiration, cleanup is explicit
		return nil
	})
	// A missing previous value surfaces as redis.Nil from the GET
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to set %s: %w", input.Key, err)
	}

	output := &SetOutput{}
	previous, err := previousCmd.Result()
	switch {
	case err == nil:
		output.Previous = previous
		output.Existed = true
	case !errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("failed to read previous value of %s: %w", input.Key, err)
	}

	change := &models.Change{
		Key:      input.Key,
		NewValue: input.Value,
		OldValue: output.Previous,
		Origin:   input.Origin,
	}
	changeJSON, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal change: %w", err)
	}

	// The value is already persisted; a lost notification only delays other
	// processes until their next read
	if err := r.client.Publish(ctx, r.channel, changeJSON).Err(); err != nil {
		r.logger.Warn("failed to publish change",
			zap.String("key", input.Key),
			zap.String("channel", r.channel),
			zap.Error(err))
	}

	return output, nil
}

// Watch subscribes to the change channel
func (r *redisStore) Watch(ctx context.Context, input *WatchInput) (*WatchOutput, error) {
	if input == nil {
		return nil, errors.New("input cannot be nil")
	}

	pubsub := r.client.Subscribe(ctx, r.channel)

	// Wait for the subscription to be confirmed so no write after Watch
	// returns is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	changes := make(chan *models.Change)
	go func() {
		defer close(changes)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}

				var change models.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					r.logger.Error("failed to decode change notification",
						zap.String("channel", msg.Channel),
						zap.Error(err))
					continue
				}

				if input.Origin != "" && change.Origin == input.Origin {
					continue
				}

				select {
				case changes <- &change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return &WatchOutput{
		Changes: changes,
	}, nil
}

// Close is a no-op; the Redis client is owned by the caller
func (r *redisStore) Close() error {
	return nil
}
