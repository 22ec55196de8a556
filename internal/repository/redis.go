package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"taskboard/internal/config"
	"taskboard/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	bindingsKey = "taskboard:bindings"
	cursorKey   = "taskboard:telegram:cursor"
)

// NewRedisClient creates a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// RedisBindingStore keeps all bindings in one hash: identity -> chat id.
type RedisBindingStore struct {
	client *redis.Client
	key    string
}

func NewRedisBindingStore(client *redis.Client) *RedisBindingStore {
	return &RedisBindingStore{client: client, key: bindingsKey}
}

func (r *RedisBindingStore) GetBinding(ctx context.Context, identity string) (string, bool, error) {
	if r.client == nil {
		return "", false, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.HGet(ctx, r.key, identity).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get binding from redis: %w", err)
	}
	return val, true, nil
}

func (r *RedisBindingStore) SetBinding(ctx context.Context, identity, address string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.HSet(ctx, r.key, identity, address).Err(); err != nil {
		return fmt.Errorf("failed to set binding in redis: %w", err)
	}
	return nil
}

// RedisCursorStore persists the getUpdates cursor so a restart does not replay handshakes.
type RedisCursorStore struct {
	client *redis.Client
	key    string
}

func NewRedisCursorStore(client *redis.Client) *RedisCursorStore {
	return &RedisCursorStore{client: client, key: cursorKey}
}

func (s *RedisCursorStore) LoadCursor(ctx context.Context) (int, bool, error) {
	if s.client == nil {
		return models.NoCursor, false, fmt.Errorf("redis client is nil")
	}
	val, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return models.NoCursor, false, nil
	}
	if err != nil {
		return models.NoCursor, false, fmt.Errorf("failed to load cursor: %w", err)
	}
	cursor, err := strconv.Atoi(val)
	if err != nil {
		return models.NoCursor, false, fmt.Errorf("invalid cursor %q: %w", val, err)
	}
	return cursor, true, nil
}

func (s *RedisCursorStore) StoreCursor(ctx context.Context, cursor int) error {
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := s.client.Set(ctx, s.key, cursor, 0).Err(); err != nil {
		return fmt.Errorf("failed to store cursor: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
