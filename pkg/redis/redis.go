// Package storage wraps go-redis for sessions, caches and rate-limit counters.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mnuddindev/otakushelf/pkg/logger"
	"github.com/mnuddindev/otakushelf/pkg/utils"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by GetJSON when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

type RedisClient struct {
	*redis.Client
}

// NewRedis initializes a Redis client with context.
func NewRedis(ctx context.Context, addr, password string, db int) (*RedisClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, utils.WrapError(err, fiber.StatusInternalServerError, "redis initialization canceled")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, utils.WrapError(err, fiber.StatusInternalServerError, "Failed to connect to Redis")
	}

	return &RedisClient{client}, nil
}

// GetJSON loads key and decodes it into out. A missing key yields ErrCacheMiss.
func (r *RedisClient) GetJSON(ctx context.Context, key string, out any) error {
	raw, err := r.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// SetJSON encodes v and stores it under key for ttl.
func (r *RedisClient) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.Set(ctx, key, raw, ttl).Err()
}

// Close shuts down the Redis connection.
func (r *RedisClient) Close(log *logger.Logger) error {
	if err := r.Client.Close(); err != nil {
		log.Error(context.Background()).WithFields("error", err).Logs("Redis close failed")
		return utils.NewInternalError("Failed to close Redis", err)
	}
	log.Info(context.Background()).Logs("Redis connection closed successfully")
	return nil
}
