package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/giftlist/backend/internal/models"
)

// SessionCache keeps recently loaded UserDetails so that each request does
// not have to read the users collection. A miss returns (nil, nil).
type SessionCache interface {
	Get(ctx context.Context, uid string) (*models.UserDetail, error)
	Set(ctx context.Context, detail *models.UserDetail) error
	Delete(ctx context.Context, uid string) error
	Close() error
}

// RedisSessionCache stores UserDetails as JSON under detail:<uid>.
type RedisSessionCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisSessionCache(redisURL string, ttl time.Duration) (*RedisSessionCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisSessionCacheWithClient(client, ttl), nil
}

func NewRedisSessionCacheWithClient(client *redis.Client, ttl time.Duration) *RedisSessionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisSessionCache{
		client: client,
		prefix: "detail:",
		ttl:    ttl,
	}
}

func (c *RedisSessionCache) key(uid string) string {
	return c.prefix + uid
}

func (c *RedisSessionCache) Get(ctx context.Context, uid string) (*models.UserDetail, error) {
	raw, err := c.client.Get(ctx, c.key(uid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached detail: %w", err)
	}

	var detail models.UserDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, fmt.Errorf("unmarshal cached detail: %w", err)
	}
	return &detail, nil
}

func (c *RedisSessionCache) Set(ctx context.Context, detail *models.UserDetail) error {
	raw, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal detail: %w", err)
	}
	if err := c.client.Set(ctx, c.key(detail.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache detail: %w", err)
	}
	return nil
}

func (c *RedisSessionCache) Delete(ctx context.Context, uid string) error {
	if err := c.client.Del(ctx, c.key(uid)).Err(); err != nil {
		return fmt.Errorf("drop cached detail: %w", err)
	}
	return nil
}

func (c *RedisSessionCache) Close() error {
	return c.client.Close()
}

func (c *RedisSessionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// NopSessionCache is used when no Redis is configured.
type NopSessionCache struct{}

func (NopSessionCache) Get(context.Context, string) (*models.UserDetail, error) { return nil, nil }
func (NopSessionCache) Set(context.Context, *models.UserDetail) error          { return nil }
func (NopSessionCache) Delete(context.Context, string) error                   { return nil }
func (NopSessionCache) Close() error                                           { return nil }
