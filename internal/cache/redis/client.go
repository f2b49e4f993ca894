package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/counseldesk/gateway/pkg/logger"
)

const catalogKey = "catalog:snapshot"

// Client caches one serialized catalog snapshot. The gateway runs fine
// without it; callers treat every method as best-effort.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, catalogTTL time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized",
		zap.String("addr", fmt.Sprintf("%s:%d", host, port)),
		zap.Duration("catalog_ttl", catalogTTL),
	)

	return &Client{client: client, ttl: catalogTTL}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Get(ctx context.Context, dst any) (bool, error) {
	data, err := c.client.Get(ctx, catalogKey).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read catalog snapshot: %w", err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode catalog snapshot: %w", err)
	}

	logger.Debug("Catalog snapshot cache hit")
	return true, nil
}

func (c *Client) Set(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode catalog snapshot: %w", err)
	}

	if err := c.client.Set(ctx, catalogKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write catalog snapshot: %w", err)
	}

	logger.Debug("Catalog snapshot cached", zap.Duration("ttl", c.ttl))
	return nil
}

// InvalidateCatalog drops the snapshot. Called by the staleness policy
// after every successful ingestion.
func (c *Client) InvalidateCatalog(ctx context.Context) error {
	if err := c.client.Del(ctx, catalogKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate catalog snapshot: %w", err)
	}

	logger.Info("Catalog snapshot invalidated")
	return nil
}
