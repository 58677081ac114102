package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// SettingsCache is a read-through cache for the settings table.
type SettingsCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewSettingsCache(client *redisv9.Client, ttl time.Duration) *SettingsCache {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &SettingsCache{client: client, ttl: ttl}
}

func (c *SettingsCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, settingKey(key)).Result()
	if errors.Is(err, redisv9.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get setting failed: %w", err)
	}
	return value, true, nil
}

func (c *SettingsCache) Set(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, settingKey(key), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set setting failed: %w", err)
	}
	return nil
}

func (c *SettingsCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, settingKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete setting failed: %w", err)
	}
	return nil
}

func settingKey(key string) string {
	return "ragdesk:settings:" + key
}
