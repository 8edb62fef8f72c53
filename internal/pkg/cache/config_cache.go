// internal/pkg/cache/config_cache.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"compatlab-service/internal/domain/sysconfig"

	"github.com/redis/go-redis/v9"
)

const (
	configKey = "compatlab:config:vigente"
	configTTL = 5 * time.Minute
)

// ConfigCache keeps the current pricing config in Redis so the hot
// paths (balance, spend, webhook) do not hit Postgres for it on
// every call. It is strictly best-effort: a miss or a Redis failure
// just falls through to the database.
type ConfigCache struct {
	client *redis.Client
}

func NewConfigCache(client *redis.Client) *ConfigCache {
	return &ConfigCache{client: client}
}

// Get returns the cached config, or (nil, nil) on a miss.
func (c *ConfigCache) Get(ctx context.Context) (*sysconfig.SystemConfig, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	data, err := c.client.Get(ctx, configKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var cfg sysconfig.SystemConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ConfigCache) Set(ctx context.Context, cfg *sysconfig.SystemConfig) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, configKey, data, configTTL).Err()
}

// Invalidate drops the cached config after a new one becomes vigente.
func (c *ConfigCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, configKey).Err()
}
