package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/segyhp/collections-engine/internal/domain"
	customError "github.com/segyhp/collections-engine/pkg/errors"
)

// SettingsCache keeps decoded clinic settings close to the detection job
type SettingsCache interface {
	// Get returns (nil, nil) on a miss
	Get(ctx context.Context, clinicID string) (*domain.Settings, error)
	Set(ctx context.Context, clinicID string, settings *domain.Settings) error
	Invalidate(ctx context.Context, clinicID string) error
}

type redisSettingsCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisSettingsCache(client redis.Cmdable, ttl time.Duration) SettingsCache {
	return &redisSettingsCache{client: client, ttl: ttl}
}

func settingsKey(clinicID string) string {
	return "collections:settings:" + clinicID
}

func (c *redisSettingsCache) Get(ctx context.Context, clinicID string) (*domain.Settings, error) {
	raw, err := c.client.Get(ctx, settingsKey(clinicID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, customError.WrapCacheError(err)
	}

	var s domain.Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		// a corrupt entry is treated as a miss and overwritten on the next Set
		return nil, nil
	}
	return &s, nil
}

func (c *redisSettingsCache) Set(ctx context.Context, clinicID string, settings *domain.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, settingsKey(clinicID), raw, c.ttl).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

func (c *redisSettingsCache) Invalidate(ctx context.Context, clinicID string) error {
	if err := c.client.Del(ctx, settingsKey(clinicID)).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

// NopSettingsCache always misses
type NopSettingsCache struct{}

func (NopSettingsCache) Get(context.Context, string) (*domain.Settings, error) { return nil, nil }
func (NopSettingsCache) Set(context.Context, string, *domain.Settings) error { return nil }
func (NopSettingsCache) Invalidate(context.Context, string) error { return nil }
