package assistants

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"receptionist-platform/pkg/logger"
	"receptionist-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Cache is the read-through cache in front of the assistant registry.
// Lookups happen on every inbound webhook and tool call, so the hot
// path should not hit Postgres.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// RedisCache adapts a redis client to the Cache interface.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	return utils.CacheGet(ctx, c.rdb, key)
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return utils.CacheSet(ctx, c.rdb, key, value, ttl)
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return utils.CacheDel(ctx, c.rdb, key)
}

const cacheTTL = 10 * time.Minute

// Registry resolves assistant ids to tenants, cache-aside over the
// repository. Cache failures degrade to direct lookups.
type Registry struct {
	repo  Repository
	cache Cache // optional
}

func NewRegistry(repo Repository, cache Cache) *Registry {
	return &Registry{repo: repo, cache: cache}
}

var ErrInvalidAssistant = errors.New("invalid assistant")

func cacheKey(externalID string) string {
	return "assistant:" + externalID
}

// Resolve returns the assistant registered under the platform id.
// Inactive assistants resolve too; the caller decides whether inactive
// traffic is acceptable.
func (r *Registry) Resolve(ctx context.Context, externalID string) (*Assistant, error) {
	if externalID == "" {
		return nil, ErrInvalidAssistant
	}

	if r.cache != nil {
		if raw, ok, err := r.cache.Get(ctx, cacheKey(externalID)); err != nil {
			logger.From(ctx).Warn("assistant cache read failed", "external_id", externalID, "error", err)
		} else if ok {
			var a Assistant
			if err := json.Unmarshal([]byte(raw), &a); err == nil {
				return &a, nil
			}
			// Corrupt entry: drop it and fall through to the repo.
			_ = r.cache.Del(ctx, cacheKey(externalID))
		}
	}

	a, err := r.repo.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if raw, err := json.Marshal(a); err == nil {
			if err := r.cache.Set(ctx, cacheKey(externalID), string(raw), cacheTTL); err != nil {
				logger.From(ctx).Warn("assistant cache write failed", "external_id", externalID, "error", err)
			}
		}
	}
	return a, nil
}

// ResolveTenant is Resolve narrowed to the tenant id, with "" on any
// failure. Callers treat an empty tenant as "fall back to default".
func (r *Registry) ResolveTenant(ctx context.Context, externalID string) string {
	a, err := r.Resolve(ctx, externalID)
	if err != nil {
		return ""
	}
	return a.TenantID
}

// Register creates or updates the mapping and invalidates the cache
// entry so the next lookup sees the new tenant.
func (r *Registry) Register(ctx context.Context, a *Assistant) error {
	if a == nil || a.ExternalID == "" || a.TenantID == "" {
		return ErrInvalidAssistant
	}
	if err := r.repo.Upsert(ctx, a); err != nil {
		return err
	}
	if r.cache != nil {
		if err := r.cache.Del(ctx, cacheKey(a.ExternalID)); err != nil {
			logger.From(ctx).Warn("assistant cache invalidation failed", "external_id", a.ExternalID, "error", err)
		}
	}
	return nil
}

func (r *Registry) List(ctx context.Context, tenantID string) ([]Assistant, error) {
	if tenantID == "" {
		return nil, ErrInvalidAssistant
	}
	return r.repo.ListByTenant(ctx, tenantID)
}

// Deactivate marks the assistant inactive and evicts it from cache.
func (r *Registry) Deactivate(ctx context.Context, tenantID, externalID string) error {
	if tenantID == "" || externalID == "" {
		return ErrInvalidAssistant
	}
	if err := r.repo.Deactivate(ctx, tenantID, externalID); err != nil {
		return err
	}
	if r.cache != nil {
		_ = r.cache.Del(ctx, cacheKey(externalID))
	}
	return nil
}
