package usage

import (
	"context"
	"time"

	"receptionist-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisMarker implements Marker on a shared Redis, so threshold alerts
// fire once per period even with multiple API instances.
type RedisMarker struct {
	rdb *redis.Client
}

func NewRedisMarker(rdb *redis.Client) *RedisMarker { return &RedisMarker{rdb: rdb} }

func (m *RedisMarker) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return utils.MarkOnce(ctx, m.rdb, key, ttl)
}
