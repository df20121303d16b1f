package redisrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirinyoku/cinehold/internal/domain"
	redisx "github.com/kirinyoku/cinehold/internal/redis"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ShowCache keeps show records in Redis as JSON. Seat availability is never
// stored here since it changes with every hold.
type ShowCache struct {
	rdb   *redis.Client
	group singleflight.Group
}

func NewShowCache(client *redis.Client) *ShowCache {
	return &ShowCache{rdb: client}
}

// ShowByID returns the cached show or loads it with load on a miss.
// Concurrent misses for the same show share one load. Redis failures fall
// through to load so that the read path keeps working without the cache.
func (c *ShowCache) ShowByID(
	ctx context.Context,
	id int64,
	ttl time.Duration,
	load func(ctx context.Context) (domain.Show, error),
) (domain.Show, error) {
	key := redisx.KeyShowSummary(id)

	if sh, ok := c.lookup(ctx, key); ok {
		return sh, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if sh, ok := c.lookup(ctx, key); ok {
			return sh, nil
		}

		sh, err := load(ctx)
		if err != nil {
			return nil, err
		}

		if b, err := json.Marshal(sh); err == nil {
			// a failed write only costs a reload
			_ = c.rdb.Set(ctx, key, b, ttl).Err()
		}

		return sh, nil
	})
	if err != nil {
		return domain.Show{}, err
	}

	sh, ok := v.(domain.Show)
	if !ok {
		return domain.Show{}, fmt.Errorf("redisrepo.ShowCache.ShowByID: unexpected %T", v)
	}

	return sh, nil
}

func (c *ShowCache) lookup(ctx context.Context, key string) (domain.Show, bool) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Show{}, false
	}

	var sh domain.Show
	if err := json.Unmarshal(b, &sh); err != nil {
		return domain.Show{}, false
	}

	return sh, true
}
