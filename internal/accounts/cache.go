package accounts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"heritage-api/internal/common/logger"
	"heritage-api/internal/common/metrics"
)

const cacheKeyPrefix = "account:key:"

// CachedRepository fronts the Postgres repository with a Redis cache for
// the hot key-lookup path. Cache failures degrade to direct lookups.
type CachedRepository struct {
	repo   *Repository
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedRepository(repo *Repository, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedRepository {
	return &CachedRepository{
		repo:   repo,
		rdb:    rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "account-cache"}),
	}
}

// FindByAPIKey returns the cached account for key, falling back to and
// populating from Postgres on a miss. Only existing accounts are cached.
func (c *CachedRepository) FindByAPIKey(ctx context.Context, key string) (*Account, error) {
	cached, err := c.rdb.Get(ctx, cacheKeyPrefix+key).Result()
	if err == nil {
		var a Account
		if err := json.Unmarshal([]byte(cached), &a); err == nil {
			metrics.APIKeyLookupsTotal.WithLabelValues("cache").Inc()
			return &a, nil
		}
	} else if err != redis.Nil {
		c.logger.WithError(err).Warn("account cache read failed", nil)
	}

	account, err := c.repo.FindByAPIKey(ctx, key)
	if err != nil {
		return nil, err
	}
	metrics.APIKeyLookupsTotal.WithLabelValues("db").Inc()

	if account != nil {
		if encoded, err := json.Marshal(account); err == nil {
			if err := c.rdb.Set(ctx, cacheKeyPrefix+key, encoded, c.ttl).Err(); err != nil {
				c.logger.WithError(err).Warn("account cache write failed", nil)
			}
		}
	}
	return account, nil
}
