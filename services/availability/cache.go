package availability

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"visaflow/models"
	"visaflow/utils"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// SlotCache stores display-query reports for a short while.
type SlotCache interface {
	Get(ctx context.Context, q models.SlotQuery) (models.SlotReport, bool)
	Set(ctx context.Context, q models.SlotQuery, report models.SlotReport)
}

// CacheStore is the part of the Redis client the slot cache uses.
type CacheStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisSlotCache keeps reports in Redis. Cache failures are logged and
// treated as misses.
type RedisSlotCache struct {
	client CacheStore
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisSlotCache(client CacheStore, ttl time.Duration, logger *zap.Logger) *RedisSlotCache {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &RedisSlotCache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(q models.SlotQuery) string {
	parts := []string{q.Country, q.Consulate, q.VisaType, strconv.Itoa(q.WindowDays)}
	return utils.SlotCachePrefix + strings.ToLower(strings.Join(parts, ":"))
}

func (c *RedisSlotCache) Get(ctx context.Context, q models.SlotQuery) (models.SlotReport, bool) {
	data, err := c.client.Get(ctx, cacheKey(q)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("slot cache read failed", zap.Error(err))
		}
		return models.SlotReport{}, false
	}
	var report models.SlotReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		c.logger.Warn("slot cache entry unreadable", zap.Error(err))
		return models.SlotReport{}, false
	}
	return report, true
}

func (c *RedisSlotCache) Set(ctx context.Context, q models.SlotQuery, report models.SlotReport) {
	data, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(q), data, c.ttl).Err(); err != nil {
		c.logger.Warn("slot cache write failed", zap.Error(err))
	}
}
