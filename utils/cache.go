// File: utils/cache.go
package utils

import (
	"context"
	"fmt"
	"time"

	"visaflow/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var (
	// CacheClient caches slot discovery results.
	CacheClient *redis.Client
	// AlertClient stores vacancy-alert dedupe keys.
	AlertClient *redis.Client
)

// newRedisClient opens a client on the given DB and pings it.
func newRedisClient(db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis db %d: %w", db, err)
	}
	return client, nil
}

// InitRedis connects the cache and alert clients. A client that cannot be
// reached stays nil and its feature degrades to in-process behaviour.
func InitRedis() {
	logger := GetLogger()

	var err error
	if CacheClient, err = newRedisClient(config.AppConfig.RedisCacheDB); err != nil {
		logger.Warn("Redis cache unavailable, slot cache disabled", zap.Error(err))
	}
	if AlertClient, err = newRedisClient(config.AppConfig.RedisAlertDB); err != nil {
		logger.Warn("Redis alert store unavailable, using in-memory dedupe", zap.Error(err))
	}
}

// CloseRedis closes whichever clients were opened.
func CloseRedis() {
	for _, c := range []*redis.Client{CacheClient, AlertClient} {
		if c != nil {
			_ = c.Close()
		}
	}
}
