package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthStatus is the last probe of the backing stores. A store that was
// never connected reports "disabled".
type HealthStatus struct {
	Mongo      string    `json:"mongo"`
	RedisCache string    `json:"redisCache"`
	RedisAlert string    `json:"redisAlert"`
	CheckedAt  time.Time `json:"checkedAt"`
}

const (
	HealthUp       = "up"
	HealthDown     = "down"
	HealthDisabled = "disabled"
)

var (
	currentHealth = HealthStatus{Mongo: HealthDisabled, RedisCache: HealthDisabled, RedisAlert: HealthDisabled}
	healthMu      sync.RWMutex
)

// GetHealthStatus returns latest stored health snapshot.
func GetHealthStatus() HealthStatus {
	healthMu.RLock()
	defer healthMu.RUnlock()
	return currentHealth
}

// StartHealthMonitor probes the stores immediately and then every interval
// until ctx ends. Nil clients are reported as disabled.
func StartHealthMonitor(ctx context.Context, interval time.Duration, mongoClient *mongo.Client, cache, alerts *redis.Client) {
	if interval <= 0 {
		interval = time.Minute
	}
	probeHealth(ctx, mongoClient, cache, alerts)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeHealth(ctx, mongoClient, cache, alerts)
			}
		}
	}()
}

func probeHealth(ctx context.Context, mongoClient *mongo.Client, cache, alerts *redis.Client) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	status := HealthStatus{
		Mongo:      HealthDisabled,
		RedisCache: redisHealth(ctx, cache),
		RedisAlert: redisHealth(ctx, alerts),
		CheckedAt:  time.Now(),
	}
	if mongoClient != nil {
		status.Mongo = HealthUp
		if mongoClient.Ping(ctx, nil) != nil {
			status.Mongo = HealthDown
		}
	}

	healthMu.Lock()
	currentHealth = status
	healthMu.Unlock()
}

func redisHealth(ctx context.Context, client *redis.Client) string {
	if client == nil {
		return HealthDisabled
	}
	if client.Ping(ctx).Err() != nil {
		return HealthDown
	}
	return HealthUp
}
