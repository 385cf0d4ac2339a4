package monitoring

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"visaflow/models"
	"visaflow/utils"

	"github.com/cespare/xxhash/v2"
	"github.com/go-redis/redis/v8"
)

// Deduper remembers alert keys. FirstSeen reports whether key is new and
// marks it seen for ttl. Forget drops a key once its slot set is no longer
// current, so the same set alerts again if it comes back.
type Deduper interface {
	FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
}

// DedupeKey is the target id plus a hash of the slot set.
func DedupeKey(targetID string, slots map[string]models.SlotCandidate) string {
	keys := make([]string, 0, len(slots))
	for k := range slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("%s:%016x", targetID, xxhash.Sum64String(strings.Join(keys, "\n")))
}

// MemoryDeduper is the in-process fallback when Redis is unavailable.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDeduper) FirstSeen(_ context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for k, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, k)
		}
	}
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = now.Add(ttl)
	return true, nil
}

func (d *MemoryDeduper) Forget(_ context.Context, key string) error {
	d.mu.Lock()
	delete(d.seen, key)
	d.mu.Unlock()
	return nil
}

// DedupeStore is the part of the Redis client the deduper uses.
type DedupeStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisDeduper shares dedupe state across instances with SETNX.
type RedisDeduper struct {
	client DedupeStore
}

func NewRedisDeduper(client DedupeStore) *RedisDeduper {
	return &RedisDeduper{client: client}
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, utils.AlertDedupePrefix+key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("alert dedupe: %w", err)
	}
	return ok, nil
}

func (d *RedisDeduper) Forget(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, utils.AlertDedupePrefix+key).Err(); err != nil {
		return fmt.Errorf("alert dedupe: %w", err)
	}
	return nil
}
