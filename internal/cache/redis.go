package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"travel-backend/internal/models"
)

// Duplicate scan cache keys: kind, scope ("all" when unscoped), threshold.
const DuplicatesKeyFmt = "dupes:%s:%s:%s"

var client *redis.Client

// Init connects to Redis. On failure the client stays nil and every cache
// call below degrades to a miss.
func Init(addr, password string, db int) error {
	client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		// Close the failed client and set to nil for graceful degradation
		client.Close()
		client = nil
		return err
	}
	return nil
}

// GetClient returns the Redis client
func GetClient() *redis.Client {
	return client
}

// Close releases the connection, if any.
func Close() error {
	if client == nil {
		return nil
	}
	err := client.Close()
	client = nil
	return err
}

// GetCached returns cached data for a key
func GetCached(ctx context.Context, key string) ([]byte, bool) {
	if client == nil {
		return nil, false
	}
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetCached stores data with a TTL
func SetCached(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if client == nil {
		return
	}
	client.Set(ctx, key, data, ttl)
}

// InvalidatePattern removes all keys matching a glob pattern
func InvalidatePattern(ctx context.Context, pattern string) {
	if client == nil {
		return
	}
	keys, err := client.Keys(ctx, pattern).Result()
	if err == nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// DuplicatesKey names the cached find-duplicates result for one scan.
func DuplicatesKey(kind models.MergeKind, scope string, minSimilarity float64) string {
	if scope == "" {
		scope = "all"
	}
	return fmt.Sprintf(DuplicatesKeyFmt, kind, scope, strconv.FormatFloat(minSimilarity, 'f', -1, 64))
}

// DuplicateCache caches find-duplicates results in Redis for TTL.
type DuplicateCache struct {
	TTL time.Duration
}

func NewDuplicateCache(ttl time.Duration) *DuplicateCache {
	return &DuplicateCache{TTL: ttl}
}

func (c *DuplicateCache) Get(ctx context.Context, key string) ([]byte, bool) {
	return GetCached(ctx, key)
}

func (c *DuplicateCache) Set(ctx context.Context, key string, data []byte) {
	SetCached(ctx, key, data, c.TTL)
}

// InvalidateKind drops every cached scan of one merge kind.
// Called when: a merge or undo of that kind commits.
func (c *DuplicateCache) InvalidateKind(ctx context.Context, kind models.MergeKind) {
	InvalidatePattern(ctx, fmt.Sprintf(DuplicatesKeyFmt, kind, "*", "*"))
}
