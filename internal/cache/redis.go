package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/Pythia/pkg/models"
)

// RedisCache stores each sport's snapshot as one JSON value.
// A single SET replaces the value, so readers see the old snapshot or the new one.
type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache creates a Redis-backed snapshot cache
func NewRedisCache(redisClient *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Get loads and decodes the sport's snapshot
func (c *RedisCache) Get(ctx context.Context, sportKey string) (*models.Snapshot, error) {
	data, err := c.load(ctx, sportKey)
	if err != nil || data == nil {
		return nil, err
	}
	return decodeSnapshot(data)
}

// Put writes the snapshot with the cache TTL.
// Writers for one sport are serialized by its scheduler, so read-then-set is safe here.
func (c *RedisCache) Put(ctx context.Context, sportKey string, events []models.Event, at time.Time) (*models.Snapshot, error) {
	data, err := c.load(ctx, sportKey)
	if err != nil {
		return nil, err
	}

	// An undecodable previous value counts as absent and gets replaced.
	var prev *models.Snapshot
	if data != nil {
		prev, _ = decodeSnapshot(data)
	}

	snapshot := newSnapshot(sportKey, events, stamp(prev, at))

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := c.redis.Set(ctx, buildKey(sportKey), payload, c.ttl).Err(); err != nil {
		return nil, fmt.Errorf("redis set: %w", err)
	}
	return snapshot, nil
}

func (c *RedisCache) load(ctx context.Context, sportKey string) ([]byte, error) {
	data, err := c.redis.Get(ctx, buildKey(sportKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

// buildKey formats odds:cache:{sport_key}
func buildKey(sportKey string) string {
	return fmt.Sprintf("odds:cache:%s", sportKey)
}
