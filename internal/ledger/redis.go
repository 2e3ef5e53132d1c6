package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/Pythia/pkg/models"
)

const (
	usageKeyFormat = "usage:monthly:%s" // usage:monthly:2026-10
	monthIndexKey  = "usage:months"
)

// RedisStore keeps one hash per month plus a sorted index of months.
// Increments use HINCRBY inside MULTI/EXEC, so concurrent writers never lose a call.
type RedisStore struct {
	redis *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed usage store
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{redis: redisClient}
}

// Get reads the month's hash
func (s *RedisStore) Get(ctx context.Context, month string) (*models.UsageRecord, error) {
	fields, err := s.redis.HGetAll(ctx, usageKey(month)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return parseUsage(month, fields)
}

// Increment atomically bumps the month's count and records the call time
func (s *RedisStore) Increment(ctx context.Context, month string, at time.Time) (int, error) {
	score, err := monthScore(month)
	if err != nil {
		return 0, err
	}

	key := usageKey(month)
	var count *redis.IntCmd

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.HIncrBy(ctx, key, "count", 1)
		pipe.HSet(ctx, key,
			"month", month,
			"last_api_call", at.UTC().Format(time.RFC3339Nano),
		)
		pipe.ZAdd(ctx, monthIndexKey, redis.Z{Score: score, Member: month})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis tx exec: %w", err)
	}

	return int(count.Val()), nil
}

// Recent walks the month index newest first and loads each hash in one pipeline
func (s *RedisStore) Recent(ctx context.Context, limit int) ([]models.UsageRecord, error) {
	months, err := s.redis.ZRevRange(ctx, monthIndexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange: %w", err)
	}
	if len(months) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(months))
	for i, month := range months {
		cmds[i] = pipe.HGetAll(ctx, usageKey(month))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis pipeline exec: %w", err)
	}

	records := make([]models.UsageRecord, 0, len(months))
	for i, month := range months {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		record, err := parseUsage(month, fields)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	return records, nil
}

func usageKey(month string) string {
	return fmt.Sprintf(usageKeyFormat, month)
}

// monthScore orders months numerically: 2026-10 -> 202610
func monthScore(month string) (float64, error) {
	t, err := time.Parse(monthKeyLayout, month)
	if err != nil {
		return 0, fmt.Errorf("invalid month key %q: %w", month, err)
	}
	return float64(t.Year()*100 + int(t.Month())), nil
}

func parseUsage(month string, fields map[string]string) (*models.UsageRecord, error) {
	record := &models.UsageRecord{Month: month}

	if raw, ok := fields["count"]; ok {
		count, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parse usage count %q: %w", raw, err)
		}
		record.Count = count
	}

	if raw := fields["last_api_call"]; raw != "" {
		if at, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			record.LastAPICall = &at
		}
	}

	return record, nil
}
