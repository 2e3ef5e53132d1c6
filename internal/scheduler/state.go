package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/Pythia/pkg/models"
)

const (
	stateKeyFormat = "schedule:%s:daily:%s" // schedule:americanfootball_nfl:daily:2026-10-19
	stateTTL       = 7 * 24 * time.Hour
)

// StateStore persists each sport's daily schedule state across restarts
type StateStore interface {
	// Load returns the state saved for a sport and day, or nil when none exists
	Load(ctx context.Context, sportKey, date string) (*models.ScheduleState, error)

	// Save overwrites the state for state.SportKey and state.Date
	Save(ctx context.Context, state models.ScheduleState) error
}

// RedisStateStore keeps one expiring hash per sport and day
type RedisStateStore struct {
	redis *redis.Client
}

var _ StateStore = (*RedisStateStore)(nil)

// NewRedisStateStore creates a Redis-backed state store
func NewRedisStateStore(redisClient *redis.Client) *RedisStateStore {
	return &RedisStateStore{redis: redisClient}
}

// Load reads the day's hash
func (s *RedisStateStore) Load(ctx context.Context, sportKey, date string) (*models.ScheduleState, error) {
	fields, err := s.redis.HGetAll(ctx, stateKey(sportKey, date)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	state := &models.ScheduleState{SportKey: sportKey, Date: date}

	if raw := fields["calls"]; raw != "" {
		calls, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parse calls: %w", err)
		}
		state.TodayCallCount = calls
	}

	if raw := fields["last_update"]; raw != "" {
		last, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse last_update: %w", err)
		}
		state.LastUpdateTime = &last
	}

	return state, nil
}

// Save writes the hash and refreshes its expiry in one transaction
func (s *RedisStateStore) Save(ctx context.Context, state models.ScheduleState) error {
	key := stateKey(state.SportKey, state.Date)

	lastUpdate := ""
	if state.LastUpdateTime != nil {
		lastUpdate = state.LastUpdateTime.UTC().Format(time.RFC3339Nano)
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"calls", state.TodayCallCount,
			"last_update", lastUpdate,
			"date", state.Date,
		)
		pipe.Expire(ctx, key, stateTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis tx exec: %w", err)
	}
	return nil
}

func stateKey(sportKey, date string) string {
	return fmt.Sprintf(stateKeyFormat, sportKey, date)
}

// MemoryStateStore keeps states in process memory
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]models.ScheduleState
}

var _ StateStore = (*MemoryStateStore)(nil)

// NewMemoryStateStore creates an empty in-memory state store
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]models.ScheduleState)}
}

// Load returns a copy of the stored state
func (s *MemoryStateStore) Load(ctx context.Context, sportKey, date string) (*models.ScheduleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[stateKey(sportKey, date)]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// Save stores a copy of state
func (s *MemoryStateStore) Save(ctx context.Context, state models.ScheduleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[stateKey(state.SportKey, state.Date)] = state
	return nil
}
