package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/XavierBriggs/Pythia/pkg/models"
)

// MemoryStore keeps usage in process memory; counts are lost on restart
type MemoryStore struct {
	records map[string]models.UsageRecord
	mu      sync.Mutex
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]models.UsageRecord),
	}
}

// Get returns a copy of the month's record
func (s *MemoryStore) Get(ctx context.Context, month string) (*models.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[month]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// Increment adds one call under the store lock
func (s *MemoryStore) Increment(ctx context.Context, month string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.records[month]
	record.Month = month
	record.Count++
	record.LastAPICall = &at
	s.records[month] = record

	return record.Count, nil
}

// Recent returns records ordered by month descending
func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]models.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]models.UsageRecord, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Month > records[j].Month
	})

	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
