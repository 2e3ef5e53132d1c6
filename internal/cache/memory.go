package cache

import (
	"context"
	"sync"
	"time"

	"github.com/XavierBriggs/Pythia/pkg/models"
)

// MemoryCache keeps snapshots in process memory
type MemoryCache struct {
	mu        sync.RWMutex
	snapshots map[string]*models.Snapshot
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{snapshots: make(map[string]*models.Snapshot)}
}

// Get returns the stored snapshot pointer; snapshots are never mutated after Put
func (c *MemoryCache) Get(ctx context.Context, sportKey string) (*models.Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshots[sportKey], nil
}

// Put swaps in a new snapshot
func (c *MemoryCache) Put(ctx context.Context, sportKey string, events []models.Event, at time.Time) (*models.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := newSnapshot(sportKey, events, stamp(c.snapshots[sportKey], at))
	c.snapshots[sportKey] = snapshot
	return snapshot, nil
}
