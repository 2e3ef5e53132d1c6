package cache

import (
	"context"
	"time"

	"github.com/XavierBriggs/Pythia/pkg/models"
)

// DefaultTTL bounds how long a snapshot survives in Redis without a refresh
const DefaultTTL = 24 * time.Hour

// Cache holds the latest odds snapshot per sport.
// Put replaces the whole snapshot at once; readers never observe a partial write.
type Cache interface {
	// Get returns the cached snapshot, or nil when the sport has none
	Get(ctx context.Context, sportKey string) (*models.Snapshot, error)

	// Put stores events as the sport's current snapshot and returns what was stored
	Put(ctx context.Context, sportKey string, events []models.Event, at time.Time) (*models.Snapshot, error)
}

// stamp keeps snapshot timestamps non-decreasing per sport
func stamp(prev *models.Snapshot, at time.Time) time.Time {
	at = at.UTC()
	if prev != nil && prev.Timestamp.After(at) {
		return prev.Timestamp
	}
	return at
}

func newSnapshot(sportKey string, events []models.Event, at time.Time) *models.Snapshot {
	if events == nil {
		events = []models.Event{}
	}
	return &models.Snapshot{
		SportKey:  sportKey,
		Events:    events,
		Timestamp: at,
	}
}
