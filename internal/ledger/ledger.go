package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/XavierBriggs/Pythia/pkg/models"
)

const (
	// DefaultMonthlyLimit is the vendor plan's monthly call allowance
	DefaultMonthlyLimit = 450

	// DefaultHistoryMonths is how many months History returns by default
	DefaultHistoryMonths = 12

	monthKeyLayout = "2006-01"
)

// Store persists monthly usage counters.
// Increment must be atomic: concurrent callers never lose an increment.
type Store interface {
	// Get returns the record for a month, or nil when none exists yet
	Get(ctx context.Context, month string) (*models.UsageRecord, error)

	// Increment adds one call to the month and returns the new count
	Increment(ctx context.Context, month string, at time.Time) (int, error)

	// Recent returns up to limit records, most recent month first
	Recent(ctx context.Context, limit int) ([]models.UsageRecord, error)
}

// Ledger enforces the hard monthly call limit on top of a Store.
// Months are keyed YYYY-MM in UTC.
type Ledger struct {
	store Store
	limit int
	now   func() time.Time
	log   *zap.Logger
}

// Option customizes a Ledger
type Option func(*Ledger)

// WithClock overrides the ledger's time source
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a ledger with the given monthly limit
func New(store Store, limit int, log *zap.Logger, opts ...Option) *Ledger {
	if limit <= 0 {
		limit = DefaultMonthlyLimit
	}
	l := &Ledger{
		store: store,
		limit: limit,
		now:   time.Now,
		log:   log.Named("ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MonthKey formats the UTC calendar month of t as YYYY-MM
func MonthKey(t time.Time) string {
	return t.UTC().Format(monthKeyLayout)
}

// Limit returns the monthly call limit
func (l *Ledger) Limit() int {
	return l.limit
}

// CurrentUsage returns this month's usage; a month without a record reports zero calls
func (l *Ledger) CurrentUsage(ctx context.Context) (models.Usage, error) {
	month := MonthKey(l.now())

	record, err := l.store.Get(ctx, month)
	if err != nil {
		return models.Usage{}, fmt.Errorf("get usage for %s: %w", month, err)
	}

	usage := models.Usage{
		Month:     month,
		Limit:     l.limit,
		Remaining: l.limit,
	}
	if record == nil {
		return usage, nil
	}

	usage.Count = record.Count
	usage.Remaining = max(l.limit-record.Count, 0)
	usage.LastAPICall = record.LastAPICall
	return usage, nil
}

// CanAdmit reports whether another metered call fits under the limit.
// It fails closed: if usage cannot be read, no call is admitted.
func (l *Ledger) CanAdmit(ctx context.Context) bool {
	usage, err := l.CurrentUsage(ctx)
	if err != nil {
		l.log.Warn("usage unavailable, denying call", zap.Error(err))
		return false
	}
	return usage.Count < l.limit
}

// RecordCall counts one metered call against the current month and returns the new count
func (l *Ledger) RecordCall(ctx context.Context) (int, error) {
	now := l.now()
	month := MonthKey(now)

	count, err := l.store.Increment(ctx, month, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("increment usage for %s: %w", month, err)
	}

	l.log.Info("api call recorded",
		zap.String("month", month),
		zap.Int("count", count),
		zap.Int("limit", l.limit),
	)
	return count, nil
}

// History returns up to maxMonths usage records, most recent first
func (l *Ledger) History(ctx context.Context, maxMonths int) ([]models.UsageRecord, error) {
	if maxMonths <= 0 {
		maxMonths = DefaultHistoryMonths
	}

	records, err := l.store.Recent(ctx, maxMonths)
	if err != nil {
		return nil, fmt.Errorf("query usage history: %w", err)
	}

	for i := range records {
		records[i].Limit = l.limit
	}
	return records, nil
}
