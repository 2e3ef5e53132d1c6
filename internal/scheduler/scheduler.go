package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/XavierBriggs/Pythia/internal/cache"
	"github.com/XavierBriggs/Pythia/internal/metrics"
	"github.com/XavierBriggs/Pythia/pkg/contracts"
	"github.com/XavierBriggs/Pythia/pkg/models"
)

// ErrFetchFailed wraps every upstream fetch failure returned by Update
var ErrFetchFailed = errors.New("fetch failed")

// Reason names what triggered an update attempt
type Reason string

const (
	ReasonScheduled    Reason = "scheduled"
	ReasonForce        Reason = "force"
	ReasonNoCache      Reason = "no-cache"
	ReasonCacheExpired Reason = "cache-expired"
)

// bypassesCache reports whether the reason must fetch even when the cache is fresh
func (r Reason) bypassesCache() bool {
	return r == ReasonForce || r == ReasonNoCache
}

// Status is the outcome of an update attempt that did not fail
type Status string

const (
	StatusFetched         Status = "fetched"
	StatusCached          Status = "cached"
	StatusSkippedQuota    Status = "skipped_quota"
	StatusSkippedDailyCap Status = "skipped_daily_cap"
)

// Skipped reports whether a limit prevented the fetch
func (s Status) Skipped() bool {
	return s == StatusSkippedQuota || s == StatusSkippedDailyCap
}

// Result describes one completed update attempt.
// Snapshot is nil when the attempt was skipped by a limit.
type Result struct {
	AttemptID     string           `json:"attempt_id"`
	SportKey      string           `json:"sport_key"`
	Reason        Reason           `json:"reason"`
	Status        Status           `json:"status"`
	Snapshot      *models.Snapshot `json:"snapshot,omitempty"`
	UsageRecorded bool             `json:"usage_recorded"`
	Rejected      int              `json:"rejected_events"`
}

// Ledger is the slice of the usage ledger the scheduler needs
type Ledger interface {
	CanAdmit(ctx context.Context) bool
	RecordCall(ctx context.Context) (int, error)
}

// State is the scheduler's debug view
type State struct {
	SportKey        string     `json:"sport_key"`
	LastUpdate      *time.Time `json:"last_update"`
	NextUpdate      time.Time  `json:"next_update"`
	TodayCalls      int        `json:"today_calls"`
	DailyCallCap    int        `json:"daily_call_cap"`
	Updating        bool       `json:"updating"`
	ShouldUpdateNow bool       `json:"should_update_now"`
	Interval        string     `json:"interval"`
	SlotHours       []int      `json:"slot_hours"`
}

// Scheduler decides when one sport's odds are fetched and runs the fetch cycle.
// At most one fetch is in flight per scheduler.
type Scheduler struct {
	sport     contracts.SportModule
	adapter   contracts.VendorAdapter
	ledger    Ledger
	cache     cache.Cache
	states    StateStore
	listeners []contracts.UpdateListener
	metrics   *metrics.Collector
	cfg       Config
	log       *zap.Logger
	now       func() time.Time

	updating atomic.Bool

	mu         sync.Mutex
	lastUpdate time.Time
	todayCalls int
	day        string

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option customizes a Scheduler
type Option func(*Scheduler)

// WithListeners registers listeners notified after every successful fetch
func WithListeners(listeners ...contracts.UpdateListener) Option {
	return func(s *Scheduler) { s.listeners = append(s.listeners, listeners...) }
}

// WithMetrics records update outcomes on c
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Scheduler) { s.metrics = c }
}

// WithClock overrides the scheduler's time source
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a scheduler for one sport
func NewScheduler(
	sport contracts.SportModule,
	adapter contracts.VendorAdapter,
	ledger Ledger,
	oddsCache cache.Cache,
	states StateStore,
	cfg Config,
	log *zap.Logger,
	opts ...Option,
) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}

	s := &Scheduler{
		sport:    sport,
		adapter:  adapter,
		ledger:   ledger,
		cache:    oddsCache,
		states:   states,
		cfg:      cfg,
		log:      log.Named("scheduler").With(zap.String("sport", sport.GetSportKey())),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.day = DayKey(s.now())
	return s, nil
}

// SportKey returns the sport this scheduler fetches
func (s *Scheduler) SportKey() string {
	return s.sport.GetSportKey()
}

// Latest returns the cached snapshot without fetching; nil when nothing is cached
func (s *Scheduler) Latest(ctx context.Context) (*models.Snapshot, error) {
	return s.cache.Get(ctx, s.SportKey())
}

// ForceUpdate fetches regardless of cache freshness; limits still apply
func (s *Scheduler) ForceUpdate(ctx context.Context) (*Result, error) {
	return s.Update(ctx, ReasonForce)
}

// Update runs one fetch cycle.
// It returns (nil, nil) when another update is already in flight.
// Limit denials and fresh-cache hits are results, not errors.
func (s *Scheduler) Update(ctx context.Context, reason Reason) (*Result, error) {
	if !s.updating.CompareAndSwap(false, true) {
		s.log.Debug("update already in progress", zap.String("reason", string(reason)))
		return nil, nil
	}
	defer s.updating.Store(false)

	sportKey := s.SportKey()
	result := &Result{
		AttemptID: uuid.NewString(),
		SportKey:  sportKey,
		Reason:    reason,
	}
	log := s.log.With(
		zap.String("attempt_id", result.AttemptID),
		zap.String("reason", string(reason)),
	)

	now := s.now()

	if s.dailyCapReached(now) {
		log.Warn("daily call cap reached, skipping fetch", zap.Int("cap", s.cfg.DailyCallCap))
		result.Status = StatusSkippedDailyCap
		s.metrics.Update(sportKey, metrics.OutcomeSkippedDailyCap)
		return result, nil
	}

	if !s.ledger.CanAdmit(ctx) {
		log.Warn("monthly limit reached, skipping fetch")
		result.Status = StatusSkippedQuota
		s.metrics.Update(sportKey, metrics.OutcomeSkippedQuota)
		return result, nil
	}

	if !reason.bypassesCache() {
		snapshot, err := s.cache.Get(ctx, sportKey)
		if err != nil {
			log.Warn("cache read failed, fetching", zap.Error(err))
		} else if snapshot != nil && snapshot.Age(now) < s.cfg.Interval {
			log.Info("cache fresh, skipping fetch", zap.Duration("age", snapshot.Age(now)))
			result.Status = StatusCached
			result.Snapshot = snapshot
			s.metrics.Update(sportKey, metrics.OutcomeCached)
			return result, nil
		}
	}

	events, err := s.fetch(ctx)
	if err != nil {
		log.Error("fetch failed", zap.Error(err))
		s.metrics.Update(sportKey, metrics.OutcomeFailure)
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, sportKey, err)
	}

	// The vendor call is spent; metering and caching must outlive the caller.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)
	defer cancel()

	events, result.Rejected = s.validate(events, log)
	result.Status = StatusFetched
	result.UsageRecorded = true

	count, err := s.ledger.RecordCall(ctx)
	if err != nil {
		log.Error("record api call failed, usage under-counted", zap.Error(err))
		s.metrics.LedgerWriteFailure()
		result.UsageRecorded = false
	} else {
		s.metrics.MonthlyUsage(count)
	}

	fetchedAt := s.now()
	snapshot, err := s.cache.Put(ctx, sportKey, events, fetchedAt)
	if err != nil {
		log.Error("cache write failed", zap.Error(err))
		snapshot = &models.Snapshot{SportKey: sportKey, Events: events, Timestamp: fetchedAt.UTC()}
	}
	result.Snapshot = snapshot

	state := s.recordFetch(fetchedAt)
	if err := s.states.Save(ctx, state); err != nil {
		log.Warn("persist schedule state failed", zap.Error(err))
	}

	s.notify(ctx, *snapshot, log)
	s.metrics.Update(sportKey, metrics.OutcomeSuccess)

	log.Info("odds updated",
		zap.Int("events", len(snapshot.Events)),
		zap.Int("rejected", result.Rejected),
		zap.Int("today_calls", state.TodayCallCount),
	)
	return result, nil
}

// fetch calls the vendor under the configured timeout
func (s *Scheduler) fetch(ctx context.Context) ([]models.Event, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	events, err := s.adapter.FetchOdds(fetchCtx, &models.FetchOddsOptions{
		Sport:   s.SportKey(),
		Regions: s.sport.GetRegions(),
		Markets: s.sport.GetMarkets(),
	})
	s.metrics.FetchDuration(s.SportKey(), time.Since(start))

	return events, err
}

// validate drops events the sport module rejects
func (s *Scheduler) validate(events []models.Event, log *zap.Logger) ([]models.Event, int) {
	valid := make([]models.Event, 0, len(events))
	for i := range events {
		if err := s.sport.ValidateEvent(&events[i]); err != nil {
			log.Debug("event rejected", zap.String("event_id", events[i].EventID), zap.Error(err))
			continue
		}
		valid = append(valid, events[i])
	}
	return valid, len(events) - len(valid)
}

// notify runs every listener; failures are logged and counted, never returned
func (s *Scheduler) notify(ctx context.Context, snapshot models.Snapshot, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)
	defer cancel()

	for _, l := range s.listeners {
		if err := l.OnOddsUpdated(ctx, snapshot); err != nil {
			log.Error("update listener failed", zap.String("listener", l.Name()), zap.Error(err))
			s.metrics.ListenerError(l.Name())
		}
	}
}

// rollDayLocked resets the daily counter when the UTC day changes
func (s *Scheduler) rollDayLocked(now time.Time) {
	if day := DayKey(now); day != s.day {
		s.day = day
		s.todayCalls = 0
	}
}

func (s *Scheduler) dailyCapReached(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollDayLocked(now)
	return s.todayCalls >= s.cfg.DailyCallCap
}

// recordFetch counts a successful fetch and returns the state to persist
func (s *Scheduler) recordFetch(at time.Time) models.ScheduleState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollDayLocked(at)
	s.todayCalls++
	s.lastUpdate = at.UTC()

	last := s.lastUpdate
	return models.ScheduleState{
		SportKey:       s.SportKey(),
		Date:           s.day,
		LastUpdateTime: &last,
		TodayCallCount: s.todayCalls,
	}
}

// ShouldUpdateNow reports whether a scheduled fetch is due.
// The daily cap wins over elapsed time; with no previous update it is always due.
func (s *Scheduler) ShouldUpdateNow() bool {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollDayLocked(now)
	if s.todayCalls >= s.cfg.DailyCallCap {
		return false
	}
	if s.lastUpdate.IsZero() {
		return true
	}
	return now.Sub(s.lastUpdate) >= s.cfg.Interval
}

// NextUpdateTime is last update + interval when that is still ahead,
// otherwise the next UTC slot hour.
func (s *Scheduler) NextUpdateTime() time.Time {
	now := s.now()

	s.mu.Lock()
	last := s.lastUpdate
	s.mu.Unlock()

	if !last.IsZero() {
		if next := last.Add(s.cfg.Interval); next.After(now) {
			return next
		}
	}
	return nextSlot(now, s.cfg.SlotHours)
}

// Status returns the debug view of the scheduler
func (s *Scheduler) Status() State {
	now := s.now()

	s.mu.Lock()
	s.rollDayLocked(now)
	var last *time.Time
	if !s.lastUpdate.IsZero() {
		t := s.lastUpdate
		last = &t
	}
	todayCalls := s.todayCalls
	s.mu.Unlock()

	return State{
		SportKey:        s.SportKey(),
		LastUpdate:      last,
		NextUpdate:      s.NextUpdateTime(),
		TodayCalls:      todayCalls,
		DailyCallCap:    s.cfg.DailyCallCap,
		Updating:        s.updating.Load(),
		ShouldUpdateNow: s.ShouldUpdateNow(),
		Interval:        s.cfg.Interval.String(),
		SlotHours:       append([]int(nil), s.cfg.SlotHours...),
	}
}

// Start restores today's state, refreshes a missing or expired cache,
// and arms the background timer.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.loadState(ctx); err != nil {
		s.log.Warn("load schedule state failed, starting fresh", zap.Error(err))
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.startupCheck(ctx)
		s.run(ctx)
	}()

	s.log.Info("scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("daily_call_cap", s.cfg.DailyCallCap),
		zap.Ints("slot_hours", s.cfg.SlotHours),
	)
	return nil
}

// Stop gracefully shuts down the scheduler and waits for an in-flight cycle
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

func (s *Scheduler) loadState(ctx context.Context) error {
	day := DayKey(s.now())

	state, err := s.states.Load(ctx, s.SportKey(), day)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.day = day
	s.todayCalls = state.TodayCallCount
	if state.LastUpdateTime != nil {
		s.lastUpdate = state.LastUpdateTime.UTC()
	}
	return nil
}

// startupCheck fetches when the cache is missing or older than the interval
func (s *Scheduler) startupCheck(ctx context.Context) {
	var reason Reason

	snapshot, err := s.cache.Get(ctx, s.SportKey())
	switch {
	case err != nil:
		s.log.Warn("cache read failed at startup", zap.Error(err))
		reason = ReasonNoCache
	case snapshot == nil:
		reason = ReasonNoCache
	case snapshot.Age(s.now()) >= s.cfg.Interval:
		reason = ReasonCacheExpired
	default:
		s.mu.Lock()
		if s.lastUpdate.IsZero() {
			s.lastUpdate = snapshot.Timestamp.UTC()
		}
		s.mu.Unlock()
		s.log.Info("cache fresh at startup", zap.Time("cached_at", snapshot.Timestamp))
		return
	}

	if _, err := s.Update(ctx, reason); err != nil {
		s.log.Error("startup update failed", zap.Error(err))
	}
}

// run re-arms a timer from NextUpdateTime after every firing
func (s *Scheduler) run(ctx context.Context) {
	for {
		delay := s.NextUpdateTime().Sub(s.now())
		if delay < minTimerDelay {
			delay = minTimerDelay
		}
		timer := time.NewTimer(delay)

		select {
		case <-timer.C:
			if !s.ShouldUpdateNow() {
				continue
			}
			if _, err := s.Update(ctx, ReasonScheduled); err != nil {
				s.log.Error("scheduled update failed", zap.Error(err))
			}

		case <-s.stopChan:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}
