package scheduler

import (
	"fmt"
	"sort"
	"time"
)

const (
	// DefaultInterval is the minimum spacing between metered fetches for one sport
	DefaultInterval = 3 * time.Hour

	// DefaultFetchTimeout bounds a single upstream fetch including retries
	DefaultFetchTimeout = 30 * time.Second

	// DefaultDailyCallCap applies when no cap is configured or derivable
	DefaultDailyCallCap = 8

	// minTimerDelay keeps the background timer from spinning when the next time is already due
	minTimerDelay = time.Second
)

// DefaultSlotHours are the UTC wall-clock hours used when no recent update anchors the schedule
func DefaultSlotHours() []int {
	return []int{0, 3, 6, 9, 12, 15, 18, 21}
}

// Config controls when a sport's scheduler fetches
type Config struct {
	Interval     time.Duration
	DailyCallCap int
	SlotHours    []int // UTC hours, 0-23
	FetchTimeout time.Duration
}

// DefaultConfig returns the 3-hour cadence with eight daily slots
func DefaultConfig() Config {
	return Config{
		Interval:     DefaultInterval,
		DailyCallCap: DefaultDailyCallCap,
		SlotHours:    DefaultSlotHours(),
		FetchTimeout: DefaultFetchTimeout,
	}
}

// DeriveDailyCap spreads the monthly limit over 30 days, never exceeding one call per slot
func DeriveDailyCap(monthlyLimit int, slotHours []int) int {
	limitCap := monthlyLimit / 30
	if len(slotHours) > 0 && len(slotHours) < limitCap {
		limitCap = len(slotHours)
	}
	if limitCap < 1 {
		return 1
	}
	return limitCap
}

// Validate checks the config and fills defaults for unset fields
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.DailyCallCap <= 0 {
		c.DailyCallCap = DefaultDailyCallCap
	}
	if len(c.SlotHours) == 0 {
		c.SlotHours = DefaultSlotHours()
	}

	seen := make(map[int]bool, len(c.SlotHours))
	hours := make([]int, 0, len(c.SlotHours))
	for _, h := range c.SlotHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("slot hour %d out of range 0-23", h)
		}
		if !seen[h] {
			seen[h] = true
			hours = append(hours, h)
		}
	}
	sort.Ints(hours)
	c.SlotHours = hours

	return nil
}

// DayKey formats the UTC calendar day of t as YYYY-MM-DD
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// nextSlot returns the first slot strictly after now, rolling into the next UTC day
func nextSlot(now time.Time, slotHours []int) time.Time {
	now = now.UTC()
	y, m, d := now.Date()

	for _, h := range slotHours {
		candidate := time.Date(y, m, d, h, 0, 0, 0, time.UTC)
		if candidate.After(now) {
			return candidate
		}
	}

	return time.Date(y, m, d+1, slotHours[0], 0, 0, 0, time.UTC)
}
