package models

import "time"

// UsageRecord is the persisted call counter for one calendar month (YYYY-MM, UTC)
type UsageRecord struct {
	Month       string     `json:"month"`
	Count       int        `json:"count"`
	Limit       int        `json:"limit"`
	LastAPICall *time.Time `json:"last_api_call"`
}

// Usage is the current month's consumption against the monthly limit
type Usage struct {
	Month       string     `json:"month"`
	Count       int        `json:"count"`
	Limit       int        `json:"limit"`
	Remaining   int        `json:"remaining"`
	LastAPICall *time.Time `json:"last_api_call"`
}

// ScheduleState is the scheduler's per-day state, mirrored to storage after each fetch
type ScheduleState struct {
	SportKey       string     `json:"sport_key"`
	Date           string     `json:"date"` // YYYY-MM-DD, UTC
	LastUpdateTime *time.Time `json:"last_update"`
	TodayCallCount int        `json:"calls"`
}
