package models

import (
	"fmt"
	"strconv"
	"time"
)

// Quote is one bookmaker's decimal price for one outcome of a market
type Quote struct {
	OutcomeName string   `json:"outcome_name"`
	Price       float64  `json:"price"` // Decimal odds, > 1 for any real line
	Bookmaker   string   `json:"bookmaker,omitempty"`
	Point       *float64 `json:"point,omitempty"` // For spreads/totals
}

// OutcomeKey identifies an outcome within a market, including the line when present.
// "Over 47.5" and "Kansas City Chiefs -3.5" are distinct keys from their opposite sides.
func (q Quote) OutcomeKey() string {
	if q.Point == nil {
		return q.OutcomeName
	}
	if q.OutcomeName == "Over" || q.OutcomeName == "Under" {
		return q.OutcomeName + " " + strconv.FormatFloat(*q.Point, 'f', -1, 64)
	}
	return fmt.Sprintf("%s %+g", q.OutcomeName, *q.Point)
}

// Market holds one bookmaker's quotes for a market key (h2h, spreads, totals)
type Market struct {
	Key        string    `json:"key"`
	LastUpdate time.Time `json:"last_update"`
	Outcomes   []Quote   `json:"outcomes"`
}

// Bookmaker groups the markets offered by one book for an event
type Bookmaker struct {
	Key        string    `json:"key"`
	Title      string    `json:"title"`
	LastUpdate time.Time `json:"last_update"`
	Markets    []Market  `json:"markets"`
}

// Name returns the display title, falling back to the vendor key
func (b Bookmaker) Name() string {
	if b.Title != "" {
		return b.Title
	}
	return b.Key
}

// Event represents a sporting event with every bookmaker's odds
type Event struct {
	EventID      string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	CommenceTime time.Time   `json:"commence_time"`
	EventStatus  string      `json:"event_status"` // upcoming, live
	Bookmakers   []Bookmaker `json:"bookmakers"`
}

// Matchup returns the "Home vs Away" label used for opportunities
func (e Event) Matchup() string {
	return fmt.Sprintf("%s vs %s", e.HomeTeam, e.AwayTeam)
}

// QuotesFor flattens every bookmaker's quotes for a market, tagging each with its bookmaker
func (e Event) QuotesFor(marketKey string) []Quote {
	var quotes []Quote
	for _, book := range e.Bookmakers {
		for _, market := range book.Markets {
			if market.Key != marketKey {
				continue
			}
			for _, q := range market.Outcomes {
				q.Bookmaker = book.Name()
				quotes = append(quotes, q)
			}
		}
	}
	return quotes
}

// BookmakersFor counts the bookmakers offering a market
func (e Event) BookmakersFor(marketKey string) int {
	count := 0
	for _, book := range e.Bookmakers {
		for _, market := range book.Markets {
			if market.Key == marketKey && len(market.Outcomes) > 0 {
				count++
				break
			}
		}
	}
	return count
}

// Snapshot is the cached result of one successful fetch for a sport
type Snapshot struct {
	SportKey  string    `json:"sport_key"`
	Events    []Event   `json:"events"`
	Timestamp time.Time `json:"timestamp"`
}

// Age returns how old the snapshot is at the given instant
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.Timestamp)
}

// FetchOddsOptions contains parameters for fetching odds
type FetchOddsOptions struct {
	Sport   string
	Regions []string
	Markets []string
}

// RateLimits contains the vendor-reported quota from the last response
type RateLimits struct {
	RequestsRemaining int       `json:"requests_remaining"`
	RequestsUsed      int       `json:"requests_used"`
	UpdatedAt         time.Time `json:"updated_at"`
}
