package testutil

import (
	"time"

	"github.com/XavierBriggs/Pythia/pkg/models"
)

const sportKey = "americanfootball_nfl"

// NewTestEvent creates an upcoming NFL event with no bookmakers
func NewTestEvent(eventID, homeTeam, awayTeam string, hoursUntilStart float64) models.Event {
	return models.Event{
		EventID:      eventID,
		SportKey:     sportKey,
		HomeTeam:     homeTeam,
		AwayTeam:     awayTeam,
		CommenceTime: time.Now().Add(time.Duration(hoursUntilStart * float64(time.Hour))),
		EventStatus:  "upcoming",
	}
}

// AddQuotes appends quotes for a market to the named bookmaker, creating it if needed
func AddQuotes(event *models.Event, bookKey, marketKey string, quotes ...models.Quote) {
	now := time.Now()

	for i := range event.Bookmakers {
		if event.Bookmakers[i].Key != bookKey {
			continue
		}
		for j := range event.Bookmakers[i].Markets {
			if event.Bookmakers[i].Markets[j].Key == marketKey {
				event.Bookmakers[i].Markets[j].Outcomes = append(event.Bookmakers[i].Markets[j].Outcomes, quotes...)
				return
			}
		}
		event.Bookmakers[i].Markets = append(event.Bookmakers[i].Markets, models.Market{
			Key: marketKey, LastUpdate: now, Outcomes: quotes,
		})
		return
	}

	event.Bookmakers = append(event.Bookmakers, models.Bookmaker{
		Key:        bookKey,
		Title:      bookKey,
		LastUpdate: now,
		Markets:    []models.Market{{Key: marketKey, LastUpdate: now, Outcomes: quotes}},
	})
}

// NewQuote creates a decimal-odds quote; point is nil for h2h
func NewQuote(outcomeName string, price float64, point *float64) models.Quote {
	return models.Quote{OutcomeName: outcomeName, Price: price, Point: point}
}

// GoldenFixture is an event with known arbitrage and value bet results
type GoldenFixture struct {
	Name              string
	Event             models.Event
	Market            string
	ExpectedArbitrage bool
	ExpectedProfit    float64 // Percent, pure arbitrage only
	ExpectedValueBets int     // With the default 1% margin
}

// GetGoldenFixtures returns test fixtures with expected outputs
func GetGoldenFixtures() []GoldenFixture {
	return []GoldenFixture{
		{
			Name:              "Two Way Arbitrage Across Books",
			Event:             h2hEvent("game1", [2]float64{2.10, 2.05}, [2]float64{2.00, 2.20}),
			Market:            "h2h",
			ExpectedArbitrage: true,
			ExpectedProfit:    7.4419, // 1 / (1/2.10 + 1/2.20) - 1
			ExpectedValueBets: 2,
		},
		{
			Name:              "Efficient Market",
			Event:             h2hEvent("game2", [2]float64{1.90, 1.90}, [2]float64{1.95, 1.87}),
			Market:            "h2h",
			ExpectedArbitrage: false,
			ExpectedValueBets: 2,
		},
		{
			Name:              "Identical Prices",
			Event:             h2hEvent("game3", [2]float64{1.91, 1.91}, [2]float64{1.91, 1.91}),
			Market:            "h2h",
			ExpectedArbitrage: false,
			ExpectedValueBets: 0,
		},
		{
			Name:              "Totals Line",
			Event:             totalsEvent("game4", 47.5),
			Market:            "totals",
			ExpectedArbitrage: true,
			ExpectedProfit:    2.4780, // 1 / (1/2.08 + 1/2.02) - 1
			ExpectedValueBets: 2,
		},
	}
}

func h2hEvent(eventID string, bookA, bookB [2]float64) models.Event {
	event := NewTestEvent(eventID, "Kansas City Chiefs", "Buffalo Bills", 48)
	AddQuotes(&event, "pinnacle", "h2h",
		NewQuote("Kansas City Chiefs", bookA[0], nil),
		NewQuote("Buffalo Bills", bookA[1], nil),
	)
	AddQuotes(&event, "unibet", "h2h",
		NewQuote("Kansas City Chiefs", bookB[0], nil),
		NewQuote("Buffalo Bills", bookB[1], nil),
	)
	return event
}

func totalsEvent(eventID string, line float64) models.Event {
	event := NewTestEvent(eventID, "Philadelphia Eagles", "Dallas Cowboys", 72)
	AddQuotes(&event, "pinnacle", "totals",
		NewQuote("Over", 2.08, ptrFloat64(line)),
		NewQuote("Under", 1.80, ptrFloat64(line)),
	)
	AddQuotes(&event, "unibet", "totals",
		NewQuote("Over", 1.85, ptrFloat64(line)),
		NewQuote("Under", 2.02, ptrFloat64(line)),
	)
	return event
}

func ptrFloat64(f float64) *float64 {
	return &f
}
