package theoddsapi

import (
	"math"
	"time"

	"github.com/XavierBriggs/Pythia/pkg/models"
)

// Wire format of GET /v4/sports/{sport}/odds

type wireEvent struct {
	ID           string          `json:"id"`
	SportKey     string          `json:"sport_key"`
	SportTitle   string          `json:"sport_title"`
	CommenceTime string          `json:"commence_time"`
	HomeTeam     string          `json:"home_team"`
	AwayTeam     string          `json:"away_team"`
	Bookmakers   []wireBookmaker `json:"bookmakers"`
}

type wireBookmaker struct {
	Key        string       `json:"key"`
	Title      string       `json:"title"`
	LastUpdate string       `json:"last_update"`
	Markets    []wireMarket `json:"markets"`
}

type wireMarket struct {
	Key        string        `json:"key"`
	LastUpdate string        `json:"last_update"`
	Outcomes   []wireOutcome `json:"outcomes"`
}

type wireOutcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

// toEvents validates the payload at the boundary.
// Events without an id, repeated ids and unparsable kickoff times are dropped;
// so are nameless or non-positive quotes and markets left empty.
func toEvents(payload []wireEvent, now time.Time) []models.Event {
	events := make([]models.Event, 0, len(payload))
	seen := make(map[string]struct{}, len(payload))

	for _, w := range payload {
		if w.ID == "" {
			continue
		}
		if _, dup := seen[w.ID]; dup {
			continue
		}
		kickoff, err := time.Parse(time.RFC3339, w.CommenceTime)
		if err != nil {
			continue
		}
		seen[w.ID] = struct{}{}

		status := "upcoming"
		if now.After(kickoff) {
			status = "live"
		}

		event := models.Event{
			EventID:      w.ID,
			SportKey:     w.SportKey,
			HomeTeam:     w.HomeTeam,
			AwayTeam:     w.AwayTeam,
			CommenceTime: kickoff.UTC(),
			EventStatus:  status,
			Bookmakers:   make([]models.Bookmaker, 0, len(w.Bookmakers)),
		}
		for _, wb := range w.Bookmakers {
			if book, ok := toBookmaker(wb); ok {
				event.Bookmakers = append(event.Bookmakers, book)
			}
		}

		events = append(events, event)
	}

	return events
}

// toBookmaker reports false when nothing usable is left
func toBookmaker(wb wireBookmaker) (models.Bookmaker, bool) {
	book := models.Bookmaker{
		Key:        wb.Key,
		Title:      wb.Title,
		LastUpdate: rfc3339OrZero(wb.LastUpdate),
	}

	for _, wm := range wb.Markets {
		if wm.Key == "" {
			continue
		}

		quotes := make([]models.Quote, 0, len(wm.Outcomes))
		for _, wo := range wm.Outcomes {
			if wo.Name == "" || wo.Price <= 0 || math.IsInf(wo.Price, 0) || math.IsNaN(wo.Price) {
				continue
			}
			q := models.Quote{OutcomeName: wo.Name, Price: wo.Price}
			if wo.Point != nil {
				p := *wo.Point
				q.Point = &p
			}
			quotes = append(quotes, q)
		}
		if len(quotes) == 0 {
			continue
		}

		book.Markets = append(book.Markets, models.Market{
			Key:        wm.Key,
			LastUpdate: rfc3339OrZero(wm.LastUpdate),
			Outcomes:   quotes,
		})
	}

	return book, len(book.Markets) > 0
}

func rfc3339OrZero(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
