package americanfootball_nfl

import (
	"fmt"
	"strings"
	"time"

	"github.com/XavierBriggs/Pythia/pkg/models"
)

func validateEvent(event *models.Event, config *Config, now time.Time) error {
	if event.SportKey != config.SportKey {
		return fmt.Errorf("invalid sport key: expected %s, got %s", config.SportKey, event.SportKey)
	}

	if strings.TrimSpace(event.HomeTeam) == "" {
		return fmt.Errorf("home team cannot be empty")
	}

	if strings.TrimSpace(event.AwayTeam) == "" {
		return fmt.Errorf("away team cannot be empty")
	}

	if event.HomeTeam == event.AwayTeam {
		return fmt.Errorf("home and away teams cannot be the same")
	}

	if event.CommenceTime.Before(now.Add(-config.MaxEventAge)) {
		return fmt.Errorf("event commence time is too far in the past")
	}

	for _, book := range event.Bookmakers {
		for _, market := range book.Markets {
			if !RequiresPoint(market.Key) {
				continue
			}
			for _, q := range market.Outcomes {
				if q.Point == nil {
					return fmt.Errorf("bookmaker %s: market %s requires point value", book.Key, market.Key)
				}
			}
		}
	}

	return nil
}

// NormalizeTeamName expands the short forms some books use to the full franchise name
func NormalizeTeamName(name string) string {
	name = strings.TrimSpace(name)

	replacements := map[string]string{
		"KC Chiefs":     "Kansas City Chiefs",
		"NY Giants":     "New York Giants",
		"NY Jets":       "New York Jets",
		"LA Rams":       "Los Angeles Rams",
		"LA Chargers":   "Los Angeles Chargers",
		"SF 49ers":      "San Francisco 49ers",
		"GB Packers":    "Green Bay Packers",
		"NE Patriots":   "New England Patriots",
		"TB Buccaneers": "Tampa Bay Buccaneers",
		"NO Saints":     "New Orleans Saints",
	}

	if normalized, ok := replacements[name]; ok {
		return normalized
	}

	return name
}
