package contracts

import "github.com/XavierBriggs/Pythia/pkg/models"

// SportModule describes what to fetch for one sport
type SportModule interface {
	// GetSportKey returns the vendor sport identifier (e.g., "americanfootball_nfl")
	GetSportKey() string

	// GetDisplayName returns the human-readable name (e.g., "NFL")
	GetDisplayName() string

	// GetRegions returns the bookmaker regions to request (e.g., ["eu"])
	GetRegions() []string

	// GetMarkets returns the markets to request on every fetch
	GetMarkets() []string

	// ValidateEvent performs sport-specific validation on a fetched event
	ValidateEvent(event *models.Event) error
}
