package americanfootball_nfl

import (
	"time"

	"github.com/XavierBriggs/Pythia/pkg/contracts"
	"github.com/XavierBriggs/Pythia/pkg/models"
)

// Module implements the SportModule interface for the NFL
type Module struct {
	config *Config
	now    func() time.Time
}

var _ contracts.SportModule = (*Module)(nil)

// NewModule creates an NFL sport module; a nil config uses DefaultConfig
func NewModule(config *Config) *Module {
	if config == nil {
		config = DefaultConfig()
	}
	return &Module{
		config: config,
		now:    time.Now,
	}
}

// GetSportKey returns the sport identifier
func (m *Module) GetSportKey() string {
	return m.config.SportKey
}

// GetDisplayName returns the human-readable name
func (m *Module) GetDisplayName() string {
	return m.config.DisplayName
}

// GetRegions returns the regions to request
func (m *Module) GetRegions() []string {
	return m.config.Regions
}

// GetMarkets returns the markets to request
func (m *Module) GetMarkets() []string {
	return m.config.Markets
}

// ValidateEvent normalizes team names in place, then performs NFL-specific validation
func (m *Module) ValidateEvent(event *models.Event) error {
	event.HomeTeam = NormalizeTeamName(event.HomeTeam)
	event.AwayTeam = NormalizeTeamName(event.AwayTeam)
	return validateEvent(event, m.config, m.now())
}
