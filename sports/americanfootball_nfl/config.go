package americanfootball_nfl

import (
	"fmt"
	"time"
)

// SportKey is The Odds API identifier for the NFL
const SportKey = "americanfootball_nfl"

// Config contains NFL fetch configuration
type Config struct {
	// Sport identification
	SportKey    string
	DisplayName string

	// Bookmaker regions to request
	Regions []string

	// Markets requested on every fetch; the first is the default analysis market
	Markets []string

	// Events that kicked off longer ago than this are rejected as stale
	MaxEventAge time.Duration
}

// DefaultConfig returns the budget-friendly configuration: one region, moneyline only.
// Each extra region or market multiplies the vendor's per-call cost.
func DefaultConfig() *Config {
	return &Config{
		SportKey:    SportKey,
		DisplayName: "NFL",
		Regions:     []string{"eu"},
		Markets:     []string{MarketH2H},
		MaxEventAge: 6 * time.Hour,
	}
}

// WithMarkets returns a copy of the config requesting the given markets
func (c *Config) WithMarkets(markets []string) (*Config, error) {
	for _, m := range markets {
		if !IsSupportedMarket(m) {
			return nil, fmt.Errorf("unsupported NFL market: %s", m)
		}
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("at least one market is required")
	}

	cp := *c
	cp.Markets = append([]string(nil), markets...)
	return &cp, nil
}
