package contracts

import (
	"context"

	"github.com/XavierBriggs/Pythia/pkg/models"
)

// VendorAdapter defines the interface for fetching odds from external vendors.
// Every FetchOdds call consumes one metered request against the monthly budget.
type VendorAdapter interface {
	// FetchOdds retrieves validated events with all bookmakers' decimal odds
	FetchOdds(ctx context.Context, opts *models.FetchOddsOptions) ([]models.Event, error)

	// SupportsMarket checks if this adapter supports a given market
	SupportsMarket(market string) bool

	// GetRateLimits returns the quota reported by the vendor on the last response
	GetRateLimits() *models.RateLimits
}
