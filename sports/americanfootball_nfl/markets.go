package americanfootball_nfl

// Featured market keys
const (
	MarketH2H     = "h2h"
	MarketSpreads = "spreads"
	MarketTotals  = "totals"
)

// FeaturedMarkets returns every mainline market the NFL module can request
func FeaturedMarkets() []string {
	return []string{MarketH2H, MarketSpreads, MarketTotals}
}

// IsSupportedMarket reports whether the market is one of the featured markets
func IsSupportedMarket(marketKey string) bool {
	switch marketKey {
	case MarketH2H, MarketSpreads, MarketTotals:
		return true
	default:
		return false
	}
}

// RequiresPoint returns true for markets whose outcomes carry a line
func RequiresPoint(marketKey string) bool {
	return marketKey == MarketSpreads || marketKey == MarketTotals
}
