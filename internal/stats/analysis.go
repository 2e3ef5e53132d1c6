package stats

import (
	"math"
	"strconv"
)

const notAvailable = "N/A"

// OutcomeAnalysis holds the derived statistics for one outcome.
// Numeric fields are nil when no valid price exists for the outcome.
type OutcomeAnalysis struct {
	Outcome            string          `json:"outcome"`
	Available          bool            `json:"available"`
	AverageOdds        *float64        `json:"average_odds"`
	ImpliedProbability *float64        `json:"implied_probability"`
	MinOdds            *float64        `json:"min_odds"`
	MaxOdds            *float64        `json:"max_odds"`
	Variance           *float64        `json:"variance"` // Population standard deviation of prices
	Consensus          *float64        `json:"consensus"`
	BookmakerCount     int             `json:"bookmaker_count"`
	ValueRating        *float64        `json:"value_rating"`
	Recommendation     Recommendation  `json:"recommendation"`
	Confidence         ConfidenceLevel `json:"confidence"`
}

// AnalyzeOutcome computes the statistics for one outcome's prices.
// It never returns NaN or Inf: with no valid price every numeric field is left nil.
func AnalyzeOutcome(outcome string, prices []float64) OutcomeAnalysis {
	valid := validPrices(prices)
	if len(valid) == 0 {
		return OutcomeAnalysis{
			Outcome:        outcome,
			Recommendation: Avoid,
			Confidence:     ConfidenceLow,
		}
	}

	avg := mean(valid)
	sd := stdDev(valid, avg)
	probability := 100 / avg
	consensus := clamp(100*(1-sd/avg), 0, 100)
	value := ValueRating(probability, avg, consensus)

	lo, hi := valid[0], valid[0]
	for _, p := range valid[1:] {
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}

	return OutcomeAnalysis{
		Outcome:            outcome,
		Available:          true,
		AverageOdds:        &avg,
		ImpliedProbability: &probability,
		MinOdds:            &lo,
		MaxOdds:            &hi,
		Variance:           &sd,
		Consensus:          &consensus,
		BookmakerCount:     len(valid),
		ValueRating:        &value,
		Recommendation:     Recommend(probability, consensus, value),
		Confidence:         Confidence(consensus, len(valid)),
	}
}

// FormattedAnalysis is the display view of an OutcomeAnalysis
type FormattedAnalysis struct {
	Outcome            string          `json:"outcome"`
	AverageOdds        string          `json:"average_odds"`
	ImpliedProbability string          `json:"implied_probability"`
	MinOdds            string          `json:"min_odds"`
	MaxOdds            string          `json:"max_odds"`
	Variance           string          `json:"variance"`
	Consensus          string          `json:"consensus"`
	BookmakerCount     int             `json:"bookmaker_count"`
	ValueRating        string          `json:"value_rating"`
	Recommendation     Recommendation  `json:"recommendation"`
	Confidence         ConfidenceLevel `json:"confidence"`
}

// Formatted rounds for display; absent values render as "N/A"
func (a OutcomeAnalysis) Formatted() FormattedAnalysis {
	return FormattedAnalysis{
		Outcome:            a.Outcome,
		AverageOdds:        formatValue(a.AverageOdds, 2, ""),
		ImpliedProbability: formatValue(a.ImpliedProbability, 1, "%"),
		MinOdds:            formatValue(a.MinOdds, 2, ""),
		MaxOdds:            formatValue(a.MaxOdds, 2, ""),
		Variance:           formatValue(a.Variance, 2, ""),
		Consensus:          formatValue(a.Consensus, 0, "%"),
		BookmakerCount:     a.BookmakerCount,
		ValueRating:        formatValue(a.ValueRating, 0, ""),
		Recommendation:     a.Recommendation,
		Confidence:         a.Confidence,
	}
}

func formatValue(v *float64, decimals int, suffix string) string {
	if v == nil {
		return notAvailable
	}
	return strconv.FormatFloat(*v, 'f', decimals, 64) + suffix
}

// probabilityOf returns the implied probability, or -1 when unavailable so it sorts last
func probabilityOf(a OutcomeAnalysis) float64 {
	if a.ImpliedProbability == nil {
		return -1
	}
	return *a.ImpliedProbability
}
