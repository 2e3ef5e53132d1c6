package stats

import (
	"math"

	"github.com/XavierBriggs/Pythia/pkg/models"
)

// Recommendation is the betting signal derived from probability, consensus and value
type Recommendation string

const (
	StrongBet Recommendation = "STRONG_BET"
	GoodValue Recommendation = "GOOD_VALUE"
	Consider  Recommendation = "CONSIDER"
	Monitor   Recommendation = "MONITOR"
	Avoid     Recommendation = "AVOID"
)

// ConfidenceLevel grades how much the numbers behind an analysis can be trusted
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "HIGH"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceLow    ConfidenceLevel = "LOW"
)

// Value rating blend weights
const (
	probabilityWeight = 0.4
	oddsWeight        = 0.3
	consensusWeight   = 0.3
)

// Confidence thresholds
const (
	highConsensus    = 80.0
	highSampleSize   = 10
	mediumConsensus  = 60.0
	mediumSampleSize = 5
)

// AggregateOutcomes groups quote prices by outcome name.
// Quotes without an outcome name are dropped; prices are kept as-is and filtered on analysis.
func AggregateOutcomes(quotes []models.Quote) map[string][]float64 {
	grouped := make(map[string][]float64)
	for _, q := range quotes {
		if q.OutcomeName == "" {
			continue
		}
		grouped[q.OutcomeName] = append(grouped[q.OutcomeName], q.Price)
	}
	return grouped
}

// Consensus scores how tightly prices cluster around their mean, in [0, 100].
// A single price scores 100; an empty set or zero mean scores 0.
func Consensus(prices []float64) float64 {
	valid := validPrices(prices)
	if len(valid) == 0 {
		return 0
	}

	avg := mean(valid)
	if avg == 0 {
		return 0
	}

	return clamp(100*(1-stdDev(valid, avg)/avg), 0, 100)
}

// ValueRating blends probability, payout (100/odds) and consensus into a [0, 100] score.
// Inputs that are missing (non-finite, or odds <= 0) are left out and the remaining
// weights renormalized, so incomplete data is not scored as if it were zero.
func ValueRating(probability, odds, consensus float64) float64 {
	var sum, weights float64

	if isFinite(probability) {
		sum += probabilityWeight * probability
		weights += probabilityWeight
	}
	if isFinite(odds) && odds > 0 {
		sum += oddsWeight * (100 / odds)
		weights += oddsWeight
	}
	if isFinite(consensus) {
		sum += consensusWeight * consensus
		weights += consensusWeight
	}

	if weights == 0 {
		return 0
	}

	return clamp(sum/weights, 0, 100)
}

// Recommend applies the threshold cascade; the first matching tier wins
func Recommend(probability, consensus, value float64) Recommendation {
	switch {
	case probability > 70 && consensus > 80 && value > 75:
		return StrongBet
	case probability > 60 && consensus > 70 && value > 65:
		return GoodValue
	case probability > 50 && consensus > 60 && value > 55:
		return Consider
	case probability > 40 && consensus > 50:
		return Monitor
	default:
		return Avoid
	}
}

// Confidence grades an analysis by consensus and the number of bookmakers behind it
func Confidence(consensus float64, sampleSize int) ConfidenceLevel {
	switch {
	case consensus >= highConsensus && sampleSize >= highSampleSize:
		return ConfidenceHigh
	case consensus >= mediumConsensus && sampleSize >= mediumSampleSize:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// validPrices keeps finite, strictly positive prices
func validPrices(prices []float64) []float64 {
	valid := make([]float64, 0, len(prices))
	for _, p := range prices {
		if isFinite(p) && p > 0 {
			valid = append(valid, p)
		}
	}
	return valid
}

// mean is a running average; it stays finite for any finite input
func mean(values []float64) float64 {
	var m float64
	for i, v := range values {
		m += (v - m) / float64(i+1)
	}
	return m
}

// stdDev is the population standard deviation (divides by N).
// Deviations are scaled by the largest one before squaring.
func stdDev(values []float64, avg float64) float64 {
	var scale float64
	for _, v := range values {
		scale = math.Max(scale, math.Abs(v-avg))
	}
	if scale == 0 {
		return 0
	}

	var sq float64
	for _, v := range values {
		d := (v - avg) / scale
		sq += d * d
	}
	return scale * math.Sqrt(sq/float64(len(values)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
