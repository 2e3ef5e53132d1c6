package stats

import (
	"math"
	"sort"
	"time"

	"github.com/XavierBriggs/Pythia/pkg/models"
)

// DefaultMarket is analyzed when the caller does not pick one
const DefaultMarket = "h2h"

// EventAnalysis holds every outcome analysis for one event and market
type EventAnalysis struct {
	EventID        string            `json:"event_id"`
	HomeTeam       string            `json:"home_team"`
	AwayTeam       string            `json:"away_team"`
	CommenceTime   time.Time         `json:"commence_time"`
	Market         string            `json:"market"`
	BookmakerCount int               `json:"bookmaker_count"`
	Outcomes       []OutcomeAnalysis `json:"outcomes"`
}

// OutcomeSummary rolls one outcome (usually a team) up across all events it appears in
type OutcomeSummary struct {
	Outcome            string          `json:"outcome"`
	Occurrences        int             `json:"occurrences"`
	AverageOdds        float64         `json:"average_odds"`
	ImpliedProbability float64         `json:"implied_probability"`
	Consensus          float64         `json:"consensus"`
	MinOdds            float64         `json:"min_odds"`
	MaxOdds            float64         `json:"max_odds"`
	AverageBookmakers  float64         `json:"average_bookmakers"`
	ValueRating        float64         `json:"value_rating"`
	Recommendation     Recommendation  `json:"recommendation"`
	Confidence         ConfidenceLevel `json:"confidence"`
}

// AnalyzeEvent analyzes every outcome of one market, most likely outcome first.
// Outcomes without valid prices sort last.
func AnalyzeEvent(event models.Event, marketKey string) EventAnalysis {
	if marketKey == "" {
		marketKey = DefaultMarket
	}

	grouped := AggregateOutcomes(event.QuotesFor(marketKey))

	outcomes := make([]OutcomeAnalysis, 0, len(grouped))
	for name, prices := range grouped {
		outcomes = append(outcomes, AnalyzeOutcome(name, prices))
	}

	sort.Slice(outcomes, func(i, j int) bool {
		pi, pj := probabilityOf(outcomes[i]), probabilityOf(outcomes[j])
		if pi != pj {
			return pi > pj
		}
		return outcomes[i].Outcome < outcomes[j].Outcome
	})

	return EventAnalysis{
		EventID:        event.EventID,
		HomeTeam:       event.HomeTeam,
		AwayTeam:       event.AwayTeam,
		CommenceTime:   event.CommenceTime,
		Market:         marketKey,
		BookmakerCount: event.BookmakersFor(marketKey),
		Outcomes:       outcomes,
	}
}

// AnalyzeEvents analyzes each event, soonest kickoff first
func AnalyzeEvents(events []models.Event, marketKey string) []EventAnalysis {
	analyses := make([]EventAnalysis, 0, len(events))
	for _, event := range events {
		analyses = append(analyses, AnalyzeEvent(event, marketKey))
	}

	sort.SliceStable(analyses, func(i, j int) bool {
		return analyses[i].CommenceTime.Before(analyses[j].CommenceTime)
	})

	return analyses
}

type summaryAccumulator struct {
	occurrences int
	odds        float64
	probability float64
	consensus   float64
	bookmakers  float64
	minOdds     float64
	maxOdds     float64
}

// SummarizeOutcomes aggregates each outcome's available analyses across events.
// Results are ordered by mean implied probability, highest first.
func SummarizeOutcomes(events []models.Event, marketKey string) []OutcomeSummary {
	acc := make(map[string]*summaryAccumulator)

	for _, analysis := range AnalyzeEvents(events, marketKey) {
		for _, o := range analysis.Outcomes {
			if !o.Available {
				continue
			}

			a, ok := acc[o.Outcome]
			if !ok {
				a = &summaryAccumulator{minOdds: math.Inf(1), maxOdds: math.Inf(-1)}
				acc[o.Outcome] = a
			}

			a.occurrences++
			a.odds += *o.AverageOdds
			a.probability += *o.ImpliedProbability
			a.consensus += *o.Consensus
			a.bookmakers += float64(o.BookmakerCount)
			a.minOdds = math.Min(a.minOdds, *o.MinOdds)
			a.maxOdds = math.Max(a.maxOdds, *o.MaxOdds)
		}
	}

	summaries := make([]OutcomeSummary, 0, len(acc))
	for name, a := range acc {
		n := float64(a.occurrences)
		odds := a.odds / n
		probability := a.probability / n
		consensus := a.consensus / n
		bookmakers := a.bookmakers / n
		value := ValueRating(probability, odds, consensus)

		summaries = append(summaries, OutcomeSummary{
			Outcome:            name,
			Occurrences:        a.occurrences,
			AverageOdds:        odds,
			ImpliedProbability: probability,
			Consensus:          consensus,
			MinOdds:            a.minOdds,
			MaxOdds:            a.maxOdds,
			AverageBookmakers:  bookmakers,
			ValueRating:        value,
			Recommendation:     Recommend(probability, consensus, value),
			Confidence:         Confidence(consensus, int(math.Round(bookmakers))),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].ImpliedProbability != summaries[j].ImpliedProbability {
			return summaries[i].ImpliedProbability > summaries[j].ImpliedProbability
		}
		return summaries[i].Outcome < summaries[j].Outcome
	})

	return summaries
}
