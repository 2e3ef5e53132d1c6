package stats_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavierBriggs/Pythia/internal/stats"
	"github.com/XavierBriggs/Pythia/pkg/models"
)

const tolerance = 1e-9

func TestAnalyzeOutcome_MeanAndProbability(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
	}{
		{"single price", []float64{1.91}},
		{"two books", []float64{2.10, 2.00}},
		{"many books", []float64{1.50, 1.55, 1.48, 1.52, 1.60}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := stats.AnalyzeOutcome("Chiefs", tt.prices)
			require.True(t, a.Available)

			var sum float64
			for _, p := range tt.prices {
				sum += p
			}
			want := sum / float64(len(tt.prices))

			assert.InDelta(t, want, *a.AverageOdds, tolerance)
			assert.InDelta(t, 100/want, *a.ImpliedProbability, tolerance)
			assert.Equal(t, len(tt.prices), a.BookmakerCount)
		})
	}
}

func TestAnalyzeOutcome_PopulationStdDev(t *testing.T) {
	// mean 2.0, deviations ±0.1 -> population sd 0.1 (sample sd would be 0.1414)
	a := stats.AnalyzeOutcome("Bills", []float64{1.9, 2.1})
	require.True(t, a.Available)

	assert.InDelta(t, 0.1, *a.Variance, tolerance)
	assert.InDelta(t, 1.9, *a.MinOdds, tolerance)
	assert.InDelta(t, 2.1, *a.MaxOdds, tolerance)
	assert.InDelta(t, 95.0, *a.Consensus, 1e-6)
}

func TestAnalyzeOutcome_HugeFinitePricesStayFinite(t *testing.T) {
	prices := []float64{1e308, 1.5e308, math.MaxFloat64}
	a := stats.AnalyzeOutcome("Longshot", prices)
	require.True(t, a.Available)

	for name, v := range map[string]*float64{
		"average":     a.AverageOdds,
		"probability": a.ImpliedProbability,
		"variance":    a.Variance,
		"consensus":   a.Consensus,
		"value":       a.ValueRating,
	} {
		require.NotNil(t, v, name)
		assert.False(t, math.IsNaN(*v) || math.IsInf(*v, 0), "%s = %v", name, *v)
	}
	assert.Greater(t, *a.AverageOdds, 1e308)
	assert.LessOrEqual(t, *a.AverageOdds, math.MaxFloat64)

	c := stats.Consensus(prices)
	assert.False(t, math.IsNaN(c) || math.IsInf(c, 0))
}

func TestAnalyzeOutcome_NotAvailable(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
	}{
		{"nil", nil},
		{"empty", []float64{}},
		{"zero and negative", []float64{0, -1.5}},
		{"non-finite", []float64{math.NaN(), math.Inf(1), math.Inf(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := stats.AnalyzeOutcome("Jets", tt.prices)

			assert.False(t, a.Available)
			assert.Nil(t, a.AverageOdds)
			assert.Nil(t, a.ImpliedProbability)
			assert.Nil(t, a.MinOdds)
			assert.Nil(t, a.MaxOdds)
			assert.Nil(t, a.Variance)
			assert.Nil(t, a.Consensus)
			assert.Nil(t, a.ValueRating)
			assert.Equal(t, 0, a.BookmakerCount)
			assert.Equal(t, stats.Avoid, a.Recommendation)
			assert.Equal(t, stats.ConfidenceLow, a.Confidence)

			f := a.Formatted()
			assert.Equal(t, "N/A", f.AverageOdds)
			assert.Equal(t, "N/A", f.ImpliedProbability)
			assert.Equal(t, "N/A", f.Variance)
		})
	}
}

func TestAnalyzeOutcome_IgnoresInvalidPrices(t *testing.T) {
	a := stats.AnalyzeOutcome("Eagles", []float64{2.0, math.NaN(), 0, 2.0})
	require.True(t, a.Available)

	assert.Equal(t, 2, a.BookmakerCount)
	assert.InDelta(t, 2.0, *a.AverageOdds, tolerance)
	assert.InDelta(t, 100.0, *a.Consensus, tolerance)
}

func TestConsensus(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   float64
	}{
		{"single price is full agreement", []float64{3.25}, 100},
		{"identical prices", []float64{1.8, 1.8, 1.8}, 100},
		{"empty", nil, 0},
		{"all invalid", []float64{0, -2}, 0},
		{"spread", []float64{1.9, 2.1}, 95},
		{"wild dispersion clips at zero", []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 100}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stats.Consensus(tt.prices)
			assert.InDelta(t, tt.want, got, 1e-6)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 100.0)
		})
	}
}

func TestValueRating(t *testing.T) {
	tests := []struct {
		name        string
		probability float64
		odds        float64
		consensus   float64
		want        float64
	}{
		{"weighted blend", 50, 2.0, 90, 0.4*50 + 0.3*50 + 0.3*90},
		{"clipped to 100", 100, 0.5, 100, 100},
		{"missing odds renormalizes", 60, 0, 80, (0.4*60 + 0.3*80) / 0.7},
		{"missing probability renormalizes", math.NaN(), 2.0, 80, (0.3*50 + 0.3*80) / 0.6},
		{"all missing", math.NaN(), -1, math.Inf(1), 0},
		{"negative blend clipped to 0", -500, 2.0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, stats.ValueRating(tt.probability, tt.odds, tt.consensus), 1e-9)
		})
	}
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		probability, consensus, value float64
		want                          stats.Recommendation
	}{
		{75, 85, 80, stats.StrongBet},
		{75, 85, 70, stats.GoodValue},
		{65, 75, 70, stats.GoodValue},
		{55, 65, 60, stats.Consider},
		{45, 55, 10, stats.Monitor},
		{70, 80, 75, stats.GoodValue}, // thresholds are strict
		{40, 90, 90, stats.Avoid},
		{90, 50, 90, stats.Avoid},
	}

	for _, tt := range tests {
		got := stats.Recommend(tt.probability, tt.consensus, tt.value)
		assert.Equal(t, tt.want, got, "Recommend(%v, %v, %v)", tt.probability, tt.consensus, tt.value)
	}
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, stats.ConfidenceHigh, stats.Confidence(80, 10))
	assert.Equal(t, stats.ConfidenceMedium, stats.Confidence(80, 9))
	assert.Equal(t, stats.ConfidenceMedium, stats.Confidence(60, 5))
	assert.Equal(t, stats.ConfidenceLow, stats.Confidence(59.9, 20))
	assert.Equal(t, stats.ConfidenceLow, stats.Confidence(95, 4))
}

func TestAggregateOutcomes(t *testing.T) {
	quotes := []models.Quote{
		{OutcomeName: "Chiefs", Price: 1.80, Bookmaker: "A"},
		{OutcomeName: "Bills", Price: 2.05, Bookmaker: "A"},
		{OutcomeName: "Chiefs", Price: 1.85, Bookmaker: "B"},
		{OutcomeName: "", Price: 9.99, Bookmaker: "B"},
	}

	grouped := stats.AggregateOutcomes(quotes)

	assert.Len(t, grouped, 2)
	assert.ElementsMatch(t, []float64{1.80, 1.85}, grouped["Chiefs"])
	assert.Equal(t, []float64{2.05}, grouped["Bills"])
}

func TestFormatted(t *testing.T) {
	a := stats.AnalyzeOutcome("Ravens", []float64{1.6, 1.7})
	f := a.Formatted()

	assert.Equal(t, "1.65", f.AverageOdds)
	assert.Equal(t, "60.6%", f.ImpliedProbability)
	assert.Equal(t, "0.05", f.Variance)
	assert.Equal(t, "1.60", f.MinOdds)
	assert.Equal(t, "1.70", f.MaxOdds)
}

func newEvent(id string, kickoff time.Time, books map[string][2]float64) models.Event {
	event := models.Event{
		EventID:      id,
		SportKey:     "americanfootball_nfl",
		HomeTeam:     "Chiefs",
		AwayTeam:     "Bills",
		CommenceTime: kickoff,
	}
	for title, prices := range books {
		event.Bookmakers = append(event.Bookmakers, models.Bookmaker{
			Key:   title,
			Title: title,
			Markets: []models.Market{{
				Key: "h2h",
				Outcomes: []models.Quote{
					{OutcomeName: "Chiefs", Price: prices[0]},
					{OutcomeName: "Bills", Price: prices[1]},
				},
			}},
		})
	}
	return event
}

func TestAnalyzeEvent_SortedByProbability(t *testing.T) {
	event := newEvent("e1", time.Now(), map[string][2]float64{
		"Pinnacle": {1.70, 2.20},
		"Unibet":   {1.75, 2.10},
	})

	analysis := stats.AnalyzeEvent(event, "")

	assert.Equal(t, "h2h", analysis.Market)
	assert.Equal(t, 2, analysis.BookmakerCount)
	require.Len(t, analysis.Outcomes, 2)
	assert.Equal(t, "Chiefs", analysis.Outcomes[0].Outcome)
	assert.Equal(t, "Bills", analysis.Outcomes[1].Outcome)
	assert.Greater(t, *analysis.Outcomes[0].ImpliedProbability, *analysis.Outcomes[1].ImpliedProbability)
}

func TestAnalyzeEvent_UnavailableOutcomeSortsLast(t *testing.T) {
	event := newEvent("e1", time.Now(), map[string][2]float64{
		"Pinnacle": {0, 2.20},
	})

	analysis := stats.AnalyzeEvent(event, "h2h")

	require.Len(t, analysis.Outcomes, 2)
	assert.Equal(t, "Bills", analysis.Outcomes[0].Outcome)
	assert.False(t, analysis.Outcomes[1].Available)
}

func TestAnalyzeEvents_OrderedByKickoff(t *testing.T) {
	now := time.Now()
	late := newEvent("late", now.Add(48*time.Hour), map[string][2]float64{"A": {1.9, 1.9}})
	early := newEvent("early", now.Add(2*time.Hour), map[string][2]float64{"A": {1.9, 1.9}})

	analyses := stats.AnalyzeEvents([]models.Event{late, early}, "h2h")

	require.Len(t, analyses, 2)
	assert.Equal(t, "early", analyses[0].EventID)
	assert.Equal(t, "late", analyses[1].EventID)
}

func TestSummarizeOutcomes(t *testing.T) {
	now := time.Now()
	events := []models.Event{
		newEvent("e1", now, map[string][2]float64{"A": {1.50, 2.60}, "B": {1.50, 2.60}}),
		newEvent("e2", now.Add(time.Hour), map[string][2]float64{"A": {1.70, 2.20}}),
	}

	summaries := stats.SummarizeOutcomes(events, "h2h")

	require.Len(t, summaries, 2)
	chiefs := summaries[0]
	assert.Equal(t, "Chiefs", chiefs.Outcome)
	assert.Equal(t, 2, chiefs.Occurrences)
	assert.InDelta(t, 1.60, chiefs.AverageOdds, tolerance)
	assert.InDelta(t, (100/1.5+100/1.7)/2, chiefs.ImpliedProbability, tolerance)
	assert.InDelta(t, 1.50, chiefs.MinOdds, tolerance)
	assert.InDelta(t, 1.70, chiefs.MaxOdds, tolerance)
	assert.InDelta(t, 1.5, chiefs.AverageBookmakers, tolerance)
	assert.InDelta(t, 100, chiefs.Consensus, tolerance)
}
