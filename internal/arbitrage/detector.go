package arbitrage

import (
	"math"
	"sort"
	"strconv"

	"github.com/XavierBriggs/Pythia/pkg/models"
)

// OpportunityType distinguishes guaranteed from speculative opportunities
type OpportunityType string

const (
	PureArbitrage OpportunityType = "PureArbitrage"
	ValueBet      OpportunityType = "ValueBet"
)

// Risk is the risk grade attached to an opportunity
type Risk string

const (
	RiskNone   Risk = "none"
	RiskMedium Risk = "medium"
)

// Leg is one bet of an opportunity
type Leg struct {
	Outcome      string  `json:"outcome"`
	Odds         float64 `json:"odds"`
	StakePercent float64 `json:"stake_percent"`
	Bookmaker    string  `json:"bookmaker"`
}

// Opportunity is a detected arbitrage or value bet for one event and market
type Opportunity struct {
	Type          OpportunityType `json:"type"`
	EventID       string          `json:"event_id"`
	Game          string          `json:"game"`
	Market        string          `json:"market"`
	ProfitPercent float64         `json:"profit_percent"`
	Risk          Risk            `json:"risk"`
	ImpliedSum    float64         `json:"implied_sum,omitempty"`    // PureArbitrage only
	ReferenceOdds float64         `json:"reference_odds,omitempty"` // ValueBet only
	Bets          []Leg           `json:"bets"`
}

// Config holds detection thresholds
type Config struct {
	// MinValueMargin is the best-vs-worst price margin, in percent, a value bet must exceed
	MinValueMargin float64

	// MinBookmakers is the number of competing quotes an outcome needs for value bet detection
	MinBookmakers int
}

// DefaultConfig returns the default detection thresholds
func DefaultConfig() Config {
	return Config{
		MinValueMargin: 1.0,
		MinBookmakers:  2,
	}
}

// Detector finds arbitrage and value bets across bookmakers
type Detector struct {
	cfg Config
}

// NewDetector creates a detector, filling unset thresholds with defaults
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.MinValueMargin <= 0 {
		cfg.MinValueMargin = def.MinValueMargin
	}
	if cfg.MinBookmakers < 2 {
		cfg.MinBookmakers = def.MinBookmakers
	}
	return &Detector{cfg: cfg}
}

// outcomeLine tracks the best and worst price seen for one outcome key
type outcomeLine struct {
	key   string
	group string
	best  models.Quote
	worst models.Quote
	count int
}

// Detect returns the opportunities for one event and market, pure arbitrage first,
// then by descending profit.
func (d *Detector) Detect(event models.Event, marketKey string) []Opportunity {
	lines, order := collectLines(event.QuotesFor(marketKey))
	if len(order) == 0 {
		return nil
	}

	var opportunities []Opportunity

	// Pure arbitrage: one check per set of mutually exclusive outcomes
	groups := make(map[string][]*outcomeLine)
	var groupOrder []string
	for _, key := range order {
		line := lines[key]
		if _, ok := groups[line.group]; !ok {
			groupOrder = append(groupOrder, line.group)
		}
		groups[line.group] = append(groups[line.group], line)
	}

	for _, group := range groupOrder {
		if opp, ok := pureArbitrage(event, marketKey, groups[group]); ok {
			opportunities = append(opportunities, opp)
		}
	}

	// Value bets: price disagreement on a single outcome
	for _, key := range order {
		if opp, ok := d.valueBet(event, marketKey, lines[key]); ok {
			opportunities = append(opportunities, opp)
		}
	}

	Sort(opportunities)
	return opportunities
}

// DetectAll runs Detect over every event and market
func (d *Detector) DetectAll(events []models.Event, markets []string) []Opportunity {
	var all []Opportunity
	for _, event := range events {
		for _, market := range markets {
			all = append(all, d.Detect(event, market)...)
		}
	}
	Sort(all)
	return all
}

// Sort orders opportunities: pure arbitrage first, then by descending profit
func Sort(opportunities []Opportunity) {
	sort.SliceStable(opportunities, func(i, j int) bool {
		pi, pj := opportunities[i].Type == PureArbitrage, opportunities[j].Type == PureArbitrage
		if pi != pj {
			return pi
		}
		return opportunities[i].ProfitPercent > opportunities[j].ProfitPercent
	})
}

// collectLines keeps the best and worst valid quote per outcome key, in first-seen order
func collectLines(quotes []models.Quote) (map[string]*outcomeLine, []string) {
	lines := make(map[string]*outcomeLine)
	var order []string

	for _, q := range quotes {
		if q.OutcomeName == "" || math.IsNaN(q.Price) || math.IsInf(q.Price, 0) || q.Price <= 0 {
			continue
		}

		key := q.OutcomeKey()
		line, ok := lines[key]
		if !ok {
			line = &outcomeLine{key: key, group: lineGroup(q), best: q, worst: q}
			lines[key] = line
			order = append(order, key)
		}

		line.count++
		if q.Price > line.best.Price {
			line.best = q
		}
		if q.Price < line.worst.Price {
			line.worst = q
		}
	}

	return lines, order
}

// lineGroup buckets outcomes that settle against each other: every h2h outcome together,
// spreads and totals by absolute point so "+3.5" meets "-3.5" and "Over 47.5" meets "Under 47.5".
func lineGroup(q models.Quote) string {
	if q.Point == nil {
		return ""
	}
	return strconv.FormatFloat(math.Abs(*q.Point), 'f', -1, 64)
}

func pureArbitrage(event models.Event, marketKey string, lines []*outcomeLine) (Opportunity, bool) {
	if len(lines) < 2 {
		return Opportunity{}, false
	}

	var impliedSum float64
	for _, line := range lines {
		impliedSum += 1 / line.best.Price
	}

	if impliedSum >= 1 {
		return Opportunity{}, false
	}

	bets := make([]Leg, 0, len(lines))
	for _, line := range lines {
		bets = append(bets, Leg{
			Outcome:      line.key,
			Odds:         line.best.Price,
			StakePercent: (1 / line.best.Price) / impliedSum * 100,
			Bookmaker:    line.best.Bookmaker,
		})
	}

	return Opportunity{
		Type:          PureArbitrage,
		EventID:       event.EventID,
		Game:          event.Matchup(),
		Market:        marketKey,
		ProfitPercent: (1/impliedSum - 1) * 100,
		Risk:          RiskNone,
		ImpliedSum:    impliedSum,
		Bets:          bets,
	}, true
}

func (d *Detector) valueBet(event models.Event, marketKey string, line *outcomeLine) (Opportunity, bool) {
	if line.count < d.cfg.MinBookmakers {
		return Opportunity{}, false
	}

	margin := (line.best.Price - line.worst.Price) / line.worst.Price * 100
	if margin <= d.cfg.MinValueMargin {
		return Opportunity{}, false
	}

	return Opportunity{
		Type:          ValueBet,
		EventID:       event.EventID,
		Game:          event.Matchup(),
		Market:        marketKey,
		ProfitPercent: margin,
		Risk:          RiskMedium,
		ReferenceOdds: (line.best.Price + line.worst.Price) / 2,
		Bets: []Leg{{
			Outcome:      line.key,
			Odds:         line.best.Price,
			StakePercent: 100,
			Bookmaker:    line.best.Bookmaker,
		}},
	}, true
}
