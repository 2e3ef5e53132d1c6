package arbitrage

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LegStake is the money placed on one leg of a plan
type LegStake struct {
	Outcome   string          `json:"outcome"`
	Bookmaker string          `json:"bookmaker"`
	Odds      decimal.Decimal `json:"odds"`
	Stake     decimal.Decimal `json:"stake"`
	Payout    decimal.Decimal `json:"payout"`
}

// StakePlan splits a bankroll across an opportunity's legs, rounded to cents
type StakePlan struct {
	Bankroll   decimal.Decimal `json:"bankroll"`
	TotalStake decimal.Decimal `json:"total_stake"`
	MinPayout  decimal.Decimal `json:"min_payout"`
	Profit     decimal.Decimal `json:"profit"`     // MinPayout - TotalStake
	Guaranteed bool            `json:"guaranteed"` // true only for pure arbitrage
	Legs       []LegStake      `json:"legs"`
}

// AllocateStakes converts an opportunity's stake percentages into amounts of the bankroll
func AllocateStakes(opp Opportunity, bankroll decimal.Decimal) (*StakePlan, error) {
	if !bankroll.IsPositive() {
		return nil, fmt.Errorf("bankroll must be positive, got %s", bankroll)
	}
	if len(opp.Bets) == 0 {
		return nil, fmt.Errorf("opportunity has no bets")
	}

	plan := &StakePlan{
		Bankroll:   bankroll,
		Guaranteed: opp.Type == PureArbitrage,
		Legs:       make([]LegStake, 0, len(opp.Bets)),
	}

	for i, bet := range opp.Bets {
		odds := decimal.NewFromFloat(bet.Odds)
		stake := bankroll.Mul(decimal.NewFromFloat(bet.StakePercent)).Div(hundred).Round(2)
		payout := stake.Mul(odds).Round(2)

		plan.Legs = append(plan.Legs, LegStake{
			Outcome:   bet.Outcome,
			Bookmaker: bet.Bookmaker,
			Odds:      odds,
			Stake:     stake,
			Payout:    payout,
		})

		plan.TotalStake = plan.TotalStake.Add(stake)
		if i == 0 || payout.LessThan(plan.MinPayout) {
			plan.MinPayout = payout
		}
	}

	plan.Profit = plan.MinPayout.Sub(plan.TotalStake)
	return plan, nil
}
