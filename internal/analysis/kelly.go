package analysis

import (
	"fmt"
	"math"

	"qk-sims/internal/odds"
)

// SizingError reports bankroll, probability or payout inputs that make the
// Kelly formula meaningless.
type SizingError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *SizingError) Error() string {
	return fmt.Sprintf("kelly sizing: %s = %v: %s", e.Field, e.Value, e.Reason)
}

// Sizing is the stake recommendation for a single bet.
type Sizing struct {
	FairProbability    float64 `json:"fairProbability"`
	PayoutMultiplier   float64 `json:"payoutMultiplier"`
	FullKelly          float64 `json:"fullKelly"`
	AppliedFraction    float64 `json:"appliedFraction"`
	Stake              float64 `json:"stake"`
	EdgePercent        float64 `json:"edgePercent"`
	ExpectedGrowthRate float64 `json:"expectedGrowthRate"`
	NoBet              bool    `json:"noBet"`
	OverBet            bool    `json:"overBet"`
}

// KellyFraction computes the growth-optimal share of bankroll to stake
// Kelly formula: f* = (p * (b + 1) - 1) / b
// where: p = probability of winning, b = net payout per unit staked
// Negative values mean the bet has no edge.
func KellyFraction(p, b float64) float64 {
	return (p*(b+1) - 1) / b
}

// AppliedFraction floors full Kelly at 0 and scales it by the fractional
// multiplier (e.g. 0.25 for quarter Kelly).
func AppliedFraction(fullKelly, fraction float64) float64 {
	return math.Max(0, fullKelly) * fraction
}

// EdgePercent is the expected profit per unit staked, as a percentage.
func EdgePercent(p, b float64) float64 {
	return (p*(b+1) - 1) * 100
}

// EdgeToProbability inverts EdgePercent: the win probability that yields
// edgePercent at payout b.
func EdgeToProbability(edgePercent, b float64) float64 {
	return (edgePercent/100 + 1) / (b + 1)
}

// maxGrowthFraction keeps the log-growth finite when the stake is the whole bankroll.
const maxGrowthFraction = 0.999999

// GrowthRate is the expected log growth of bankroll per bet when staking
// fraction f: p*ln(1+f*b) + (1-p)*ln(1-f).
func GrowthRate(p, b, f float64) float64 {
	if f <= 0 {
		return 0
	}
	f = math.Min(f, maxGrowthFraction)
	return p*math.Log1p(f*b) + (1-p)*math.Log1p(-f)
}

// Size computes the Kelly stake for a bet paying American payoutOdds.
func Size(fairProbability float64, payoutOdds int, bankroll, kellyFraction float64) (Sizing, error) {
	b, err := odds.AmericanToPayout(payoutOdds)
	if err != nil {
		return Sizing{}, &SizingError{Field: "payoutOdds", Value: float64(payoutOdds), Reason: err.Error()}
	}
	return SizeDecimal(fairProbability, b, bankroll, kellyFraction)
}

// SizeDecimal computes the Kelly stake given the net payout multiplier b directly.
// A bet without edge is not an error: it comes back with Stake 0 and NoBet set.
func SizeDecimal(fairProbability, b, bankroll, kellyFraction float64) (Sizing, error) {
	switch {
	case math.IsNaN(bankroll) || bankroll <= 0:
		return Sizing{}, &SizingError{Field: "bankroll", Value: bankroll, Reason: "must be positive"}
	case math.IsNaN(fairProbability) || fairProbability <= 0 || fairProbability >= 1:
		return Sizing{}, &SizingError{Field: "fairProbability", Value: fairProbability, Reason: "must be between 0 and 1 exclusive"}
	case math.IsNaN(b) || b <= 0:
		return Sizing{}, &SizingError{Field: "payoutMultiplier", Value: b, Reason: "must be positive"}
	case math.IsNaN(kellyFraction) || kellyFraction < 0:
		return Sizing{}, &SizingError{Field: "kellyFraction", Value: kellyFraction, Reason: "must be non-negative"}
	}

	full := KellyFraction(fairProbability, b)
	applied := AppliedFraction(full, kellyFraction)

	return Sizing{
		FairProbability:    fairProbability,
		PayoutMultiplier:   b,
		FullKelly:          full,
		AppliedFraction:    applied,
		Stake:              bankroll * applied,
		EdgePercent:        EdgePercent(fairProbability, b),
		ExpectedGrowthRate: GrowthRate(fairProbability, b, applied),
		NoBet:              full <= 0,
		OverBet:            kellyFraction > 1,
	}, nil
}
