package analysis

import (
	"fmt"

	"github.com/shopspring/decimal"

	"qk-sims/internal/odds"
)

// BetRequest is a single-bet (or parlay) sizing request.
type BetRequest struct {
	Legs          []odds.Leg
	FinalOdds     int // American price actually offered for the combined bet
	Bankroll      float64
	KellyFraction float64
	Method        odds.Method
}

// LegResult is the fair-probability estimate for one leg.
type LegResult struct {
	Number          int            `json:"leg"`
	Kind            odds.LegKind   `json:"type"`
	Pair            *odds.OddsPair `json:"pair,omitempty"`
	Implied         float64        `json:"impliedProbability,omitempty"`
	FairProbability float64        `json:"fairProbability"`
	FairOdds        int            `json:"fairOdds"`
	MarketJuice     float64        `json:"marketJuice,omitempty"`
	Overround       float64        `json:"overround,omitempty"`
	Method          odds.Method    `json:"method,omitempty"`
}

// BetResult is the outcome of Calculate. Lines holds the human-readable
// report; the remaining fields carry the same numbers for structured clients.
type BetResult struct {
	Method              odds.Method `json:"method"`
	MethodLabel         string      `json:"methodLabel"`
	Legs                []LegResult `json:"legs"`
	CombinedProbability float64     `json:"combinedProbability"`
	FairOdds            int         `json:"fairOdds"`
	FinalOdds           int         `json:"finalOdds"`
	Sizing              Sizing      `json:"sizing"`
	Lines               []string    `json:"lines"`
}

// Calculate devigs every leg, multiplies the fair probabilities into the
// combined win probability and sizes the bet at FinalOdds.
func Calculate(req BetRequest) (*BetResult, error) {
	if len(req.Legs) == 0 {
		return nil, &odds.ParseError{Reason: "at least one leg is required"}
	}

	method := req.Method
	if method == "" {
		method = odds.WorstCase
	}

	legs := make([]LegResult, 0, len(req.Legs))
	combined := 1.0
	for i, leg := range req.Legs {
		lr, err := evaluateLeg(i+1, leg, method)
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i+1, err)
		}
		legs = append(legs, lr)
		combined *= lr.FairProbability
	}

	sizing, err := Size(combined, req.FinalOdds, req.Bankroll, req.KellyFraction)
	if err != nil {
		return nil, err
	}

	res := &BetResult{
		Method:              method,
		MethodLabel:         methodLabel(method, legs),
		Legs:                legs,
		CombinedProbability: combined,
		FairOdds:            odds.ProbabilityToAmerican(combined),
		FinalOdds:           req.FinalOdds,
		Sizing:              sizing,
	}
	res.Lines = formatLines(res, req.Bankroll)
	return res, nil
}

func evaluateLeg(n int, leg odds.Leg, method odds.Method) (LegResult, error) {
	if err := leg.Validate(); err != nil {
		if leg.Kind() == odds.LegOdds {
			return LegResult{}, &odds.DevigError{Pair: *leg.Pair, Method: method, Reason: err.Error()}
		}
		return LegResult{}, &SizingError{Field: "leg", Value: float64(n), Reason: err.Error()}
	}

	lr := LegResult{Number: n, Kind: leg.Kind()}
	switch leg.Kind() {
	case odds.LegOdds:
		d, err := odds.Devig(*leg.Pair, method)
		if err != nil {
			return LegResult{}, err
		}
		lr.Pair = leg.Pair
		lr.Implied = d.ImpliedA
		lr.FairProbability = d.FairA
		lr.MarketJuice = odds.MarketJuice(d.ImpliedA, d.FairA)
		lr.Overround = odds.Overround(*leg.Pair)
		lr.Method = d.Applied

	case odds.LegProbability:
		lr.FairProbability = *leg.FairProbability

	case odds.LegEdge:
		b, err := odds.AmericanToPayout(leg.PayoutOdds)
		if err != nil {
			return LegResult{}, &SizingError{Field: "payoutOdds", Value: float64(leg.PayoutOdds), Reason: err.Error()}
		}
		p := EdgeToProbability(*leg.EdgePercent, b)
		if p <= 0 || p >= 1 {
			return LegResult{}, &SizingError{Field: "edgePercent", Value: *leg.EdgePercent, Reason: "implies a probability outside (0,1)"}
		}
		lr.FairProbability = p
	}

	lr.FairOdds = odds.ProbabilityToAmerican(lr.FairProbability)
	return lr, nil
}

// methodLabel names the method for the report header. For worst_case it adds
// the concrete method when every odds leg settled on the same one.
func methodLabel(method odds.Method, legs []LegResult) string {
	if method != odds.WorstCase {
		return method.Label()
	}

	var applied odds.Method
	for _, lr := range legs {
		if lr.Kind != odds.LegOdds {
			continue
		}
		if applied != "" && lr.Method != applied {
			return method.Label()
		}
		applied = lr.Method
	}
	if applied == "" {
		return method.Label()
	}
	return fmt.Sprintf("%s (%s)", method.Label(), applied.Label())
}

func formatLines(res *BetResult, bankroll float64) []string {
	lines := make([]string, 0, len(res.Legs)+4)
	lines = append(lines, res.MethodLabel)

	for _, lr := range res.Legs {
		fair := fmt.Sprintf("Fair Value = %+d (%.1f%%)", lr.FairOdds, lr.FairProbability*100)
		switch lr.Kind {
		case odds.LegOdds:
			lines = append(lines, fmt.Sprintf("Leg#%d (%+d); Market Juice = %.1f%%; %s",
				lr.Number, lr.Pair.A, lr.MarketJuice, fair))
		default:
			lines = append(lines, fmt.Sprintf("Leg#%d (%.4g%%); %s",
				lr.Number, lr.FairProbability*100, fair))
		}
	}

	lines = append(lines, fmt.Sprintf("Final Odds: %+d; Fair Value = %+d (%.1f%%)",
		res.FinalOdds, res.FairOdds, res.CombinedProbability*100))

	s := res.Sizing
	if s.NoBet {
		lines = append(lines, fmt.Sprintf("Summary: EV%% = %.1f%% - No profitable Kelly wager (negative edge)", s.EdgePercent))
	} else {
		full := s.FullKelly * 100
		lines = append(lines, fmt.Sprintf("Summary: EV%% = %.1f%%, Kelly Wager = $%s (Full=%.2fu, 1/2=%.2fu, 1/4=%.2fu)",
			s.EdgePercent, dollars(s.Stake), full, full/2, full/4))
	}

	if s.OverBet {
		lines = append(lines, fmt.Sprintf("Warning: Kelly fraction above 1 stakes $%s, more than the growth-optimal $%s",
			dollars(s.Stake), dollars(bankroll*s.FullKelly)))
	}
	return lines
}

// dollars renders a currency amount rounded to cents.
func dollars(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
