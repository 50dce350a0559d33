package odds

import (
	"fmt"
	"strconv"
	"strings"
)

// OddsPair holds the American prices for both sides of a two-outcome market.
type OddsPair struct {
	A int `json:"odds1"`
	B int `json:"odds2"`
}

// Validate reports whether both prices are usable American odds.
func (p OddsPair) Validate() error {
	if p.A == 0 || p.B == 0 {
		return fmt.Errorf("odds pair %d/%d: American odds cannot be 0", p.A, p.B)
	}
	return nil
}

func (p OddsPair) String() string {
	return fmt.Sprintf("%+d/%+d", p.A, p.B)
}

// LegKind identifies which representation a Leg carries.
type LegKind string

const (
	LegOdds        LegKind = "odds"
	LegProbability LegKind = "probability"
	LegEdge        LegKind = "edge"
)

// Leg is one wagering event. Exactly one of Pair, FairProbability or
// EdgePercent is set. FairProbability is a fraction in (0,1); EdgePercent is
// a percentage and needs PayoutOdds to be turned into a probability.
type Leg struct {
	Pair            *OddsPair `json:"pair,omitempty"`
	FairProbability *float64  `json:"fairProbability,omitempty"`
	EdgePercent     *float64  `json:"edgePercent,omitempty"`
	PayoutOdds      int       `json:"payoutOdds,omitempty"`
}

// Kind returns the populated representation, or "" when none or several are set.
func (l Leg) Kind() LegKind {
	var kind LegKind
	n := 0
	if l.Pair != nil {
		kind = LegOdds
		n++
	}
	if l.FairProbability != nil {
		kind = LegProbability
		n++
	}
	if l.EdgePercent != nil {
		kind = LegEdge
		n++
	}
	if n != 1 {
		return ""
	}
	return kind
}

// Validate enforces the one-representation rule and the value domains.
func (l Leg) Validate() error {
	switch l.Kind() {
	case LegOdds:
		return l.Pair.Validate()
	case LegProbability:
		p := *l.FairProbability
		if p <= 0 || p >= 1 {
			return fmt.Errorf("fair probability must be in (0,1), got %v", p)
		}
	case LegEdge:
		if l.PayoutOdds == 0 {
			return fmt.Errorf("edge leg needs nonzero payout odds")
		}
		if *l.EdgePercent <= -100 {
			return fmt.Errorf("edge percent must be above -100, got %v", *l.EdgePercent)
		}
	default:
		return fmt.Errorf("leg must carry exactly one of odds pair, fair probability or edge percent")
	}
	return nil
}

// OddsLeg builds a leg from a two-sided price.
func OddsLeg(a, b int) Leg {
	return Leg{Pair: &OddsPair{A: a, B: b}}
}

// ProbabilityLeg builds a leg from a fair probability fraction.
func ProbabilityLeg(p float64) Leg {
	return Leg{FairProbability: &p}
}

// EdgeLeg builds a leg from an edge percentage and the price it is offered at.
func EdgeLeg(edgePercent float64, payoutOdds int) Leg {
	return Leg{EdgePercent: &edgePercent, PayoutOdds: payoutOdds}
}

// ParseError reports malformed odds text.
type ParseError struct {
	Input  string
	Entry  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("invalid odds entry %q: %s", e.Entry, e.Reason)
	}
	return fmt.Sprintf("invalid odds input: %s", e.Reason)
}

// ParseOdds parses comma-separated "A/B" entries such as "-113/-113, +150/-170".
func ParseOdds(s string) ([]OddsPair, error) {
	entries, err := splitEntries(s)
	if err != nil {
		return nil, err
	}

	pairs := make([]OddsPair, 0, len(entries))
	for _, entry := range entries {
		pair, perr := parsePair(entry)
		if perr != nil {
			perr.Input = s
			return nil, perr
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// ParseLegs parses the same grammar as ParseOdds, but also accepts a bare
// number as a fair probability in percent: "-113/-113, 55" is an odds leg
// followed by a 55% leg.
func ParseLegs(s string) ([]Leg, error) {
	entries, err := splitEntries(s)
	if err != nil {
		return nil, err
	}

	legs := make([]Leg, 0, len(entries))
	for _, entry := range entries {
		leg, perr := parseLeg(entry)
		if perr != nil {
			perr.Input = s
			return nil, perr
		}
		legs = append(legs, leg)
	}
	return legs, nil
}

// ParseOddsEntry parses a single leg entry.
func ParseOddsEntry(s string) (Leg, error) {
	entry := strings.TrimSpace(s)
	if entry == "" {
		return Leg{}, &ParseError{Input: s, Reason: "empty odds string"}
	}
	leg, perr := parseLeg(entry)
	if perr != nil {
		perr.Input = s
		return Leg{}, perr
	}
	return leg, nil
}

func splitEntries(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, &ParseError{Input: s, Reason: "empty odds string"}
	}

	parts := strings.Split(s, ",")
	entries := make([]string, 0, len(parts))
	for _, part := range parts {
		entry := strings.TrimSpace(part)
		if entry == "" {
			return nil, &ParseError{Input: s, Entry: part, Reason: "empty entry"}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseLeg(entry string) (Leg, *ParseError) {
	if strings.Contains(entry, "/") {
		pair, perr := parsePair(entry)
		if perr != nil {
			return Leg{}, perr
		}
		return Leg{Pair: &pair}, nil
	}

	pct, err := strconv.ParseFloat(strings.TrimSuffix(entry, "%"), 64)
	if err != nil {
		return Leg{}, &ParseError{Entry: entry, Reason: "expected \"A/B\" odds or a probability percentage"}
	}
	if pct <= 0 || pct >= 100 {
		return Leg{}, &ParseError{Entry: entry, Reason: "probability percentage must be between 0 and 100"}
	}
	return ProbabilityLeg(pct / 100), nil
}

func parsePair(entry string) (OddsPair, *ParseError) {
	sides := strings.Split(entry, "/")
	if len(sides) != 2 {
		return OddsPair{}, &ParseError{Entry: entry, Reason: "expected exactly one '/' between the two sides"}
	}

	a, err := parseAmerican(sides[0])
	if err != nil {
		return OddsPair{}, &ParseError{Entry: entry, Reason: err.Error()}
	}
	b, err := parseAmerican(sides[1])
	if err != nil {
		return OddsPair{}, &ParseError{Entry: entry, Reason: err.Error()}
	}
	return OddsPair{A: a, B: b}, nil
}

func parseAmerican(s string) (int, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	if v == 0 {
		return 0, fmt.Errorf("American odds cannot be 0")
	}
	return v, nil
}
