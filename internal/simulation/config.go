package simulation

import (
	"fmt"
	"math"
	"runtime"

	"qk-sims/internal/analysis"
	"qk-sims/internal/odds"
)

// Mode selects how the per-bet win probability is derived.
type Mode string

const (
	// ModeParlay derives p from per-leg fair probabilities (product across legs).
	ModeParlay Mode = "A"
	// ModeEdge solves p from an estimated edge at a fixed payout.
	ModeEdge Mode = "B"
)

const (
	DefaultNumSimulations = 10000
	MaxNumSimulations     = 1_000_000
	DefaultRuinThreshold  = 0.01
)

// RuinAt returns a ruin threshold for Config.RuinThreshold.
func RuinAt(fraction float64) *float64 { return &fraction }

// LegSpec is one row of a mode A legs table. FairProbability is a percent.
// PayoutOdds is the leg's American price; it only matters when the config
// has no TotalPayout, in which case the legs are priced as a parlay.
type LegSpec struct {
	FairProbability float64 `json:"fairProbability" yaml:"fair_probability"`
	PayoutOdds      int     `json:"payoutOdds,omitempty" yaml:"payout_odds,omitempty"`
}

// Config describes one Monte Carlo run. Percent fields (FairProbOneLeg,
// EstimatedEdge, leg probabilities) use 0-100; payouts are American odds.
type Config struct {
	StartingBankroll float64 `json:"startingBankroll" yaml:"starting_bankroll"`
	KellyFraction    float64 `json:"kellyFraction" yaml:"kelly_fraction"`
	SampleSize       int     `json:"sampleSize" yaml:"sample_size"`
	NumSimulations   int     `json:"numSimulations" yaml:"num_simulations"`
	Mode             Mode    `json:"mode" yaml:"mode"`

	FairProbOneLeg float64   `json:"fairProbOneLeg,omitempty" yaml:"fair_prob_one_leg,omitempty"`
	TotalPayout    int       `json:"totalPayout,omitempty" yaml:"total_payout,omitempty"`
	NumberOfLegs   int       `json:"numberOfLegs,omitempty" yaml:"number_of_legs,omitempty"`
	Legs           []LegSpec `json:"legs,omitempty" yaml:"legs,omitempty"`

	EstimatedEdge float64 `json:"estimatedEdge,omitempty" yaml:"estimated_edge,omitempty"`
	PayoutPerBet  int     `json:"payoutPerBet,omitempty" yaml:"payout_per_bet,omitempty"`

	Seed    int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
	Workers int   `json:"-" yaml:"workers,omitempty"`
	// RuinThreshold is a fraction of StartingBankroll. Nil means
	// DefaultRuinThreshold; an explicit 0 ruins only at a zero bankroll.
	RuinThreshold *float64 `json:"ruinThreshold,omitempty" yaml:"ruin_threshold,omitempty"`
}

// SimulationError reports an invalid config or an aborted run.
type SimulationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *SimulationError) Error() string {
	msg := "simulation"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SimulationError) Unwrap() error { return e.Err }

func invalid(field, format string, args ...any) error {
	return &SimulationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// WithDefaults fills zero-valued optional fields.
func (c Config) WithDefaults() Config {
	if c.NumSimulations == 0 {
		c.NumSimulations = DefaultNumSimulations
	}
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.RuinThreshold == nil {
		c.RuinThreshold = RuinAt(DefaultRuinThreshold)
	}
	return c
}

func (c Config) ruinFraction() float64 {
	if c.RuinThreshold == nil {
		return DefaultRuinThreshold
	}
	return *c.RuinThreshold
}

// Validate checks every field and that a bet model can be derived.
func (c Config) Validate() error {
	switch {
	case c.SampleSize < 1:
		return invalid("sampleSize", "must be at least 1, got %d", c.SampleSize)
	case c.NumSimulations < 1:
		return invalid("numSimulations", "must be at least 1, got %d", c.NumSimulations)
	case c.NumSimulations > MaxNumSimulations:
		return invalid("numSimulations", "must not exceed %d, got %d", MaxNumSimulations, c.NumSimulations)
	case math.IsNaN(c.StartingBankroll) || c.StartingBankroll <= 0:
		return invalid("startingBankroll", "must be positive, got %v", c.StartingBankroll)
	case math.IsNaN(c.KellyFraction) || c.KellyFraction < 0:
		return invalid("kellyFraction", "must be non-negative, got %v", c.KellyFraction)
	case c.RuinThreshold != nil && !(*c.RuinThreshold >= 0 && *c.RuinThreshold < 1):
		return invalid("ruinThreshold", "must be in [0,1), got %v", *c.RuinThreshold)
	case c.Workers < 0:
		return invalid("workers", "must be non-negative, got %d", c.Workers)
	}

	_, err := BetModel(c)
	return err
}

// Model is the per-bet model shared by every trial.
type Model struct {
	WinProbability  float64 `json:"winProbability"`
	Payout          float64 `json:"payoutMultiplier"`
	PayoutOdds      int     `json:"payoutOdds,omitempty"` // Payout as an American price
	FullKelly       float64 `json:"fullKelly"`
	AppliedFraction float64 `json:"appliedFraction"`
	EdgePercent     float64 `json:"edgePercent"`
}

// BetModel derives the win probability p and net payout b for cfg's mode,
// then the Kelly fraction staked on every bet.
func BetModel(c Config) (Model, error) {
	var p, b float64
	var err error

	switch c.Mode {
	case ModeParlay:
		p, b, err = parlayModel(c)
	case ModeEdge:
		p, b, err = edgeModel(c)
	default:
		return Model{}, invalid("mode", "unknown mode %q, want A or B", c.Mode)
	}
	if err != nil {
		return Model{}, err
	}

	full := analysis.KellyFraction(p, b)
	// Prices too long for an int are left at 0
	price, _ := odds.DecimalToAmerican(b + 1)
	return Model{
		WinProbability:  p,
		Payout:          b,
		PayoutOdds:      price,
		FullKelly:       full,
		AppliedFraction: analysis.AppliedFraction(full, c.KellyFraction),
		EdgePercent:     analysis.EdgePercent(p, b),
	}, nil
}

func parlayModel(c Config) (float64, float64, error) {
	if len(c.Legs) == 0 {
		if !validPercent(c.FairProbOneLeg) {
			return 0, 0, invalid("fairProbOneLeg", "must be in (0,100], got %v", c.FairProbOneLeg)
		}
		if c.NumberOfLegs < 1 {
			return 0, 0, invalid("numberOfLegs", "must be at least 1, got %d", c.NumberOfLegs)
		}
		b, err := odds.AmericanToPayout(c.TotalPayout)
		if err != nil {
			return 0, 0, invalid("totalPayout", "%v", err)
		}
		return math.Pow(c.FairProbOneLeg/100, float64(c.NumberOfLegs)), b, nil
	}

	p := 1.0
	price := 1.0
	for i, leg := range c.Legs {
		if !validPercent(leg.FairProbability) {
			return 0, 0, invalid(fmt.Sprintf("legs[%d].fairProbability", i), "must be in (0,100], got %v", leg.FairProbability)
		}
		p *= leg.FairProbability / 100
		if c.TotalPayout == 0 {
			d, err := odds.AmericanToDecimal(leg.PayoutOdds)
			if err != nil {
				return 0, 0, invalid(fmt.Sprintf("legs[%d].payoutOdds", i), "required without totalPayout: %v", err)
			}
			price *= d
		}
	}

	if c.TotalPayout == 0 {
		return p, price - 1, nil
	}
	b, err := odds.AmericanToPayout(c.TotalPayout)
	if err != nil {
		return 0, 0, invalid("totalPayout", "%v", err)
	}
	return p, b, nil
}

func edgeModel(c Config) (float64, float64, error) {
	b, err := odds.AmericanToPayout(c.PayoutPerBet)
	if err != nil {
		return 0, 0, invalid("payoutPerBet", "%v", err)
	}
	if math.IsNaN(c.EstimatedEdge) {
		return 0, 0, invalid("estimatedEdge", "must be a number")
	}
	p := analysis.EdgeToProbability(c.EstimatedEdge, b)
	if p <= 0 || p >= 1 {
		return 0, 0, invalid("estimatedEdge", "%v%% at payout %+d implies win probability %v outside (0,1)",
			c.EstimatedEdge, c.PayoutPerBet, p)
	}
	return p, b, nil
}

func validPercent(v float64) bool {
	return !math.IsNaN(v) && v > 0 && v <= 100
}
