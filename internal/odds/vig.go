package odds

import (
	"fmt"
	"math"
)

// Method selects how the bookmaker margin is stripped from a two-way price.
type Method string

const (
	WorstCase      Method = "worst_case"
	Multiplicative Method = "multiplicative"
	Additive       Method = "additive"
	Power          Method = "power"
)

// Methods lists every supported devig method.
var Methods = []Method{WorstCase, Multiplicative, Additive, Power}

// ParseMethod maps a request value onto a Method. Empty means worst_case.
func ParseMethod(s string) (Method, error) {
	if s == "" {
		return WorstCase, nil
	}
	for _, m := range Methods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", &DevigError{Method: Method(s), Reason: "unknown devig method"}
}

// Label is the display name used in calculator output.
func (m Method) Label() string {
	switch m {
	case Multiplicative:
		return "Multiplicative"
	case Additive:
		return "Additive"
	case Power:
		return "Power"
	default:
		return "Worst-case"
	}
}

// DevigError reports odds or probabilities that cannot be devigged.
type DevigError struct {
	Pair   OddsPair
	Method Method
	Reason string
}

func (e *DevigError) Error() string {
	if e.Pair != (OddsPair{}) {
		return fmt.Sprintf("devig %s (%s): %s", e.Pair, e.Method, e.Reason)
	}
	return fmt.Sprintf("devig (%s): %s", e.Method, e.Reason)
}

// Devigged is the fair-probability estimate for both sides of a pair.
// Applied is the method that produced FairA; it differs from Method only for
// worst_case, where it names the most conservative of the three estimates.
type Devigged struct {
	ImpliedA float64 `json:"impliedA"`
	ImpliedB float64 `json:"impliedB"`
	FairA    float64 `json:"fairA"`
	FairB    float64 `json:"fairB"`
	Method   Method  `json:"method"`
	Applied  Method  `json:"applied"`
}

// probEpsilon keeps fair probabilities inside the open interval (0,1).
const probEpsilon = 1e-9

// Devig strips the margin from pair using method m.
func Devig(pair OddsPair, m Method) (Devigged, error) {
	if err := pair.Validate(); err != nil {
		return Devigged{}, &DevigError{Pair: pair, Method: m, Reason: "American odds cannot be 0"}
	}

	impliedA := AmericanToImplied(pair.A)
	impliedB := AmericanToImplied(pair.B)
	if impliedA+impliedB <= 0 {
		return Devigged{}, &DevigError{Pair: pair, Method: m, Reason: "implied probabilities sum to <= 0"}
	}

	var fairA float64
	applied := m

	switch m {
	case Multiplicative:
		fairA, _ = RemoveVig(impliedA, impliedB)
	case Additive:
		fairA, _ = RemoveVigAdditive(impliedA, impliedB)
	case Power:
		var err error
		fairA, _, err = RemoveVigPower(impliedA, impliedB)
		if err != nil {
			return Devigged{}, &DevigError{Pair: pair, Method: m, Reason: err.Error()}
		}
	case WorstCase:
		var err error
		fairA, applied, err = worstCase(impliedA, impliedB)
		if err != nil {
			return Devigged{}, &DevigError{Pair: pair, Method: m, Reason: err.Error()}
		}
	default:
		return Devigged{}, &DevigError{Pair: pair, Method: m, Reason: "unknown devig method"}
	}

	fairA = clampOpen(fairA)
	return Devigged{
		ImpliedA: impliedA,
		ImpliedB: impliedB,
		FairA:    fairA,
		FairB:    1 - fairA,
		Method:   m,
		Applied:  applied,
	}, nil
}

// worstCase returns the lowest side-A estimate across the concrete methods,
// which biases sizing toward underestimating the edge.
func worstCase(impliedA, impliedB float64) (float64, Method, error) {
	mult, _ := RemoveVig(impliedA, impliedB)
	add, _ := RemoveVigAdditive(impliedA, impliedB)
	pow, _, err := RemoveVigPower(impliedA, impliedB)
	if err != nil {
		return 0, "", err
	}

	best, method := mult, Multiplicative
	if add < best {
		best, method = add, Additive
	}
	if pow < best {
		best, method = pow, Power
	}
	return best, method, nil
}

// RemoveVig removes the vig/juice from a two-way market
// Returns the true probabilities that sum to 1.0
//
// Method: Multiplicative vig removal (proportional)
// trueProbA = impliedA / (impliedA + impliedB)
// trueProbB = impliedB / (impliedA + impliedB)
func RemoveVig(impliedA, impliedB float64) (float64, float64) {
	if impliedA <= 0 || impliedB <= 0 {
		return 0, 0
	}

	total := impliedA + impliedB
	return impliedA / total, impliedB / total
}

// RemoveVigAdditive subtracts half of the overround from each side.
// overround = impliedA + impliedB - 1
// The result can leave (0,1) for extreme longshots; Devig clamps it.
func RemoveVigAdditive(impliedA, impliedB float64) (float64, float64) {
	if impliedA <= 0 || impliedB <= 0 {
		return 0, 0
	}

	half := (impliedA + impliedB - 1) / 2
	return impliedA - half, impliedB - half
}

// Power exponent search range and tolerance. The wide range is a fallback
// for markets whose margin is too large for the normal bracket.
const (
	powerLow      = 0.5
	powerHigh     = 3.0
	powerWideLow  = 0.01
	powerWideHigh = 10.0
	powerTol      = 1e-6
	powerMaxIters = 200
)

// RemoveVigPower removes vig using the Power method
// This accounts for the favorite-longshot bias: longshots are systematically overbet.
// Finds k such that p1^(1/k) + p2^(1/k) = 1, then:
// - trueProb1 = p1^(1/k)
// - trueProb2 = p2^(1/k)
// This deflates longshot probabilities more than favorites.
func RemoveVigPower(impliedA, impliedB float64) (float64, float64, error) {
	if impliedA <= 0 || impliedA >= 1 || impliedB <= 0 || impliedB >= 1 {
		return 0, 0, fmt.Errorf("implied probabilities must be in (0,1)")
	}

	// Already fair
	if math.Abs(impliedA+impliedB-1.0) < 1e-12 {
		return impliedA, impliedB, nil
	}

	k, err := findPowerExponent(impliedA, impliedB)
	if err != nil {
		return 0, 0, err
	}

	return math.Pow(impliedA, 1/k), math.Pow(impliedB, 1/k), nil
}

// powerResidual is p1^(1/k) + p2^(1/k) - 1. For 0 < p < 1 it increases with k.
func powerResidual(p1, p2, k float64) float64 {
	return math.Pow(p1, 1/k) + math.Pow(p2, 1/k) - 1
}

// findPowerExponent finds k by bisection, first over the normal range and
// then over the wide range if the root is not bracketed.
func findPowerExponent(p1, p2 float64) (float64, error) {
	for _, r := range [][2]float64{{powerLow, powerHigh}, {powerWideLow, powerWideHigh}} {
		low, high := r[0], r[1]
		if powerResidual(p1, p2, low) > 0 || powerResidual(p1, p2, high) < 0 {
			continue
		}

		for i := 0; i < powerMaxIters && high-low > powerTol; i++ {
			mid := (low + high) / 2
			if powerResidual(p1, p2, mid) > 0 {
				high = mid
			} else {
				low = mid
			}
		}
		return (low + high) / 2, nil
	}
	return 0, fmt.Errorf("power exponent not found in [%v, %v]", powerWideLow, powerWideHigh)
}

// Overround is the margin built into a pair: implied probabilities summed minus 1.
func Overround(pair OddsPair) float64 {
	return AmericanToImplied(pair.A) + AmericanToImplied(pair.B) - 1
}

// MarketJuice is the share of the quoted probability that is margin, in percent.
func MarketJuice(implied, fair float64) float64 {
	if implied <= 0 {
		return 0
	}
	return (implied - fair) / implied * 100
}

func clampOpen(p float64) float64 {
	if p < probEpsilon {
		return probEpsilon
	}
	if p > 1-probEpsilon {
		return 1 - probEpsilon
	}
	return p
}
