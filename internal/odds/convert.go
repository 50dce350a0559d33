package odds

import (
	"fmt"
	"math"
)

// AmericanToImplied converts American odds to implied probability
// Example: -150 → 0.6 (60%), +150 → 0.4 (40%)
func AmericanToImplied(odds int) float64 {
	if odds == 0 {
		return 0
	}

	if odds > 0 {
		// Underdog: probability = 100 / (odds + 100)
		return 100.0 / (float64(odds) + 100.0)
	}
	// Favorite: probability = |odds| / (|odds| + 100)
	return math.Abs(float64(odds)) / (math.Abs(float64(odds)) + 100.0)
}

// AmericanToPayout returns the net payout multiplier b (profit per unit staked).
// -150 → 0.667, +150 → 1.5, ±100 → 1.0
func AmericanToPayout(odds int) (float64, error) {
	if odds == 0 {
		return 0, fmt.Errorf("invalid American odds: cannot be 0")
	}

	if odds > 0 {
		return float64(odds) / 100.0, nil
	}
	return 100.0 / math.Abs(float64(odds)), nil
}

// AmericanToDecimal converts American odds to decimal odds (payout + stake).
// American +150 → 2.50, American -150 → 1.67
func AmericanToDecimal(odds int) (float64, error) {
	b, err := AmericanToPayout(odds)
	if err != nil {
		return 0, err
	}
	return b + 1.0, nil
}

// maxDecimalOdds keeps the American price well inside the int range.
const maxDecimalOdds = 1e15

// DecimalToAmerican converts decimal odds to American odds, rounding to the
// nearest whole price.
func DecimalToAmerican(decimal float64) (int, error) {
	if math.IsNaN(decimal) || decimal <= 1.0 {
		return 0, fmt.Errorf("invalid decimal odds: must be > 1.0, got %v", decimal)
	}
	if decimal > maxDecimalOdds {
		return 0, fmt.Errorf("invalid decimal odds: %v is too large for an American price", decimal)
	}

	if decimal >= 2.0 {
		return int(math.Round((decimal - 1.0) * 100.0)), nil
	}
	return int(math.Round(-100.0 / (decimal - 1.0))), nil
}

// ProbabilityToAmerican converts a fair probability into the American price a
// book with no margin would quote. Favorites come out negative; the price is
// truncated toward zero, so 0.5 → +100 and 0.55 → -122.
// Returns 0 for probabilities outside (0,1).
func ProbabilityToAmerican(prob float64) int {
	if prob <= 0 || prob >= 1 {
		return 0
	}

	if prob > 0.5 {
		return -int(prob / (1 - prob) * 100)
	}
	return int((1 - prob) / prob * 100)
}
