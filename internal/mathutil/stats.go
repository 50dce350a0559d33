package mathutil

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// SortedCopy returns xs sorted ascending without touching the input.
func SortedCopy(xs []float64) []float64 {
	out := make([]float64, len(xs))
	copy(out, xs)
	sort.Float64s(out)
	return out
}

// Percentile returns the q-th percentile (0-100) of an ascending slice,
// interpolating linearly between the two nearest order statistics.
func Percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 || q <= 0 {
		return sorted[0]
	}
	if q >= 100 {
		return sorted[n-1]
	}

	rank := q / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Median of an ascending slice.
func Median(sorted []float64) float64 {
	return Percentile(sorted, 50)
}

// ProportionMargin is the normal-approximation margin of error for an
// observed proportion p over n trials at the given two-sided confidence.
func ProportionMargin(p float64, n int, confidence float64) float64 {
	if n <= 0 {
		return 0
	}
	z := NormalInvCDF(1 - (1-confidence)/2)
	return z * math.Sqrt(p*(1-p)/float64(n))
}
