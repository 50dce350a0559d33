// Package mathutil holds the numeric helpers shared by the sizing and
// simulation code.
package mathutil

import "math"

// zClamp bounds NormalInvCDF at the edges of (0,1).
const zClamp = 10

// Acklam's rational approximation, relative error below 1.15e-9.
var (
	acklamA = [...]float64{-3.969683028665376e+01, 2.209460984245205e+02, -2.759285104469687e+02,
		1.383577518672690e+02, -3.066479806614716e+01, 2.506628277459239e+00}
	acklamB = [...]float64{-5.447609879822406e+01, 1.615858368580409e+02, -1.556989798598866e+02,
		6.680131188771972e+01, -1.328068155288572e+01, 1}
	acklamC = [...]float64{-7.784894002430293e-03, -3.223964580411365e-01, -2.400758277161838e+00,
		-2.549732539343734e+00, 4.374664141464968e+00, 2.938163982698783e+00}
	acklamD = [...]float64{7.784695709041462e-03, 3.224671290700398e-01, 2.445134137142996e+00,
		3.754408661907416e+00, 1}
)

const acklamTail = 0.02425

// horner evaluates a polynomial with coefficients from highest degree down.
func horner(coef []float64, x float64) float64 {
	var y float64
	for _, c := range coef {
		y = y*x + c
	}
	return y
}

// NormalInvCDF returns z such that P(Z <= z) = p. Inputs outside (0,1)
// clamp to ±10.
func NormalInvCDF(p float64) float64 {
	switch {
	case p <= 0:
		return -zClamp
	case p >= 1:
		return zClamp
	case p == 0.5:
		return 0
	}

	if p < acklamTail || p > 1-acklamTail {
		tail := p
		sign := 1.0
		if p > 0.5 {
			tail = 1 - p
			sign = -1
		}
		q := math.Sqrt(-2 * math.Log(tail))
		return sign * horner(acklamC[:], q) / horner(acklamD[:], q)
	}

	q := p - 0.5
	r := q * q
	return q * horner(acklamA[:], r) / horner(acklamB[:], r)
}
