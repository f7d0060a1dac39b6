package spatialmath

import "math"

const floatEpsilon = 1e-9

func degToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// clampNonNegative returns v, or 0 when v is negative.
func clampNonNegative(v float64) float64 {
	return math.Max(0, v)
}
