package utils

import "math"

// Clamp01 clamps x to [0, 1]. NaN becomes 0.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
