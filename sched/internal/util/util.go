// Package util provides small numeric helpers shared across sched/ sub-packages.
package util

// Clamp01 bounds v to [0, 1]. Float rounding in dot products of unit vectors
// can land a hair outside the range.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Mean returns the arithmetic mean of v, or 0 for an empty slice.
func Mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}
