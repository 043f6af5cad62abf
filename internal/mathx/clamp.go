package mathx

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamped reports whether v lies outside [lo, hi].
func Clamped[T constraints.Ordered](v, lo, hi T) bool {
	return Clamp(v, lo, hi) != v
}

// RoundHalfUp rounds x to the nearest integer, ties away from -Inf.
// Matches the (uint)(x + 0.5) conversion used when writing compare registers.
func RoundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

// Finite reports whether x is neither NaN nor ±Inf.
func Finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
