// Package stats provides the numeric helpers shared by the statistics engines:
// compensated summation for long genome-weighted sums, and small summaries
// over per-tree series.
// All standard deviation calculations use population stddev (÷n, not ÷(n−1)).
package stats

import (
	"cmp"
	"math"
)

// Accumulator is a Neumaier (improved Kahan) compensated sum. The zero value
// is an empty sum.
type Accumulator struct {
	sum  float64
	comp float64
}

// Add adds v to the sum.
func (a *Accumulator) Add(v float64) {
	t := a.sum + v
	if math.Abs(a.sum) >= math.Abs(v) {
		a.comp += (a.sum - t) + v
	} else {
		a.comp += (v - t) + a.sum
	}

	a.sum = t
}

// Value returns the compensated sum.
func (a *Accumulator) Value() float64 {
	return a.sum + a.comp
}

// Reset empties the sum.
func (a *Accumulator) Reset() {
	a.sum, a.comp = 0, 0
}

// Mean returns the arithmetic mean of values.
// Returns 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var acc Accumulator

	for _, v := range values {
		acc.Add(v)
	}

	return acc.Value() / float64(len(values))
}

// WeightedMean returns Σ values[i]·weights[i] / Σ weights[i].
// Returns 0 when the slices are empty, differ in length, or the weights sum to 0.
func WeightedMean(values, weights []float64) float64 {
	if len(values) == 0 || len(values) != len(weights) {
		return 0
	}

	var num, den Accumulator

	for i, v := range values {
		num.Add(v * weights[i])
		den.Add(weights[i])
	}

	if den.Value() == 0 {
		return 0
	}

	return num.Value() / den.Value()
}

// MeanStdDev returns the arithmetic mean and population standard deviation.
// Returns (0, 0) for an empty slice.
func MeanStdDev(values []float64) (mean, stddev float64) {
	count := len(values)
	if count == 0 {
		return 0, 0
	}

	mean = Mean(values)

	var sumSq float64

	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}

	return mean, math.Sqrt(sumSq / float64(count))
}

// Min returns the smallest element in values.
// Returns the zero value of T for an empty slice.
func Min[T cmp.Ordered](values []T) T {
	if len(values) == 0 {
		var zero T

		return zero
	}

	result := values[0]

	for _, v := range values[1:] {
		if v < result {
			result = v
		}
	}

	return result
}

// Max returns the largest element in values.
// Returns the zero value of T for an empty slice.
func Max[T cmp.Ordered](values []T) T {
	if len(values) == 0 {
		var zero T

		return zero
	}

	result := values[0]

	for _, v := range values[1:] {
		if v > result {
			result = v
		}
	}

	return result
}
