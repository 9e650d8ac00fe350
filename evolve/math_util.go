package evolve

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// clamp restricts a value to a given range [minVal, maxVal].
func clamp(value, minVal, maxVal float64) float64 {
	return math.Max(minVal, math.Min(value, maxVal))
}

// lerp linearly interpolates between a and b; t=0 yields a, t=1 yields b.
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	return stat.Mean(values, nil)
}

// Stdev returns the sample standard deviation, 0 for fewer than two values.
func Stdev(values []float64) float64 {
	if len(values) < 2 {
		return 0.0
	}
	return stat.StdDev(values, nil)
}

// Median calculates the median of a slice of float64 values.
// Returns NaN if the slice is empty.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2.0
}

// TrimmedMean drops the lowest and highest trim fraction of values before
// averaging. At least one value always remains.
func TrimmedMean(values []float64, trim float64) float64 {
	n := len(values)
	if n == 0 {
		return 0.0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	cut := int(math.Floor(float64(n) * trim))
	if 2*cut >= n {
		cut = (n - 1) / 2
	}
	return stat.Mean(sorted[cut:n-cut], nil)
}

// MinMax returns the smallest and largest value. Empty input yields (+Inf, -Inf).
func MinMax(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
