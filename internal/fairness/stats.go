package fairness

import (
	"cmp"
	"math"
	"slices"
)

type weighted struct {
	value  float64
	weight float64
}

// WeightedMedian returns the value at which cumulative weight, in ascending
// value order, first reaches half of the total weight. It returns NaN for
// empty input and the largest value when every weight is zero. Weights beyond
// len(values) are ignored; missing weights count as zero.
func WeightedMedian(values, weights []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	pairs := make([]weighted, len(values))
	var total float64
	for i, v := range values {
		var w float64
		if i < len(weights) {
			w = weights[i]
		}
		pairs[i] = weighted{value: v, weight: w}
		total += w
	}
	slices.SortStableFunc(pairs, func(a, b weighted) int {
		return cmp.Compare(a.value, b.value)
	})

	if total <= 0 {
		return pairs[len(pairs)-1].value
	}

	var cum float64
	for _, p := range pairs {
		cum += p.weight
		if cum/total >= 0.5 {
			return p.value
		}
	}
	return pairs[len(pairs)-1].value
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
