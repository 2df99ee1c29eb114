package fairness

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

// referenceMedian is the classical median; for even lengths it returns the
// lower middle element, which is what a cumulative-weight median selects.
func referenceMedian(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return sorted[(len(sorted)-1)/2]
}

func TestWeightedMedian_UniformWeightsMatchMedian(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	for trial := range 500 {
		n := 1 + rng.IntN(60)
		values := make([]float64, n)
		weights := make([]float64, n)
		w := float64(1 + rng.IntN(5))
		for i := range values {
			values[i] = rng.NormFloat64()*1000 + 5000
			weights[i] = w
		}
		assert.Equal(t, referenceMedian(values), WeightedMedian(values, weights), "trial %d (n=%d)", trial, n)
	}
}

func TestWeightedMedian_OddLengthIsClassicalMedian(t *testing.T) {
	values := []float64{9, 1, 5, 3, 7}
	assert.Equal(t, 5.0, WeightedMedian(values, []float64{1, 1, 1, 1, 1}))
}

func TestWeightedMedian(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		weights []float64
		want    float64
	}{
		{"single", []float64{42}, []float64{1}, 42},
		{"heavy tail wins", []float64{1, 2, 100}, []float64{1, 1, 5}, 100},
		{"heavy head wins", []float64{1, 2, 100}, []float64{5, 1, 1}, 1},
		{"exact half", []float64{10, 20}, []float64{1, 1}, 10},
		{"unsorted input", []float64{30, 10, 20}, []float64{1, 1, 1}, 20},
		{"all zero weights", []float64{3, 1, 2}, []float64{0, 0, 0}, 3},
		{"missing weights count as zero", []float64{1, 2, 3}, []float64{0, 0}, 3},
		{"zero weight entries skipped", []float64{1, 2, 3}, []float64{0, 0, 1}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeightedMedian(tt.values, tt.weights))
		})
	}
}

func TestWeightedMedian_Empty(t *testing.T) {
	assert.True(t, math.IsNaN(WeightedMedian(nil, nil)))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.08, Clamp(0, 0.08, 0.20))
	assert.Equal(t, 0.12, Clamp(0.12, 0.08, 0.20))
	assert.Equal(t, 0.20, Clamp(3, 0.08, 0.20))
}
