package hypothesis

import (
	"math"
	"math/rand"
	"testing"

	"insurisk/domain/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChiSquare_IdenticalProportions(t *testing.T) {
	out := ChiSquareIndependence([][]float64{{10, 90}, {20, 180}})
	assert.Equal(t, stats.TestChiSquare, out.Test)
	assert.InDelta(t, 0.0, out.Statistic, 1e-12)
	assert.InDelta(t, 1.0, out.PValue, 1e-9)
	assert.False(t, stats.Decide(out, stats.DefaultAlpha))
}

func TestChiSquare_YatesCorrection(t *testing.T) {
	out := ChiSquareIndependence([][]float64{{10, 20}, {30, 40}})
	assert.InDelta(t, 0.446429, out.Statistic, 1e-5)
	assert.InDelta(t, 0.504, out.PValue, 1e-3)
	assert.Equal(t, 100, out.SampleSize)
}

func TestChiSquare_DegenerateTable(t *testing.T) {
	// no claims anywhere leaves a single column
	out := ChiSquareIndependence([][]float64{{10, 0}, {20, 0}})
	assert.True(t, math.IsNaN(out.PValue))
	assert.Equal(t, stats.TestChiSquare, out.Test)
	assert.False(t, stats.Decide(out, stats.DefaultAlpha))
}

func TestChiSquare_StrongDependence(t *testing.T) {
	out := ChiSquareIndependence([][]float64{{90, 10}, {50, 50}, {10, 90}})
	assert.Less(t, out.PValue, 1e-6)
	assert.Greater(t, out.EffectSize, 0.5)
	assert.Equal(t, 3, out.Groups)
}

func TestWelchTTest(t *testing.T) {
	out := WelchTTest([]float64{1, 2, 3, 4, 5}, []float64{2, 4, 6, 8, 10})
	assert.Equal(t, stats.TestWelch, out.Test)
	assert.InDelta(t, -1.897367, out.Statistic, 1e-5)
	assert.Greater(t, out.PValue, 0.09)
	assert.Less(t, out.PValue, 0.13)
	assert.InDelta(t, -1.2, out.EffectSize, 1e-9)
}

func TestWelchTTest_ZeroVariance(t *testing.T) {
	out := WelchTTest([]float64{3, 3, 3}, []float64{3, 3})
	assert.True(t, math.IsNaN(out.PValue))
	assert.Equal(t, 0.0, out.EffectSize)
}

func TestWelchTTest_TooSmall(t *testing.T) {
	out := WelchTTest([]float64{1}, []float64{2, 3})
	assert.Equal(t, stats.TestInsufficientGroups, out.Test)
	assert.True(t, math.IsNaN(out.PValue))
}

func TestCohensD(t *testing.T) {
	assert.Equal(t, 0.0, CohensD([]float64{1, 1}, []float64{1, 1}))
	assert.Equal(t, 0.0, CohensD(nil, []float64{1, 2}))
	assert.InDelta(t, -1.2, CohensD([]float64{1, 2, 3, 4, 5}, []float64{2, 4, 6, 8, 10}), 1e-9)
}

func TestMannWhitneyU_Exact(t *testing.T) {
	out := MannWhitneyU([]float64{1, 2, 3}, []float64{4, 5, 6})
	assert.Equal(t, stats.TestMannWhitney, out.Test)
	assert.Equal(t, 0.0, out.Statistic)
	assert.InDelta(t, 0.1, out.PValue, 1e-12)

	out = MannWhitneyU([]float64{1, 4, 5}, []float64{2, 3, 6})
	assert.InDelta(t, 1.0, out.PValue, 1e-12)
}

func TestUCounts(t *testing.T) {
	assert.Equal(t, []float64{1, 1, 2, 1, 1}, uCounts(2, 2))
	total := 0.0
	for _, c := range uCounts(3, 4) {
		total += c
	}
	assert.Equal(t, 35.0, total)
}

func TestMannWhitneyU_AsymptoticWithTies(t *testing.T) {
	a := []float64{1, 2, 2, 3, 3, 3, 4, 4, 5, 6}
	b := []float64{5, 6, 6, 7, 7, 8, 8, 9, 9, 10}
	out := MannWhitneyU(a, b)
	assert.Less(t, out.PValue, 0.01)
	assert.Less(t, out.Statistic, 50.0)

	same := MannWhitneyU([]float64{5, 5, 5}, []float64{5, 5, 5, 5, 5, 5, 5, 5, 5})
	assert.True(t, math.IsNaN(same.PValue))
}

func TestMannWhitneyU_IdenticalDistributions(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const reps = 400
	rejected, sumP := 0, 0.0
	for i := 0; i < reps; i++ {
		a := make([]float64, 30)
		b := make([]float64, 40)
		for j := range a {
			a[j] = rng.ExpFloat64() * 1000
		}
		for j := range b {
			b[j] = rng.ExpFloat64() * 1000
		}
		out := MannWhitneyU(a, b)
		require.True(t, out.Valid())
		sumP += out.PValue
		if stats.Decide(out, stats.DefaultAlpha) {
			rejected++
		}
	}
	assert.Greater(t, sumP/reps, 0.3)
	assert.Less(t, float64(rejected)/reps, 0.1)
}

func TestOneWayANOVA(t *testing.T) {
	out := OneWayANOVA([][]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}})
	assert.Equal(t, stats.TestANOVA, out.Test)
	assert.InDelta(t, 27.0, out.Statistic, 1e-9)
	assert.Less(t, out.PValue, 0.01)
	assert.InDelta(t, 0.9, out.EffectSize, 1e-9)

	flat := OneWayANOVA([][]float64{{2, 2}, {2, 2}})
	assert.True(t, math.IsNaN(flat.PValue))

	single := OneWayANOVA([][]float64{{1, 2, 3}, nil})
	assert.Equal(t, stats.TestInsufficientGroups, single.Test)
}

func TestKruskalWallis(t *testing.T) {
	out := KruskalWallis([][]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}})
	assert.Equal(t, stats.TestKruskalWallis, out.Test)
	assert.InDelta(t, 7.2, out.Statistic, 1e-9)
	assert.InDelta(t, math.Exp(-3.6), out.PValue, 1e-6)

	tied := KruskalWallis([][]float64{{1, 1}, {1, 1}, {1}})
	assert.True(t, math.IsNaN(tied.PValue))
}

func TestMidRanks(t *testing.T) {
	rk := midRanks([]float64{10, 20, 20, 30})
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, rk.ranks)
	assert.True(t, rk.hasTies)
	assert.Equal(t, 6.0, rk.tieSum)
}
