package hypothesis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// tTwoSided is the two-tailed p-value of a t statistic
func tTwoSided(t, df float64) float64 {
	if df <= 0 || math.IsNaN(t) {
		return math.NaN()
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return math.Min(1, 2*dist.CDF(-math.Abs(t)))
}

// fUpper is the upper-tail p-value of an F statistic
func fUpper(f float64, df1, df2 int) float64 {
	if df1 <= 0 || df2 <= 0 || math.IsNaN(f) {
		return math.NaN()
	}
	if math.IsInf(f, 1) {
		return 0
	}
	dist := distuv.F{D1: float64(df1), D2: float64(df2)}
	return clampP(1 - dist.CDF(f))
}

// chiSquareUpper is the upper-tail p-value of a chi-square statistic
func chiSquareUpper(x float64, dof int) float64 {
	if dof <= 0 || math.IsNaN(x) {
		return math.NaN()
	}
	dist := distuv.ChiSquared{K: float64(dof)}
	return clampP(1 - dist.CDF(x))
}

// normalTwoSided is the two-tailed p-value of a z score
func normalTwoSided(z float64) float64 {
	if math.IsNaN(z) {
		return math.NaN()
	}
	return math.Min(1, 2*distuv.UnitNormal.CDF(-math.Abs(z)))
}

func clampP(p float64) float64 {
	return math.Max(0, math.Min(1, p))
}

// rankResult holds mid-ranks of a pooled sample and its tie structure
type rankResult struct {
	ranks   []float64
	tieSum  float64 // Σ(t³−t) over tie groups
	hasTies bool
}

// midRanks ranks values 1..n, giving tied values the mean of their positions
func midRanks(values []float64) rankResult {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	res := rankResult{ranks: make([]float64, n)}
	for i := 0; i < n; {
		j := i + 1
		for j < n && values[idx[j]] == values[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2 // positions i+1..j
		for k := i; k < j; k++ {
			res.ranks[idx[k]] = avg
		}
		if t := float64(j - i); t > 1 {
			res.tieSum += t*t*t - t
			res.hasTies = true
		}
		i = j
	}
	return res
}
