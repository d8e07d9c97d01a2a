// Package hypothesis selects and runs significance tests comparing KPIs across
// groups of policies. Test functions report p-values; callers decide.
package hypothesis

import (
	"math"

	"insurisk/domain/stats"

	"gonum.org/v1/gonum/stat"
)

// exactLimit is the largest group size for which Mann-Whitney uses the exact null
const exactLimit = 8

// ChiSquareIndependence tests independence of rows and columns of a contingency
// table. Empty rows and columns are dropped first; Yates' correction is applied
// when one degree of freedom remains. EffectSize is Cramér's V.
func ChiSquareIndependence(table [][]float64) stats.Outcome {
	table = trimEmpty(table)
	r := len(table)
	if r < 2 || len(table[0]) < 2 {
		n := 0.0
		for _, row := range table {
			for _, v := range row {
				n += v
			}
		}
		out := stats.Insufficient(r, int(n))
		out.Test = stats.TestChiSquare
		return out
	}
	c := len(table[0])

	rowSums := make([]float64, r)
	colSums := make([]float64, c)
	total := 0.0
	for i, row := range table {
		for j, v := range row {
			rowSums[i] += v
			colSums[j] += v
			total += v
		}
	}

	dof := (r - 1) * (c - 1)
	chi2, raw := 0.0, 0.0
	for i, row := range table {
		for j, observed := range row {
			expected := rowSums[i] * colSums[j] / total
			diff := observed - expected
			raw += diff * diff / expected
			if dof == 1 {
				diff = math.Copysign(math.Max(0, math.Abs(diff)-0.5), diff)
			}
			chi2 += diff * diff / expected
		}
	}

	return stats.Outcome{
		PValue:     chiSquareUpper(chi2, dof),
		Statistic:  chi2,
		Test:       stats.TestChiSquare,
		EffectSize: math.Sqrt(raw / (total * float64(min(r, c)-1))),
		SampleSize: int(total),
		Groups:     r,
	}
}

// trimEmpty removes all-zero rows and columns
func trimEmpty(table [][]float64) [][]float64 {
	if len(table) == 0 {
		return nil
	}
	keepCol := make([]bool, len(table[0]))
	var rows [][]float64
	for _, row := range table {
		sum := 0.0
		for j, v := range row {
			sum += v
			if v != 0 {
				keepCol[j] = true
			}
		}
		if sum != 0 {
			rows = append(rows, row)
		}
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		for j, v := range row {
			if keepCol[j] {
				out[i] = append(out[i], v)
			}
		}
	}
	return out
}

// WelchTTest compares two means without assuming equal variances.
// EffectSize is Cohen's d.
func WelchTTest(a, b []float64) stats.Outcome {
	if len(a) < 2 || len(b) < 2 {
		return stats.Insufficient(countUsable(a, b), len(a)+len(b))
	}
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	na, nb := float64(len(a)), float64(len(b))

	sa, sb := va/na, vb/nb
	se := math.Sqrt(sa + sb)
	out := stats.Outcome{
		Test:       stats.TestWelch,
		EffectSize: CohensD(a, b),
		SampleSize: len(a) + len(b),
		Groups:     2,
	}
	if se == 0 {
		out.PValue, out.Statistic = math.NaN(), math.NaN()
		return out
	}

	df := (sa + sb) * (sa + sb) / (sa*sa/(na-1) + sb*sb/(nb-1))
	out.Statistic = (ma - mb) / se
	out.PValue = tTwoSided(out.Statistic, df)
	return out
}

// MannWhitneyU compares two distributions by rank. Small samples without ties
// use the exact null distribution; otherwise the normal approximation with tie
// and continuity correction. Statistic is U of the first sample.
func MannWhitneyU(a, b []float64) stats.Outcome {
	if len(a) < 2 || len(b) < 2 {
		return stats.Insufficient(countUsable(a, b), len(a)+len(b))
	}
	n1, n2 := len(a), len(b)
	pooled := append(append(make([]float64, 0, n1+n2), a...), b...)
	rk := midRanks(pooled)

	r1 := 0.0
	for _, r := range rk.ranks[:n1] {
		r1 += r
	}
	u1 := r1 - float64(n1*(n1+1))/2
	u2 := float64(n1*n2) - u1
	u := math.Max(u1, u2)

	out := stats.Outcome{
		Statistic:  u1,
		Test:       stats.TestMannWhitney,
		EffectSize: 1 - 2*math.Min(u1, u2)/float64(n1*n2), // rank-biserial magnitude
		SampleSize: n1 + n2,
		Groups:     2,
	}

	if n1 <= exactLimit && n2 <= exactLimit && !rk.hasTies {
		out.PValue = math.Min(1, 2*exactUpperTail(n1, n2, int(math.Round(u))))
		return out
	}

	n := float64(n1 + n2)
	mu := float64(n1*n2) / 2
	sigma := math.Sqrt(float64(n1*n2) / 12 * ((n + 1) - rk.tieSum/(n*(n-1))))
	if sigma == 0 {
		out.PValue = math.NaN()
		return out
	}
	z := (u - mu - 0.5) / sigma
	out.PValue = normalTwoSided(z)
	return out
}

// exactUpperTail returns P(U >= k) under the null for sample sizes n1, n2
func exactUpperTail(n1, n2, k int) float64 {
	counts := uCounts(n1, n2)
	total, tail := 0.0, 0.0
	for u, c := range counts {
		total += c
		if u >= k {
			tail += c
		}
	}
	return tail / total
}

// uCounts[u] is the number of orderings of n1+n2 distinct values giving U=u
func uCounts(n1, n2 int) []float64 {
	// f[m][n] is the count vector for sizes m, n
	f := make([][][]float64, n1+1)
	for m := 0; m <= n1; m++ {
		f[m] = make([][]float64, n2+1)
		for n := 0; n <= n2; n++ {
			v := make([]float64, m*n+1)
			if m == 0 || n == 0 {
				v[0] = 1
			} else {
				// largest value from sample one beats all n of sample two
				for u, c := range f[m-1][n] {
					v[u+n] += c
				}
				for u, c := range f[m][n-1] {
					v[u] += c
				}
			}
			f[m][n] = v
		}
	}
	return f[n1][n2]
}

// OneWayANOVA compares means of several groups. EffectSize is eta squared.
func OneWayANOVA(groups [][]float64) stats.Outcome {
	groups = nonEmpty(groups)
	k, n := len(groups), 0
	for _, g := range groups {
		n += len(g)
	}
	if k < 2 {
		return stats.Insufficient(k, n)
	}

	grand := 0.0
	for _, g := range groups {
		for _, v := range g {
			grand += v
		}
	}
	grand /= float64(n)

	ssb, ssw := 0.0, 0.0
	for _, g := range groups {
		m := stat.Mean(g, nil)
		ssb += float64(len(g)) * (m - grand) * (m - grand)
		for _, v := range g {
			ssw += (v - m) * (v - m)
		}
	}

	dfb, dfw := k-1, n-k
	out := stats.Outcome{Test: stats.TestANOVA, SampleSize: n, Groups: k}
	if sst := ssb + ssw; sst > 0 {
		out.EffectSize = ssb / sst
	}
	switch {
	case dfw <= 0 || (ssw == 0 && ssb == 0):
		out.Statistic, out.PValue = math.NaN(), math.NaN()
	case ssw == 0:
		out.Statistic, out.PValue = math.Inf(1), 0
	default:
		out.Statistic = (ssb / float64(dfb)) / (ssw / float64(dfw))
		out.PValue = fUpper(out.Statistic, dfb, dfw)
	}
	return out
}

// KruskalWallis compares several distributions by rank, with tie correction.
// EffectSize is epsilon squared.
func KruskalWallis(groups [][]float64) stats.Outcome {
	groups = nonEmpty(groups)
	k := len(groups)
	var pooled []float64
	for _, g := range groups {
		pooled = append(pooled, g...)
	}
	n := len(pooled)
	if k < 2 {
		return stats.Insufficient(k, n)
	}

	rk := midRanks(pooled)
	nf := float64(n)
	h, offset := 0.0, 0
	for _, g := range groups {
		sum := 0.0
		for _, r := range rk.ranks[offset : offset+len(g)] {
			sum += r
		}
		offset += len(g)
		h += sum * sum / float64(len(g))
	}
	h = 12/(nf*(nf+1))*h - 3*(nf+1)

	out := stats.Outcome{Test: stats.TestKruskalWallis, SampleSize: n, Groups: k}
	correction := 1 - rk.tieSum/(nf*nf*nf-nf)
	if correction == 0 {
		out.Statistic, out.PValue = math.NaN(), math.NaN()
		return out
	}
	h /= correction
	out.Statistic = h
	out.PValue = chiSquareUpper(h, k-1)
	if n > 1 {
		out.EffectSize = h / ((nf*nf - 1) / (nf + 1))
	}
	return out
}

// CohensD is the standardized mean difference using the pooled standard deviation.
// Returns 0 when the pooled deviation is zero or undefined.
func CohensD(a, b []float64) float64 {
	na, nb := float64(len(a)), float64(len(b))
	if na < 1 || nb < 1 || na+nb-2 <= 0 {
		return 0
	}
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	if na < 2 {
		va = 0
	}
	if nb < 2 {
		vb = 0
	}
	pooled := math.Sqrt(((na-1)*va + (nb-1)*vb) / (na + nb - 2))
	if pooled == 0 || math.IsNaN(pooled) {
		return 0
	}
	return (ma - mb) / pooled
}

func countUsable(groups ...[]float64) int {
	n := 0
	for _, g := range groups {
		if len(g) >= 2 {
			n++
		}
	}
	return n
}

func nonEmpty(groups [][]float64) [][]float64 {
	out := make([][]float64, 0, len(groups))
	for _, g := range groups {
		if len(g) > 0 {
			out = append(out, g)
		}
	}
	return out
}
