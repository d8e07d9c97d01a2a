package outliers

import (
	"math"
	"sort"
)

// Limits are the fractions of values capped at each tail
type Limits struct {
	Lower float64
	Upper float64
}

// DefaultLimits caps only the top 1%
func DefaultLimits() Limits {
	return Limits{Lower: 0, Upper: 0.01}
}

// BothTails caps 1% at each end
func BothTails() Limits {
	return Limits{Lower: 0.01, Upper: 0.01}
}

// Winsorize returns a copy of values where the lowest floor(n·Lower) values are
// raised to the next order statistic and the highest floor(n·Upper) are lowered
// to the order statistic just below them. Rank-based, so applying it twice with
// the same limits changes nothing.
func Winsorize(values []float64, lim Limits) []float64 {
	n := len(values)
	out := make([]float64, n)
	copy(out, values)
	if n == 0 {
		return out
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	if lo := int(math.Floor(lim.Lower * float64(n))); lo > 0 && lo < n {
		floor := values[idx[lo]]
		for _, i := range idx[:lo] {
			out[i] = floor
		}
	}
	if up := int(math.Floor(lim.Upper * float64(n))); up > 0 && up < n {
		ceil := values[idx[n-up-1]]
		for _, i := range idx[n-up:] {
			out[i] = ceil
		}
	}
	return out
}

// CountCapped reports how many positions differ between raw and capped values
func CountCapped(raw, capped []float64) int {
	count := 0
	for i := range raw {
		if raw[i] != capped[i] {
			count++
		}
	}
	return count
}
