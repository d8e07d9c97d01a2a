package outliers

import (
	"math"
	"sort"
)

// Bounds are Tukey fences around the interquartile range
type Bounds struct {
	Q1    float64
	Q3    float64
	IQR   float64
	Lower float64
	Upper float64
}

// Valid reports whether the quartiles could be computed
func (b Bounds) Valid() bool {
	return !math.IsNaN(b.Lower) && !math.IsNaN(b.Upper)
}

// Contains reports whether v lies inside the fences
func (b Bounds) Contains(v float64) bool {
	return !b.Valid() || (v >= b.Lower && v <= b.Upper)
}

// IQRBounds computes [Q1-1.5·IQR, Q3+1.5·IQR]. Quartiles interpolate linearly
// between order statistics at rank (n-1)·p, so any non-empty sample has bounds.
// An empty sample yields invalid bounds, which flag nothing.
func IQRBounds(values []float64) Bounds {
	if len(values) == 0 {
		nan := math.NaN()
		return Bounds{Q1: nan, Q3: nan, IQR: nan, Lower: nan, Upper: nan}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	return Bounds{
		Q1:    q1,
		Q3:    q3,
		IQR:   iqr,
		Lower: q1 - 1.5*iqr,
		Upper: q3 + 1.5*iqr,
	}
}

func quantile(sorted []float64, p float64) float64 {
	h := float64(len(sorted)-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[i]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// FlagIQR marks each value outside the IQR fences
func FlagIQR(values []float64) ([]bool, Bounds) {
	b := IQRBounds(values)
	flags := make([]bool, len(values))
	for i, v := range values {
		flags[i] = !b.Contains(v)
	}
	return flags, b
}
