package hypothesis

import (
	"fmt"
	"math"

	"insurisk/domain/stats"

	gstat "gonum.org/v1/gonum/stat"
)

// Mode decides between parametric and rank-based tests for continuous metrics
type Mode string

const (
	// ModeSkewAssumption uses rank tests for metrics known to be right-skewed
	ModeSkewAssumption Mode = "skew-assumption"
	// ModeParametric always compares means
	ModeParametric Mode = "parametric"
	// ModeNonParametric always compares ranks
	ModeNonParametric Mode = "nonparametric"
	// ModeMeasured uses rank tests when the pooled sample skewness exceeds a threshold
	ModeMeasured Mode = "measured"
)

// ParseMode validates a configured mode name
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeSkewAssumption, ModeParametric, ModeNonParametric, ModeMeasured:
		return m, nil
	case "":
		return ModeSkewAssumption, nil
	default:
		return "", fmt.Errorf("unknown parametric policy %q", s)
	}
}

// RightSkewed lists the metrics assumed heavy-tailed under ModeSkewAssumption
var RightSkewed = map[stats.Metric]bool{
	stats.MetricSeverity:    true,
	stats.MetricMargin:      true,
	stats.MetricTotalClaims: true,
	stats.MetricLossRatio:   true,
}

// TestFunc runs one test over pre-filtered groups. Binary metrics pass 0/1 values.
type TestFunc func(groups [][]float64) stats.Outcome

type cardinality int

const (
	twoGroups cardinality = iota
	manyGroups
)

type selectionKey struct {
	kind       stats.ValueKind
	card       cardinality
	parametric bool
}

// decisionTable maps (metric kind × group count × parametric) to a test
var decisionTable = map[selectionKey]struct {
	name stats.TestName
	run  TestFunc
}{
	{stats.ValueBinary, twoGroups, true}:       {stats.TestChiSquare, chiSquareOnBinary},
	{stats.ValueBinary, twoGroups, false}:      {stats.TestChiSquare, chiSquareOnBinary},
	{stats.ValueBinary, manyGroups, true}:      {stats.TestChiSquare, chiSquareOnBinary},
	{stats.ValueBinary, manyGroups, false}:     {stats.TestChiSquare, chiSquareOnBinary},
	{stats.ValueContinuous, twoGroups, true}:   {stats.TestWelch, func(g [][]float64) stats.Outcome { return WelchTTest(g[0], g[1]) }},
	{stats.ValueContinuous, twoGroups, false}:  {stats.TestMannWhitney, func(g [][]float64) stats.Outcome { return MannWhitneyU(g[0], g[1]) }},
	{stats.ValueContinuous, manyGroups, true}:  {stats.TestANOVA, OneWayANOVA},
	{stats.ValueContinuous, manyGroups, false}: {stats.TestKruskalWallis, KruskalWallis},
}

// Selector picks the test for a metric and its groups
type Selector struct {
	mode          Mode
	skewThreshold float64
}

// NewSelector creates a selector; skewThreshold only matters for ModeMeasured
func NewSelector(mode Mode, skewThreshold float64) *Selector {
	return &Selector{mode: mode, skewThreshold: skewThreshold}
}

// Parametric reports whether a continuous metric should be compared by means
func (s *Selector) Parametric(metric stats.Metric, groups [][]float64) bool {
	switch s.mode {
	case ModeParametric:
		return true
	case ModeNonParametric:
		return false
	case ModeMeasured:
		var pooled []float64
		for _, g := range groups {
			pooled = append(pooled, g...)
		}
		if len(pooled) < 3 {
			return false
		}
		skew := gstat.Skew(pooled, nil)
		return !math.IsNaN(skew) && math.Abs(skew) <= s.skewThreshold
	default:
		return !RightSkewed[metric]
	}
}

// Select returns the test to run. groups must already hold at least two entries.
func (s *Selector) Select(metric stats.Metric, groups [][]float64) (stats.TestName, TestFunc) {
	key := selectionKey{kind: metric.Kind(), card: manyGroups}
	if len(groups) == 2 {
		key.card = twoGroups
	}
	if key.kind == stats.ValueContinuous {
		key.parametric = s.Parametric(metric, groups)
	}
	entry := decisionTable[key]
	return entry.name, entry.run
}

// chiSquareOnBinary cross-tabulates 0/1 outcomes per group
func chiSquareOnBinary(groups [][]float64) stats.Outcome {
	table := make([][]float64, len(groups))
	for i, g := range groups {
		row := make([]float64, 2)
		for _, v := range g {
			if v != 0 {
				row[1]++
			} else {
				row[0]++
			}
		}
		table[i] = row
	}
	return ChiSquareIndependence(table)
}
