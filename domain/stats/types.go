package stats

import "math"

// DefaultAlpha is the significance level used throughout the pricing analysis
const DefaultAlpha = 0.05

// TestName identifies the statistical test that produced an outcome
type TestName string

const (
	TestChiSquare          TestName = "Chi-Square"
	TestWelch              TestName = "Welch's t-test"
	TestMannWhitney        TestName = "Mann-Whitney U"
	TestANOVA              TestName = "ANOVA"
	TestKruskalWallis      TestName = "Kruskal-Wallis"
	TestInsufficientGroups TestName = "Insufficient Groups"
)

// Outcome is what every test function returns: p-value, statistic and test name.
// Degenerate inputs yield NaN p-value/statistic rather than an error.
type Outcome struct {
	PValue     float64
	Statistic  float64
	Test       TestName
	EffectSize float64 // Cohen's d or Cramér's V where defined, else 0
	SampleSize int
	Groups     int
}

// Insufficient is the sentinel returned when fewer than two usable groups remain
func Insufficient(groups, n int) Outcome {
	return Outcome{
		PValue:     math.NaN(),
		Statistic:  math.NaN(),
		Test:       TestInsufficientGroups,
		SampleSize: n,
		Groups:     groups,
	}
}

// Valid reports whether the outcome carries a usable p-value
func (o Outcome) Valid() bool {
	return !math.IsNaN(o.PValue)
}

// Metric names the KPI a hypothesis is evaluated on
type Metric string

const (
	MetricFrequency      Metric = "Frequency"
	MetricSeverity       Metric = "Severity"
	MetricMargin         Metric = "Margin"
	MetricLossRatio      Metric = "LossRatio"
	MetricTotalClaims    Metric = "TotalClaims"
	MetricPremiumPerTerm Metric = "PremiumPerTerm"
)

// ValueKind separates binary outcomes from continuous measurements
type ValueKind int

const (
	ValueBinary ValueKind = iota
	ValueContinuous
)

// Kind returns the measurement kind of the metric
func (m Metric) Kind() ValueKind {
	if m == MetricFrequency {
		return ValueBinary
	}
	return ValueContinuous
}

// HypothesisResult is one row of the flat result table
type HypothesisResult struct {
	Hypothesis string   `json:"hypothesis" db:"hypothesis"`
	Metric     Metric   `json:"metric" db:"metric"`
	Test       TestName `json:"test" db:"test"`
	PValue     float64  `json:"p_value" db:"p_value"`
	Statistic  float64  `json:"statistic" db:"statistic"`
	EffectSize float64  `json:"effect_size" db:"effect_size"`
	SampleSize int      `json:"sample_size" db:"sample_size"`
	Groups     int      `json:"groups" db:"groups"`
	Reject     bool     `json:"reject" db:"reject"`
}

// Decide applies the significance threshold; a NaN p-value never rejects
func Decide(o Outcome, alpha float64) bool {
	return o.Valid() && o.PValue < alpha
}

// NewResult records the caller's decision for an outcome
func NewResult(hypothesis string, metric Metric, o Outcome, alpha float64) HypothesisResult {
	return HypothesisResult{
		Hypothesis: hypothesis,
		Metric:     metric,
		Test:       o.Test,
		PValue:     o.PValue,
		Statistic:  o.Statistic,
		EffectSize: o.EffectSize,
		SampleSize: o.SampleSize,
		Groups:     o.Groups,
		Reject:     Decide(o, alpha),
	}
}
