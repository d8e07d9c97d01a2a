// Package outliers flags extreme values with IQR fences and caps financial
// columns by winsorization before they reach mean-based tests.
package outliers

import (
	"insurisk/domain/policy"
)

// Column summarizes the treatment of one numeric column
type Column struct {
	Name     string  `json:"name"`
	Bounds   Bounds  `json:"-"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
	Outliers int     `json:"outliers"`
	Capped   int     `json:"capped"`
}

// Summary reports what the treatment found and changed
type Summary struct {
	Limits          Limits
	Columns         []Column
	FlaggedPolicies int
}

// Column looks up a column by name
func (s Summary) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Treatment runs IQR detection and winsorization over policies
type Treatment struct {
	limits Limits
}

// NewTreatment creates an outlier treatment with the given winsorization limits
func NewTreatment(limits Limits) *Treatment {
	return &Treatment{limits: limits}
}

// Apply returns copies of the policies with Capped and HasOutlier populated.
// Raw premium and claims are left untouched; detection never drops rows.
func (t *Treatment) Apply(in []policy.Policy) ([]policy.Policy, Summary) {
	out := make([]policy.Policy, len(in))
	copy(out, in)
	summary := Summary{Limits: t.limits}

	premium := column(in, func(p policy.Policy) float64 { return p.Premium() })
	claims := column(in, func(p policy.Policy) float64 { return p.Claims() })
	margin := column(in, func(p policy.Policy) float64 { return p.KPI.Margin })

	for _, det := range []struct {
		name   string
		values []float64
	}{{"TotalPremium", premium}, {"TotalClaims", claims}} {
		flags, b := FlagIQR(det.values)
		col := Column{Name: det.name, Bounds: b}
		for i, f := range flags {
			if f {
				col.Outliers++
				out[i].HasOutlier = true
			}
		}
		summary.Columns = append(summary.Columns, col)
	}

	cappedClaims := Winsorize(claims, t.limits)
	cappedMargin := Winsorize(margin, t.limits)
	for i := range out {
		out[i].Capped.TotalClaims = cappedClaims[i]
		out[i].Capped.Margin = cappedMargin[i]
	}
	summary.Columns[1].Capped = CountCapped(claims, cappedClaims)
	summary.Columns = append(summary.Columns, Column{Name: "Margin", Capped: CountCapped(margin, cappedMargin)})

	// severity is capped within the claimant population only
	var claimants []int
	var severity []float64
	for i, p := range in {
		if p.Claims() > 0 {
			claimants = append(claimants, i)
			severity = append(severity, p.Claims())
		}
	}
	cappedSeverity := Winsorize(severity, t.limits)
	for j, i := range claimants {
		out[i].Capped.Severity = cappedSeverity[j]
	}
	summary.Columns = append(summary.Columns, Column{Name: "Severity", Capped: CountCapped(severity, cappedSeverity)})

	// CalculatedPremiumPerTerm is optional: winsorize over the policies that carry it
	var idx []int
	var perTerm []float64
	for i, p := range in {
		if p.CalculatedPremiumPerTerm != nil {
			idx = append(idx, i)
			perTerm = append(perTerm, *p.CalculatedPremiumPerTerm)
		}
	}
	cappedTerm := Winsorize(perTerm, t.limits)
	for j, i := range idx {
		out[i].Capped.CalculatedPremiumPerTerm = cappedTerm[j]
	}
	summary.Columns = append(summary.Columns, Column{Name: "CalculatedPremiumPerTerm", Capped: CountCapped(perTerm, cappedTerm)})

	for _, p := range out {
		if p.HasOutlier {
			summary.FlaggedPolicies++
		}
	}
	return out, summary
}

func column(in []policy.Policy, get func(policy.Policy) float64) []float64 {
	values := make([]float64, len(in))
	for i, p := range in {
		values[i] = get(p)
	}
	return values
}
