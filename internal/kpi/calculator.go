// Package kpi derives the per-policy profitability measures: loss ratio,
// claim frequency flag, claim severity and margin.
package kpi

import (
	"fmt"

	"insurisk/domain/policy"
	"insurisk/internal/errors"
)

// Caps bounds the loss ratio on its two scales. Segmentation reads the decimal
// value; reports read the percent value, which is allowed to run much wider.
type Caps struct {
	LossRatio    float64 // decimal, e.g. 5.0 = 500%
	LossRatioPct float64 // percent, e.g. 1000 = 10x premium
}

// DefaultCaps returns the caps used by the pricing pipeline
func DefaultCaps() Caps {
	return Caps{LossRatio: 5.0, LossRatioPct: 1000}
}

// Calculator computes KPIs for records
type Calculator struct {
	caps Caps
}

// NewCalculator creates a KPI calculator
func NewCalculator(caps Caps) *Calculator {
	return &Calculator{caps: caps}
}

// LossRatio is claims/premium, 0 when premium <= 0
func LossRatio(premium, claims float64) float64 {
	if premium <= 0 {
		return 0
	}
	return claims / premium
}

// Compute derives the KPIs of a single validated record
func (c *Calculator) Compute(r policy.Record) policy.KPIs {
	premium, claims := r.Premium(), r.Claims()
	ratio := LossRatio(premium, claims)
	hasClaim := claims > 0

	severity := 0.0
	if hasClaim {
		severity = claims
	}

	return policy.KPIs{
		LossRatio:     capAt(ratio, c.caps.LossRatio),
		LossRatioPct:  capAt(ratio*100, c.caps.LossRatioPct),
		HasClaim:      hasClaim,
		ClaimSeverity: severity,
		Margin:        premium - claims,
	}
}

// Apply validates the records and returns them as policies with KPIs populated.
// A single invalid record aborts the whole set.
func (c *Calculator) Apply(records []policy.Record, requireNonNegative bool) ([]policy.Policy, error) {
	if err := policy.ValidateAll(records, requireNonNegative); err != nil {
		return nil, errors.ValidationError("kpi input rejected", err)
	}

	out := make([]policy.Policy, len(records))
	for i, r := range records {
		out[i] = policy.Policy{Record: r, KPI: c.Compute(r)}
	}
	return out, nil
}

func capAt(v, limit float64) float64 {
	if limit > 0 && v > limit {
		return limit
	}
	return v
}

// Summary aggregates KPIs over a set of policies
type Summary struct {
	Policies       int
	TotalPremium   float64
	TotalClaims    float64
	LossRatio      float64 // portfolio claims/premium, uncapped
	ClaimFrequency float64 // share of policies with a claim
	ClaimSeverity  float64 // mean claim among claimants only
	TotalMargin    float64
}

// Summarize computes portfolio-level KPIs. Severity is averaged over claimants,
// so a portfolio without claims reports 0 rather than NaN.
func Summarize(policies []policy.Policy) Summary {
	s := Summary{Policies: len(policies)}
	claimants := 0
	for _, p := range policies {
		s.TotalPremium += p.Premium()
		s.TotalClaims += p.Claims()
		s.TotalMargin += p.KPI.Margin
		if p.KPI.HasClaim {
			claimants++
		}
	}
	if s.Policies > 0 {
		s.ClaimFrequency = float64(claimants) / float64(s.Policies)
	}
	if claimants > 0 {
		sev := 0.0
		for _, p := range policies {
			if p.KPI.HasClaim {
				sev += p.KPI.ClaimSeverity
			}
		}
		s.ClaimSeverity = sev / float64(claimants)
	}
	s.LossRatio = LossRatio(s.TotalPremium, s.TotalClaims)
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("policies=%d premium=%.2f claims=%.2f loss_ratio=%.3f frequency=%.3f severity=%.2f",
		s.Policies, s.TotalPremium, s.TotalClaims, s.LossRatio, s.ClaimFrequency, s.ClaimSeverity)
}
