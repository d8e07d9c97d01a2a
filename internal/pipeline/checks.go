package pipeline

import (
	"fmt"
	"math"

	"insurisk/domain/policy"
)

// Check is one data-quality assertion over the processed book
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Validate runs the post-processing quality checks. Failures are reported, not returned as errors.
func Validate(policies []policy.Policy, lossRatioCap float64, maxVehicleAge int) []Check {
	var missingTarget, negPremium, negClaims, badRatio, unassigned, badAge, withAge int
	for _, p := range policies {
		lr := p.KPI.LossRatio
		if math.IsNaN(lr) || math.IsInf(lr, 0) {
			missingTarget++
		} else if lr < 0 || lr > lossRatioCap {
			badRatio++
		}
		if p.Premium() < 0 {
			negPremium++
		}
		if p.Claims() < 0 {
			negClaims++
		}
		if !p.Segment.Valid() {
			unassigned++
		}
		if age := p.Features.VehicleAge; age != nil {
			withAge++
			if *age < 0 || *age > maxVehicleAge {
				badAge++
			}
		}
	}

	checks := []Check{
		check("no_missing_target", missingTarget),
		check("no_negative_premium", negPremium),
		check("no_negative_claims", negClaims),
		check("valid_loss_ratio", badRatio),
		check("segments_assigned", unassigned),
	}
	if withAge > 0 {
		checks = append(checks, check("valid_vehicle_age", badAge))
	}
	return checks
}

func check(name string, failures int) Check {
	c := Check{Name: name, Passed: failures == 0}
	if failures > 0 {
		c.Detail = fmt.Sprintf("%d policies failed", failures)
	}
	return c
}

// AllPassed reports whether every check passed
func AllPassed(checks []Check) bool {
	for _, c := range checks {
		if !c.Passed {
			return false
		}
	}
	return true
}
