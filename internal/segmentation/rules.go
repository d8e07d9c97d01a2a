package segmentation

import (
	"strings"

	"insurisk/domain/policy"
)

// Rules holds the thresholds and reference sets of the underwriting framework
type Rules struct {
	MaxLossRatio        float64 // exclusion when the capped loss ratio exceeds this
	MaxVehicleAge       int     // exclusion when the vehicle is older than this
	ExcludedVehicles    []string
	PreferredVehicles   []string
	LowRiskProvinces    []string
	PreferredAgeMin     int
	PreferredAgeMax     int
	PreferredCover      string
	LowRiskThreshold    int // score at or above which a policy is Low-Risk
	MediumRiskThreshold int // score at or above which a policy is Medium-Risk
}

// DefaultRules returns the framework used for the motor book
func DefaultRules() Rules {
	return Rules{
		MaxLossRatio:        0.8,
		MaxVehicleAge:       15,
		ExcludedVehicles:    []string{"Motorcycle", "Taxi"},
		PreferredVehicles:   []string{"Sedan", "Light Commercial Vehicle"},
		LowRiskProvinces:    []string{"Western Cape", "Gauteng"},
		PreferredAgeMin:     2,
		PreferredAgeMax:     5,
		PreferredCover:      "Comprehensive",
		LowRiskThreshold:    5,
		MediumRiskThreshold: 3,
	}
}

// MaxScore is the number of scoring criteria
const MaxScore = 8

// criterion is one named yes/no check against a policy
type criterion struct {
	name string
	met  func(policy.Policy) bool
}

func exclusions(r Rules) []criterion {
	excluded := toSet(r.ExcludedVehicles)
	return []criterion{
		{"claim occurred", func(p policy.Policy) bool {
			return p.Claims() > 0 && p.KPI.HasClaim
		}},
		{"loss ratio above limit", func(p policy.Policy) bool {
			return p.KPI.LossRatio > r.MaxLossRatio
		}},
		{"written off", func(p policy.Policy) bool {
			return p.WrittenOff == policy.FlagYes
		}},
		{"excluded vehicle type", func(p policy.Policy) bool {
			return excluded[normalize(p.VehicleType)]
		}},
		{"vehicle too old", func(p policy.Policy) bool {
			return p.Features.VehicleAge != nil && *p.Features.VehicleAge > r.MaxVehicleAge
		}},
	}
}

func scoring(r Rules) []criterion {
	provinces := toSet(r.LowRiskProvinces)
	vehicles := toSet(r.PreferredVehicles)
	cover := normalize(r.PreferredCover)
	return []criterion{
		{"married or female", func(p policy.Policy) bool {
			return normalize(p.MaritalStatus) == "married" || normalize(p.Gender) == "female"
		}},
		{"low-risk province", func(p policy.Policy) bool {
			return provinces[normalize(p.Province)]
		}},
		{"preferred vehicle type", func(p policy.Policy) bool {
			return vehicles[normalize(p.VehicleType)]
		}},
		{"preferred vehicle age", func(p policy.Policy) bool {
			age := p.Features.VehicleAge
			return age != nil && *age >= r.PreferredAgeMin && *age <= r.PreferredAgeMax
		}},
		{"full security", func(p policy.Policy) bool {
			return p.Features.SecurityScore == 2
		}},
		{"no claims", func(p policy.Policy) bool {
			return p.Claims() == 0
		}},
		{"preferred cover", func(p policy.Policy) bool {
			return cover != "" && normalize(p.CoverType) == cover
		}},
		{"clean vehicle history", func(p policy.Policy) bool {
			return p.WrittenOff == policy.FlagNo && p.Rebuilt == policy.FlagNo
		}},
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[normalize(v)] = true
	}
	return set
}
